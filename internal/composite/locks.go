package composite

import "sync"

// keyedMutex serializes balance-mutating operations per aggregate root. The
// store's conditional UPDATE already prevents lost updates on the wallet row
// itself; the per-user lock additionally keeps the wallet write and its
// ledger append adjacent, so BalanceAfter values appear in ledger order.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: map[string]*lockEntry{}}
}

// Lock blocks until the key is held and returns the matching unlock. Entries
// are reference counted and removed when idle.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
