package composite

// Point amounts used by the composite operations. These match the product
// configuration the bot shipped with; override via Config for tests.
const (
	DefaultSignupBonus   = 50
	DefaultCheckinReward = 10
	DefaultUserLevel     = 1
)

// Task kinds and their fixed point costs.
const (
	TaskQuickEnhance  = "quick_enhance"
	TaskCustomEnhance = "custom_enhance"
)

var defaultTaskCosts = map[string]int64{
	TaskQuickEnhance:  10,
	TaskCustomEnhance: 20,
}

// Config carries the tunable amounts for composite operations.
type Config struct {
	SignupBonus   int64
	CheckinReward int64
	UserLevel     int
	TaskCosts     map[string]int64
}

// DefaultConfig returns the production amounts.
func DefaultConfig() Config {
	costs := make(map[string]int64, len(defaultTaskCosts))
	for k, v := range defaultTaskCosts {
		costs[k] = v
	}
	return Config{
		SignupBonus:   DefaultSignupBonus,
		CheckinReward: DefaultCheckinReward,
		UserLevel:     DefaultUserLevel,
		TaskCosts:     costs,
	}
}

// TaskCost resolves a task kind to its fixed cost. Unknown kinds fall back
// to the quick-enhance cost, matching the original lookup behaviour.
func (c Config) TaskCost(kind string) int64 {
	if cost, ok := c.TaskCosts[kind]; ok {
		return cost
	}
	return c.TaskCosts[TaskQuickEnhance]
}
