package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pointsbot/internal/cache"
	"pointsbot/internal/composite"
	"pointsbot/internal/metrics"
	"pointsbot/internal/migration"
	"pointsbot/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies exposes core collaborators to the handlers.
type Dependencies struct {
	Services  *migration.Services
	ViewCache *cache.UserViews
	// WebhookToken, when set, is required in X-Webhook-Token on webhook
	// calls.
	WebhookToken string
}

// Server wraps an http.Server with the service routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	basePath   string
}

// New creates an HTTP server listening on addr.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		deps:     deps,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /migration/verifiers", server.handleVerifierStats)

	mux.HandleFunc("POST /users", server.handleRegister)
	mux.HandleFunc("GET /users/{externalID}", server.handleGetUser)
	mux.HandleFunc("POST /users/{externalID}/checkin", server.handleCheckin)
	mux.HandleFunc("GET /users/{externalID}/history", server.handleHistory)
	mux.HandleFunc("GET /users/{externalID}/ledger-check", server.handleLedgerCheck)

	mux.HandleFunc("POST /webhook/payment", server.handlePaymentWebhook)
	mux.HandleFunc("POST /webhook/task", server.handleTaskWebhook)

	handler := mountWithBasePath(server.basePath, mux)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleVerifierStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Services.VerifierStats())
}

type registerRequest struct {
	ExternalID string  `json:"external_id"`
	Username   *string `json:"username,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	UTMSource  *string `json:"utm_source,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ExternalID) == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	view, err := s.deps.Services.Users.Register(r.Context(), composite.RegisterParams{
		ExternalID: req.ExternalID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		UTMSource:  req.UTMSource,
	})
	if err != nil {
		s.writeOpError(w, "register", err)
		return
	}

	s.deps.ViewCache.Put(r.Context(), req.ExternalID, view)
	writeJSON(w, http.StatusCreated, viewResponse(view))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalID")

	if view, ok := s.deps.ViewCache.Get(r.Context(), externalID); ok {
		writeJSON(w, http.StatusOK, viewResponse(view))
		return
	}

	view, err := s.deps.Services.Users.GetView(r.Context(), externalID)
	if err != nil {
		s.writeOpError(w, "get user", err)
		return
	}

	s.deps.ViewCache.Put(r.Context(), externalID, view)
	writeJSON(w, http.StatusOK, viewResponse(view))
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalID")

	view, err := s.deps.Services.Users.GetView(r.Context(), externalID)
	if err != nil {
		s.writeOpError(w, "get user", err)
		return
	}

	res, err := s.deps.Services.Points.DailyCheckIn(r.Context(), view.User.ID)
	if err != nil {
		if errors.Is(err, composite.ErrAlreadyCheckedIn) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "already_checked_in"})
			return
		}
		s.writeOpError(w, "daily checkin", err)
		return
	}

	s.deps.ViewCache.Invalidate(r.Context(), externalID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"day":           res.Day,
		"points_earned": res.PointsEarned,
		"balance":       res.NewBalance,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalID")

	view, err := s.deps.Services.Users.GetView(r.Context(), externalID)
	if err != nil {
		s.writeOpError(w, "get user", err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.deps.Services.Points.History(r.Context(), view.User.ID, limit)
	if err != nil {
		s.writeOpError(w, "points history", err)
		return
	}

	entries := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, map[string]any{
			"delta":         rec.Delta,
			"action_type":   rec.ActionType,
			"description":   rec.Description,
			"balance_after": rec.BalanceAfter,
			"created_at":    rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLedgerCheck(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalID")

	view, err := s.deps.Services.Users.GetView(r.Context(), externalID)
	if err != nil {
		s.writeOpError(w, "get user", err)
		return
	}

	check, err := s.deps.Services.Points.VerifyLedger(r.Context(), view.User.ID)
	if err != nil {
		s.writeOpError(w, "ledger check", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        check.UserID,
		"wallet_balance": check.WalletBalance,
		"ledger_sum":     check.LedgerSum,
		"consistent":     check.Consistent,
	})
}

type paymentWebhook struct {
	OrderRef string     `json:"order_ref"`
	Status   string     `json:"status"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeWebhook(w, r) {
		return
	}
	var ev paymentWebhook
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if ev.OrderRef == "" {
		http.Error(w, "order_ref is required", http.StatusBadRequest)
		return
	}

	switch ev.Status {
	case "success", "paid":
		paidAt := time.Now()
		if ev.PaidAt != nil {
			paidAt = *ev.PaidAt
		}
		change, err := s.deps.Services.Points.ProcessPaymentSuccess(r.Context(), ev.OrderRef, paidAt)
		if err != nil {
			s.writeOpError(w, "payment success", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"points":  change.Delta,
			"balance": change.BalanceAfter,
		})
	case "failed", "expired", "cancelled":
		msg := ev.Error
		if msg == "" {
			msg = ev.Status
		}
		if err := s.deps.Services.Points.ProcessPaymentFailure(r.Context(), ev.OrderRef, msg); err != nil {
			s.writeOpError(w, "payment failure", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		http.Error(w, "unknown payment status", http.StatusBadRequest)
	}
}

type taskWebhook struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleTaskWebhook settles an image task. A failed task is refunded in the
// same request; a refund rejection just means an earlier delivery already
// credited it.
func (s *Server) handleTaskWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeWebhook(w, r) {
		return
	}
	var ev taskWebhook
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if ev.TaskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	switch ev.Status {
	case "completed":
		if err := s.deps.Services.Points.CompleteTask(r.Context(), ev.TaskID, ev.ResultURL); err != nil {
			s.writeOpError(w, "complete task", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case "failed":
		if err := s.deps.Services.Points.FailTask(r.Context(), ev.TaskID, ev.Error); err != nil {
			s.writeOpError(w, "fail task", err)
			return
		}
		change, err := s.deps.Services.Points.RefundTask(r.Context(), ev.TaskID)
		if err != nil {
			if errors.Is(err, composite.ErrTaskNotRefundable) {
				writeJSON(w, http.StatusOK, map[string]any{"status": "already_refunded"})
				return
			}
			s.writeOpError(w, "refund task", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "refunded",
			"refunded": change.Delta,
			"balance":  change.BalanceAfter,
		})
	default:
		http.Error(w, "unknown task status", http.StatusBadRequest)
	}
}

func (s *Server) authorizeWebhook(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.WebhookToken == "" {
		return true
	}
	if r.Header.Get("X-Webhook-Token") != s.deps.WebhookToken {
		s.metrics.IncError("webhook_auth")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// writeOpError maps composite errors onto HTTP statuses.
func (s *Server) writeOpError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, composite.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, composite.ErrInsufficientBalance):
		http.Error(w, "insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, composite.ErrSessionAlreadyClosed):
		http.Error(w, "session already closed", http.StatusConflict)
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		s.metrics.IncError("http")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func viewResponse(v *composite.UserView) map[string]any {
	return map[string]any{
		"id":            v.User.ID,
		"external_id":   v.User.ExternalID,
		"username":      v.User.Username,
		"first_name":    v.User.FirstName,
		"last_name":     v.User.LastName,
		"is_active":     v.User.IsActive,
		"points":        v.Points,
		"level":         v.Level,
		"total_paid":    v.TotalPaidCents,
		"points_spent":  v.TotalPointsSpent,
		"session_count": v.SessionCount,
		"messages_sent": v.TotalMessagesSent,
		"registered_at": v.User.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
