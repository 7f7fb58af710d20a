// Package chi is the HTTP transport for the quota service.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quotad/internal/domain"
	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
	healthuc "github.com/kailas-cloud/quotad/internal/usecase/health"
	quotauc "github.com/kailas-cloud/quotad/internal/usecase/quota"
	statsuc "github.com/kailas-cloud/quotad/internal/usecase/stats"
)

// Error codes returned in the structured error body.
const (
	codeBadRequest       = "bad_request"
	codeAlreadySubmitted = "feedback_already_submitted"
	codeInternalError    = "internal_error"
	codeUnauthorized     = "unauthorized"
)

// ErrorResponse is the structured error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// quotaResponse is the body of decrease/increase responses.
type quotaResponse struct {
	DailyQuotaRemaining int `json:"dailyQuotaRemaining"`
	BonusQuotaRemaining int `json:"bonusQuotaRemaining"`
}

// quotaDetailResponse additionally carries the completed feedback-form set.
type quotaDetailResponse struct {
	DailyQuotaRemaining int             `json:"dailyQuotaRemaining"`
	BonusQuotaRemaining int             `json:"bonusQuotaRemaining"`
	FeedbackSubmitted   map[string]bool `json:"feedbackSubmitted"`
}

// consumptionBody is one aggregation window in the usage report.
type consumptionBody struct {
	Units       int64 `json:"units"`
	WindowStart int64 `json:"windowStart"`
	WindowEnd   int64 `json:"windowEnd"`
}

// usageResponse is the body of GET /usage.
type usageResponse struct {
	Day   consumptionBody `json:"day"`
	Month consumptionBody `json:"month"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server wires the quota, stats, and health services to HTTP routes.
type Server struct {
	quota  *quotauc.Service
	stats  *statsuc.Tracker
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server. stats can be nil.
func NewServer(quota *quotauc.Service, stats *statsuc.Tracker, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{quota: quota, stats: stats, health: health, logger: logger}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/get-quota", s.GetQuota)
	r.Post("/decrease-quota", s.DecreaseQuota)
	r.Post("/increase-quota", s.IncreaseQuota)
	r.Post("/mark-feedback-complete", s.MarkFeedbackComplete)
	r.Get("/usage", s.Usage)
	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
}

// GetQuota handles GET /get-quota.
func (s *Server) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	snap, err := s.quota.GetQuota(r.Context(), userID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	setQuotaHeaders(w, snap)
	writeJSON(w, http.StatusOK, quotaDetailResponse{
		DailyQuotaRemaining: snap.DailyRemaining,
		BonusQuotaRemaining: snap.BonusRemaining,
		FeedbackSubmitted:   snap.FeedbackSubmitted,
	})
}

// DecreaseQuota handles POST /decrease-quota.
func (s *Server) DecreaseQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	amount, ok := requireAmount(w, r)
	if !ok {
		return
	}

	snap, err := s.quota.DecreaseQuota(r.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			// The rejected view always reports the daily remainder as 0;
			// existing callers rely on this body shape.
			writeJSON(w, http.StatusTooManyRequests, quotaResponse{
				DailyQuotaRemaining: snap.DailyRemaining,
				BonusQuotaRemaining: snap.BonusRemaining,
			})
			return
		}
		s.internalError(w, r, err)
		return
	}

	setQuotaHeaders(w, snap)
	writeJSON(w, http.StatusOK, quotaResponse{
		DailyQuotaRemaining: snap.DailyRemaining,
		BonusQuotaRemaining: snap.BonusRemaining,
	})
}

// IncreaseQuota handles POST /increase-quota.
func (s *Server) IncreaseQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	amount, ok := requireAmount(w, r)
	if !ok {
		return
	}

	snap, err := s.quota.IncreaseQuota(r.Context(), userID, amount)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	setQuotaHeaders(w, snap)
	writeJSON(w, http.StatusOK, quotaResponse{
		DailyQuotaRemaining: snap.DailyRemaining,
		BonusQuotaRemaining: snap.BonusRemaining,
	})
}

// MarkFeedbackComplete handles POST /mark-feedback-complete.
func (s *Server) MarkFeedbackComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	formID := r.URL.Query().Get("feedbackFormId")
	if formID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Missing feedbackFormId parameter")
		return
	}

	snap, err := s.quota.MarkFeedbackComplete(r.Context(), userID, formID)
	if err != nil {
		if errors.Is(err, domain.ErrFeedbackAlreadySubmitted) {
			writeError(w, http.StatusBadRequest, codeAlreadySubmitted, "Feedback form already marked as complete")
			return
		}
		s.internalError(w, r, err)
		return
	}

	setQuotaHeaders(w, snap)
	writeJSON(w, http.StatusOK, quotaDetailResponse{
		DailyQuotaRemaining: snap.DailyRemaining,
		BonusQuotaRemaining: snap.BonusRemaining,
		FeedbackSubmitted:   snap.FeedbackSubmitted,
	})
}

// Usage handles GET /usage.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	var report statsuc.Report
	if s.stats != nil {
		report = s.stats.Report()
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Day: consumptionBody{
			Units:       report.Day.Units,
			WindowStart: report.Day.WindowStart,
			WindowEnd:   report.Day.WindowEnd,
		},
		Month: consumptionBody{
			Units:       report.Month.Units,
			WindowStart: report.Month.WindowStart,
			WindowEnd:   report.Month.WindowEnd,
		},
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("quota operation failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// requireUserID extracts the mandatory userId query parameter.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Missing userId parameter")
		return "", false
	}
	return userID, true
}

// requireAmount parses the amount query parameter, defaulting to 1.
func requireAmount(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		raw = "1"
	}
	amount, err := strconv.Atoi(raw)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid amount value")
		return 0, false
	}
	return amount, true
}

// setQuotaHeaders attaches the remaining-quota headers callers forward to the UI.
func setQuotaHeaders(w http.ResponseWriter, snap domquota.Snapshot) {
	w.Header().Set("X-Daily-Quota-Remaining", strconv.Itoa(snap.DailyRemaining))
	w.Header().Set("X-Bonus-Quota-Remaining", strconv.Itoa(snap.BonusRemaining))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
