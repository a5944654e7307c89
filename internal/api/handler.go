package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/redflag/internal/cache"
	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/report"
	"github.com/opensource-finance/redflag/internal/repository"
	"github.com/opensource-finance/redflag/internal/scoring"
	"github.com/opensource-finance/redflag/internal/stats"
	"github.com/opensource-finance/redflag/internal/velocity"
)

// Error codes returned in the "code" field of error responses.
const (
	codeInvalidJSON     = "invalid_json"
	codeMalformedInput  = "malformed_input"
	codeInconsistent    = "inconsistent_input"
	codeNotFound        = "not_found"
	codeRateLimited     = "rate_limited"
	codePaymentRequired = "payment_required"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

// assessmentCacheTTL is how long a stored assessment stays cached.
const assessmentCacheTTL = 10 * time.Minute

// Deps are the collaborators the handlers use. Repo and Engine are required;
// the rest may be nil.
type Deps struct {
	Repo    domain.Repository
	Cache   domain.Cache
	Bus     domain.EventBus
	Engine  *scoring.Engine
	Reports *report.Service
	Stats   *stats.Service
	Limiter *velocity.Limiter
	Version string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *scoring.Engine
	reports *report.Service
	stats   *stats.Service
	limiter *velocity.Limiter
	version string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		repo:    deps.Repo,
		cache:   deps.Cache,
		bus:     deps.Bus,
		engine:  deps.Engine,
		reports: deps.Reports,
		stats:   deps.Stats,
		limiter: deps.Limiter,
		version: deps.Version,
	}
	if h.reports == nil && h.repo != nil {
		h.reports = report.NewService(h.repo, h.bus)
	}
	if h.stats == nil && h.repo != nil {
		h.stats = stats.NewService(h.repo)
	}
	return h
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
	Field   string              `json:"field,omitempty"`
	Profit  *float64            `json:"profit,omitempty"`
	TraceID string              `json:"traceId,omitempty"`
}

// CreateAssessmentResponse is the response for POST /assessments.
type CreateAssessmentResponse struct {
	*domain.AssessmentSummary
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// CreateAssessment handles POST /assessments. It scores the submission,
// stores the canonical result and returns the free summary.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON request body")
		return
	}

	if err := requireSubmissionFields(req); err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	result, err := h.engine.Evaluate(req.AssessmentInput)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}
	if result.HasWarning(domain.WarningUnknownIndustry) {
		slog.Warn("industry fell back to default profile",
			"industry", req.Industry,
			"resolved", result.Industry,
			"trace_id", GetTraceID(ctx),
		)
	}

	now := time.Now().UTC()
	a := &domain.Assessment{
		ID:            uuid.New().String(),
		Email:         strings.TrimSpace(req.Email),
		Input:         req.AssessmentInput.Normalize(),
		Result:        result,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.repo.SaveAssessment(ctx, a); err != nil {
		slog.Error("failed to save assessment", "assessment_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to store assessment")
		return
	}

	h.cacheAssessment(ctx, a)
	h.publishScored(ctx, a)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("assessment.id", a.ID),
		attribute.Int("assessment.score", result.Score),
		attribute.String("assessment.band", string(result.Band)),
	)

	slog.Info("assessment scored",
		"assessment_id", a.ID,
		"industry", result.Industry,
		"score", result.Score,
		"band", result.Band,
		"indicators", len(result.TriggeredIndicators),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp := CreateAssessmentResponse{AssessmentSummary: a.ToSummary()}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// requireSubmissionFields checks what a stored assessment needs beyond a
// scorable input.
func requireSubmissionFields(req domain.AssessmentRequest) error {
	merr := &domain.MalformedInputError{}
	if strings.TrimSpace(req.Email) == "" {
		merr.Add("email", "is required")
	} else if !strings.Contains(req.Email, "@") {
		merr.Add("email", "must be an email address")
	}
	if req.TaxYear == "" {
		merr.Add("taxYear", "is required")
	}
	return merr.ErrOrNil()
}

// GetAssessment handles GET /assessments/{id}.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.ToSummary())
}

// ListAssessments handles GET /assessments?industry=&band=&limit=.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.AssessmentFilter{
		Industry: q.Get("industry"),
		Band:     domain.Band(strings.ToUpper(q.Get("band"))),
	}
	switch filter.Band {
	case "", domain.BandLow, domain.BandModerate, domain.BandHigh:
	default:
		writeError(w, http.StatusBadRequest, codeMalformedInput, "band must be LOW, MODERATE or HIGH")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, codeMalformedInput, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	list, err := h.repo.ListAssessments(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list assessments", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list assessments")
		return
	}

	summaries := make([]*domain.AssessmentSummary, 0, len(list))
	for _, a := range list {
		summaries = append(summaries, a.ToSummary())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": summaries,
		"count":       len(summaries),
	})
}

// SimulateAssessment handles POST /assessments/{id}/simulate. The stored
// result is the baseline and nothing is persisted.
func (h *Handler) SimulateAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}

	if _, err := h.limiter.Allow(r.Context(), a.ID); err != nil {
		if errors.Is(err, velocity.ErrLimitExceeded) {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.limiter.Window().Seconds())))
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many simulations for this assessment")
			return
		}
		slog.Error("simulation limiter failed", "assessment_id", a.ID, "error", err)
	}

	var overrides domain.SimulationOverrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON request body")
		return
	}

	sim, err := h.engine.SimulateAgainst(a.Input, a.Result, overrides)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}

	slog.Debug("assessment simulated",
		"assessment_id", a.ID,
		"score_change", sim.ScoreChange,
		"band_changed", sim.BandChanged,
	)
	writeJSON(w, http.StatusOK, sim)
}

// Simulate handles POST /simulate, a what-if on a supplied baseline.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON request body")
		return
	}

	sim, err := h.engine.Simulate(req.Baseline, req.Overrides)
	if err != nil {
		h.writeScoringError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// PurchaseReport handles POST /assessments/{id}/report, called once payment
// has been taken.
func (h *Handler) PurchaseReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rep, err := h.reports.Purchase(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "assessment not found")
		return
	}
	if err != nil {
		slog.Error("report purchase failed", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to request report")
		return
	}

	h.refreshCachedAssessment(ctx, id)

	status := "generating"
	if rep != nil {
		status = "ready"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"assessmentId": id,
		"status":       status,
	})
}

// GetReport handles GET /assessments/{id}/report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := h.reports.Fetch(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "assessment not found")
		return
	case errors.Is(err, report.ErrNotPaid):
		writeError(w, http.StatusForbidden, codePaymentRequired, "report has not been purchased")
		return
	case errors.Is(err, report.ErrPending):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"assessmentId": id,
			"status":       "generating",
		})
		return
	case err != nil:
		slog.Error("failed to fetch report", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to fetch report")
		return
	}

	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(&domain.Assessment{ID: id})+`"`)
	}
	writeJSON(w, http.StatusOK, rep)
}

// Stats handles GET /stats?industry=.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.stats.Summary(r.Context(), r.URL.Query().Get("industry"))
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}
	if h.repo != nil {
		check("repository", h.repo.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("bus", h.bus.Ping)
	}

	resp := map[string]any{
		"status":         status,
		"version":        h.version,
		"rulesetVersion": h.engine.RulesetVersion(),
		"checks":         checks,
	}
	if sr, ok := h.cache.(cacheStatsReporter); ok {
		resp["cache"] = sr.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// cacheStatsReporter is implemented by caches with a local tier.
type cacheStatsReporter interface {
	Stats() cache.Stats
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// loadAssessment reads {id} through the cache and writes a 404 when missing.
func (h *Handler) loadAssessment(w http.ResponseWriter, r *http.Request) (*domain.Assessment, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		if a, err := h.cache.GetAssessment(ctx, id); err == nil && a != nil {
			return a, true
		}
	}

	a, err := h.repo.GetAssessment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "assessment not found")
		return nil, false
	}
	if err != nil {
		slog.Error("failed to get assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load assessment")
		return nil, false
	}

	h.cacheAssessment(ctx, a)
	return a, true
}

func (h *Handler) cacheAssessment(ctx context.Context, a *domain.Assessment) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetAssessment(ctx, a, assessmentCacheTTL); err != nil {
		slog.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
	}
}

// refreshCachedAssessment replaces the cached copy after a payment change.
func (h *Handler) refreshCachedAssessment(ctx context.Context, id string) {
	if h.cache == nil {
		return
	}
	a, err := h.repo.GetAssessment(ctx, id)
	if err != nil {
		slog.Warn("failed to refresh cached assessment", "assessment_id", id, "error", err)
		return
	}
	h.cacheAssessment(ctx, a)
}

func (h *Handler) publishScored(ctx context.Context, a *domain.Assessment) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.AssessmentEvent{
		AssessmentID: a.ID,
		Score:        a.Result.Score,
		Band:         a.Result.Band,
		Industry:     a.Result.Industry,
		ReportType:   a.Input.ReportType,
	})
	if err != nil {
		slog.Error("failed to encode assessment scored", "assessment_id", a.ID, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicAssessmentScored, payload); err != nil {
		slog.Error("failed to publish assessment scored", "assessment_id", a.ID, "error", err)
	}
}

// writeScoringError maps validation and consistency failures to 400 and 422.
// Anything else is an internal failure; no score is returned.
func (h *Handler) writeScoringError(w http.ResponseWriter, r *http.Request, err error) {
	var merr *domain.MalformedInputError
	var cerr *domain.ConsistencyError

	switch {
	case errors.As(err, &merr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   merr.Error(),
			Code:    codeMalformedInput,
			Fields:  merr.Fields,
			TraceID: GetTraceID(r.Context()),
		})
	case errors.As(err, &cerr):
		profit := cerr.Profit
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   cerr.Error(),
			Code:    codeInconsistent,
			Field:   cerr.Field,
			Profit:  &profit,
			TraceID: GetTraceID(r.Context()),
		})
	default:
		slog.Error("scoring failed", "error", err, "trace_id", GetTraceID(r.Context()))
		writeError(w, http.StatusInternalServerError, codeInternal, "scoring failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
