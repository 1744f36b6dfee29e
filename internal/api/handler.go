// Package api exposes the on-demand HTTP surface: manual reminder
// triggers, the missed-reminder sweep, job ingestion and the email
// configuration. The scheduled path does not go through here.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/dispatcher"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	InsertJob(ctx context.Context, job domain.Job) error
	ListJobs(ctx context.Context, limit, offset int) ([]domain.Job, error)
	GetJobByNumber(ctx context.Context, jobNumber string) (domain.Job, error)
	DeleteJob(ctx context.Context, jobNumber string) error
	EmailConfig(ctx context.Context) (domain.EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg domain.EmailConfig, now time.Time) error
}

// Runner triggers a full reminder pass on demand.
type Runner interface {
	RunNow(ctx context.Context) (domain.Report, error)
}

// Sweeper runs one missed-reminder sweep on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (domain.Report, error)
}

// Dispatcher sends a reminder for explicit candidates, bypassing
// eligibility. Backs the manual per-job send.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidates []dispatcher.Candidate, now civil.Time) (domain.Report, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store    Store
	runner   Runner
	sweeper  Sweeper
	dispatch Dispatcher
	db       HealthChecker
	clock    func() time.Time
}

func NewHandler(store Store, runner Runner, dispatch Dispatcher) *Handler {
	return &Handler{
		store:    store,
		runner:   runner,
		dispatch: dispatch,
		clock:    time.Now,
	}
}

// WithSweeper enables the /reminders/check-missed endpoint.
func (h *Handler) WithSweeper(sweeper Sweeper) *Handler {
	h.sweeper = sweeper
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithClock overrides the wall clock, for tests.
func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/reminders/trigger" && r.Method == http.MethodPost:
		h.triggerReminders(w, r)

	case path == "/reminders/send" && r.Method == http.MethodPost:
		h.sendReminder(w, r)

	case path == "/reminders/check-missed" && r.Method == http.MethodPost:
		h.checkMissed(w, r)

	case path == "/jobs" && r.Method == http.MethodPost:
		h.createJob(w, r)

	case path == "/jobs" && r.Method == http.MethodGet:
		h.listJobs(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodDelete:
		h.deleteJob(w, r)

	case path == "/email-config" && r.Method == http.MethodGet:
		h.getEmailConfig(w, r)

	case path == "/email-config" && r.Method == http.MethodPut:
		h.saveEmailConfig(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) triggerReminders(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.RunNow(r.Context())
	if err != nil {
		log.Printf("api: trigger reminders error: %v", err)
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) sendReminder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SendReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.JobNumber == "" {
		writeError(w, http.StatusBadRequest, "job_number is required")
		return
	}

	job, err := h.store.GetJobByNumber(r.Context(), req.JobNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: get job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.Status == domain.StatusCompleted {
		writeError(w, http.StatusConflict, "job is completed")
		return
	}

	// Operator-initiated sends bypass eligibility entirely.
	candidates := []dispatcher.Candidate{{
		Job:      job,
		Decision: engine.Decision{Cause: engine.CauseManual},
	}}

	report, err := h.dispatch.Dispatch(r.Context(), candidates, civil.Now(h.clock))
	if err != nil {
		log.Printf("api: send reminder error: %v", err)
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) checkMissed(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeError(w, http.StatusNotFound, "sweep is disabled")
		return
	}

	report, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		log.Printf("api: check missed error: %v", err)
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateCreateJob(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := req.Status
	if status == "" {
		status = "Pending"
	}

	now := h.clock().UTC()
	job := domain.Job{
		ID:                 uuid.New(),
		JobNumber:          req.JobNumber,
		ClientName:         req.ClientName,
		ForwardingDate:     req.ForwardingDate,
		ProductionDeadline: req.ProductionDeadline,
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.store.InsertJob(r.Context(), job); err != nil {
		if errors.Is(err, domain.ErrDuplicateJobNumber) {
			writeError(w, http.StatusConflict, "job number already exists")
			return
		}
		log.Printf("api: create job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, jobResponse(job))
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		log.Printf("api: list jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	// Extract job number from path: /jobs/{number}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "jobs" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := h.store.DeleteJob(r.Context(), parts[1]); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: delete job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getEmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.EmailConfig(r.Context())
	if err != nil {
		log.Printf("api: get email config error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load email config")
		return
	}

	// The password is write-only; it never leaves the server.
	writeJSON(w, http.StatusOK, EmailConfigResponse{
		ToEmail:    cfg.ToEmail,
		FromEmail:  cfg.FromEmail,
		Configured: cfg.Configured,
	})
}

func (h *Handler) saveEmailConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SaveEmailConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateEmailConfig(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := domain.EmailConfig{
		ToEmail:      req.ToEmail,
		FromEmail:    req.FromEmail,
		FromPassword: req.FromPassword,
		Configured:   true,
	}

	if err := h.store.SaveEmailConfig(r.Context(), cfg, h.clock().UTC()); err != nil {
		log.Printf("api: save email config error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save email config")
		return
	}

	writeJSON(w, http.StatusOK, EmailConfigResponse{
		ToEmail:    cfg.ToEmail,
		FromEmail:  cfg.FromEmail,
		Configured: true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
