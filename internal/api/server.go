// Package api exposes the HTTP surface: submission intake, delta
// notifications and submission status reads.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"submission-harvester/internal/config"
	"submission-harvester/internal/flow"
	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
	"submission-harvester/internal/telemetry"
)

// Submitter schedules accepted submissions.
type Submitter interface {
	ScheduleSubmission(ctx context.Context, graph string, req models.SubmissionRequest) (string, error)
}

// Dispatcher processes delta batches.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch models.DeltaBatch) error
}

// StatusReader answers intake checks and status reads from the store.
type StatusReader interface {
	IsSubmitted(ctx context.Context, graph, resource string) (bool, error)
	VerifyVendor(ctx context.Context, accountGraph, vendor, key, organization string) (string, error)
	SubmissionStatusFor(ctx context.Context, resource string) (*graphstore.SubmissionStatus, error)
}

// Limiter throttles intake per vendor.
type Limiter interface {
	Allow(ctx context.Context, vendor string) (bool, float64, error)
	RetryAfter() time.Duration
}

// Server wires the HTTP handlers.
type Server struct {
	cfg        config.Config
	store      StatusReader
	submitter  Submitter
	dispatcher Dispatcher
	gate       *flow.Gate
	limiter    Limiter
	log        *slog.Logger
}

// New constructs the API server. limiter may be nil to disable throttling.
func New(cfg config.Config, store StatusReader, submitter Submitter, dispatcher Dispatcher, gate *flow.Gate, limiter Limiter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		store:      store,
		submitter:  submitter,
		dispatcher: dispatcher,
		gate:       gate,
		limiter:    limiter,
		log:        log.With("component", "api"),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/submissions", s.handleSubmit)
	r.Get("/submissions/status", s.handleStatus)
	r.Post("/delta", s.handleDelta)
	return r
}

// errorBody is the JSON:API-ish error shape clients of the original intake
// endpoint expect.
type errorBody struct {
	Errors []errorEntry `json:"errors"`
}

type errorEntry struct {
	Title string `json:"title"`
}

func writeErrors(w http.ResponseWriter, code int, titles ...string) {
	body := errorBody{}
	for _, t := range titles {
		body.Errors = append(body.Errors, errorEntry{Title: t})
	}
	writeJSON(w, code, body)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !jsonContentType(r) {
		writeErrors(w, http.StatusBadRequest, "Content-Type not valid, only application/json or application/ld+json are accepted")
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeErrors(w, http.StatusBadRequest, "Request body is not valid JSON")
		return
	}
	if len(raw) > 0 && raw[0] == '[' {
		writeErrors(w, http.StatusBadRequest, "Submission body must be a single object, not an array")
		return
	}
	var req models.SubmissionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, "Request body is not a valid submission")
		return
	}

	if titles := validateSubmission(req); len(titles) > 0 {
		telemetry.SubmissionsRejected.Inc()
		writeErrors(w, http.StatusBadRequest, titles...)
		return
	}

	orgID, err := s.store.VerifyVendor(r.Context(), s.cfg.AccountGraph, req.Vendor, req.Key, req.Organization)
	if err != nil {
		s.log.Error("vendor verification failed", "vendor", req.Vendor, "err", err)
		writeErrors(w, http.StatusInternalServerError, "Could not verify the vendor's key")
		return
	}
	if orgID == "" {
		telemetry.SubmissionsRejected.Inc()
		writeErrors(w, http.StatusUnauthorized, "The vendor's key does not grant access on behalf of this organization")
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), req.Vendor)
		if err != nil {
			s.log.Error("rate limiter unavailable", "vendor", req.Vendor, "err", err)
			writeErrors(w, http.StatusInternalServerError, "Rate limiter unavailable")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(s.limiter.RetryAfter().Seconds())+1))
			writeErrors(w, http.StatusTooManyRequests, "Too many submissions for this vendor, try again later")
			return
		}
	}

	graph := s.cfg.OrganizationGraph(orgID)
	submitted, err := s.store.IsSubmitted(r.Context(), graph, req.SubmittedResource)
	if err != nil {
		s.log.Error("could not check for an earlier submission", "resource", req.SubmittedResource, "err", err)
		writeErrors(w, http.StatusInternalServerError, "Could not check for an earlier submission")
		return
	}
	if submitted {
		writeErrors(w, http.StatusConflict,
			fmt.Sprintf("The resource %s has been submitted before", req.SubmittedResource))
		return
	}

	job, err := s.submitter.ScheduleSubmission(r.Context(), graph, req)
	if err != nil {
		s.log.Error("could not schedule the submission", "resource", req.SubmittedResource, "err", err)
		writeErrors(w, http.StatusInternalServerError, "Could not schedule the submission")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job": job})
}

func validateSubmission(req models.SubmissionRequest) []string {
	var titles []string
	if req.Href == "" {
		titles = append(titles, "Property href is required")
	} else if u, err := url.Parse(req.Href); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		titles = append(titles, "Property href must be a valid http(s) URL")
	}
	if req.SubmittedResource == "" {
		titles = append(titles, "Property submittedResource is required")
	}
	if req.Organization == "" {
		titles = append(titles, "Property organization is required")
	}
	if req.Vendor == "" {
		titles = append(titles, "Property vendor is required")
	}
	if req.Key == "" {
		titles = append(titles, "Property key is required")
	}
	if req.Authentication != nil && req.Authentication.Scheme == "" {
		titles = append(titles, "Property authentication.scheme is required when authentication is given")
	}
	return titles
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Acquire(r.Context()); err != nil {
		if errors.Is(err, flow.ErrQueueFull) || errors.Is(err, flow.ErrGateTimeout) {
			telemetry.DeltaRejects.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.GateMaxWait.Seconds())+1))
			writeErrors(w, http.StatusServiceUnavailable, "Too many unprocessed delta batches, try again later")
			return
		}
		writeErrors(w, http.StatusInternalServerError, "Could not admit the delta batch")
		return
	}
	defer func() {
		s.gate.Release()
		telemetry.GateDepthGauge.Set(float64(s.gate.Depth()))
	}()
	telemetry.GateDepthGauge.Set(float64(s.gate.Depth()))

	var batch models.DeltaBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeErrors(w, http.StatusBadRequest, "Delta body is not valid JSON")
		return
	}

	// The notifier redelivers on non-2xx. Failures already recorded as Error
	// records were acknowledged inside the dispatcher; only infrastructure
	// failures bubble up here and earn a retry.
	if err := s.dispatcher.Dispatch(r.Context(), batch); err != nil {
		s.log.Error("delta batch processing failed", "err", err)
		writeErrors(w, http.StatusInternalServerError, "Could not process the delta batch")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		writeErrors(w, http.StatusBadRequest, "Query parameter resource is required")
		return
	}
	status, err := s.store.SubmissionStatusFor(r.Context(), resource)
	if errors.Is(err, graphstore.ErrNotResolved) {
		writeErrors(w, http.StatusNotFound, "No submission found for this resource")
		return
	}
	if err != nil {
		s.log.Error("could not read submission status", "resource", resource, "err", err)
		writeErrors(w, http.StatusInternalServerError, "Could not read the submission status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func jsonContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	mt = strings.ToLower(mt)
	return mt == "application/json" || mt == "application/ld+json"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
