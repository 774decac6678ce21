package jobshandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/platform/jobs"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Jobs *jobs.Service
}

func NewHandler(svc *jobs.Service) *Handler {
	return &Handler{Jobs: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.handleListRuns)
		r.Post("/impact-scan", h.handleImpactScan)
	})
}

// handleImpactScan runs a scan inline, or queues it when ?async=true.
func (h *Handler) handleImpactScan(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	async := v.Bool("async", r.URL.Query().Get("async"))
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if async != nil && *async {
		if !h.Jobs.EnqueueImpactScan(p.OrganizationID) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full, retry later", reqID)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]string{"status": "queued"}, RequestID: reqID})
		return
	}
	result, err := h.Jobs.ScanImpact(r.Context(), p.OrganizationID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v := shared.NewValidator()
			v.Add("limit", "must be a positive integer")
			api.FailError(w, v.Err(), reqID)
			return
		}
		limit = n
	}
	runs, err := h.Jobs.ListRuns(r.Context(), p.OrganizationID, r.URL.Query().Get("jobType"), limit)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, runs, reqID)
}
