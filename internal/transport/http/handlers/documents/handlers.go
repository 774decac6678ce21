package documentshandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/documents"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *documents.Store
	Ledger *changes.Ledger
	Paging shared.Paging
}

func NewHandler(store *documents.Store, ledger *changes.Ledger, paging shared.Paging) *Handler {
	return &Handler{Store: store, Ledger: ledger, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/stale", h.handleStale)
		r.Route("/{documentID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Put("/status", h.handleStatus)
			r.Get("/impacts", h.handleListImpacts)
			r.Post("/impacts", h.handleLinkImpact)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := documents.Filter{
		DocumentType: strings.ToUpper(q.Get("documentType")),
		Status:       strings.ToLower(q.Get("status")),
		ActivityID:   q.Get("activityId"),
	}
	v.Enum("status", filter.Status, documents.StatusDraft, documents.StatusFinal, documents.StatusSuperseded, documents.StatusArchived)
	page := shared.ParsePage(r, h.Paging.Default, h.Paging.Max, v)
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	result, err := h.Store.List(r.Context(), p.OrganizationID, filter, page)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in documents.CreateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	doc, err := h.Store.Create(r.Context(), p.OrganizationID, in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, doc, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	doc, err := h.Store.Get(r.Context(), p.OrganizationID, chi.URLParam(r, "documentID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if doc == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, doc, reqID)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in struct {
		Status string `json:"status"`
	}
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	doc, err := h.Store.UpdateStatus(r.Context(), p.OrganizationID, chi.URLParam(r, "documentID"), in.Status, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, doc, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), p.OrganizationID, chi.URLParam(r, "documentID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleStale(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	stale, err := h.Ledger.StaleDocuments(r.Context(), p.OrganizationID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, stale, reqID)
}

func (h *Handler) handleListImpacts(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	impacts, err := h.Ledger.ListAffectedDocuments(r.Context(), p.OrganizationID, chi.URLParam(r, "documentID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, impacts, reqID)
}

func (h *Handler) handleLinkImpact(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in struct {
		ChangeLogID string             `json:"changeLogId"`
		ImpactType  changes.ImpactType `json:"impactType"`
		Description string             `json:"description"`
	}
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	link, err := h.Ledger.LinkAffectedDocument(r.Context(), p.OrganizationID, chi.URLParam(r, "documentID"), in.ChangeLogID, in.ImpactType, in.Description)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, link, reqID)
}
