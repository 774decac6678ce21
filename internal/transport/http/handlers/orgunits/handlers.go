package orgunitshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/orgunits"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *orgunits.Store
	Paging shared.Paging
}

func NewHandler(store *orgunits.Store, paging shared.Paging) *Handler {
	return &Handler{Store: store, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/org-units", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{unitID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Get("/tree", h.handleTree)
			r.Get("/ancestors", h.handleAncestors)
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
	filter := orgunits.Filter{ParentID: q.Get("parentId")}
	if roots := v.Bool("rootsOnly", q.Get("rootsOnly")); roots != nil {
		filter.RootsOnly = *roots
	}
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
	var in orgunits.CreateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	unit, err := h.Store.Create(r.Context(), p.OrganizationID, in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, unit, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	unit, err := h.Store.Get(r.Context(), p.OrganizationID, chi.URLParam(r, "unitID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if unit == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, unit, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in orgunits.UpdateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	unit, err := h.Store.Update(r.Context(), p.OrganizationID, chi.URLParam(r, "unitID"), in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, unit, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), p.OrganizationID, chi.URLParam(r, "unitID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	nodes, err := h.Store.Tree(r.Context(), p.OrganizationID, chi.URLParam(r, "unitID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, nodes, reqID)
}

func (h *Handler) handleAncestors(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	nodes, err := h.Store.Ancestors(r.Context(), p.OrganizationID, chi.URLParam(r, "unitID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, nodes, reqID)
}
