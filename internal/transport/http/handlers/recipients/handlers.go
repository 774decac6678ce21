package recipientshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/hierarchy"
	"privacyhub/internal/domain/recipients"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *recipients.Store
	Paging shared.Paging
}

func NewHandler(store *recipients.Store, paging shared.Paging) *Handler {
	return &Handler{Store: store, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recipients", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/orphaned", h.handleOrphaned)
		r.Get("/unlinked", h.handleUnlinked)
		r.Route("/{recipientID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Get("/children", h.handleChildren)
			r.Get("/tree", h.handleTree)
			r.Get("/ancestors", h.handleAncestors)
			r.Get("/depth", h.handleDepth)
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
	filter := recipients.Filter{
		RecipientType: q.Get("recipientType"),
		HierarchyType: hierarchy.Type(q.Get("hierarchyType")),
		ParentID:      q.Get("parentId"),
		IsActive:      v.Bool("isActive", q.Get("isActive")),
	}
	if roots := v.Bool("rootsOnly", q.Get("rootsOnly")); roots != nil {
		filter.RootsOnly = *roots
	}
	v.Enum("hierarchyType", string(filter.HierarchyType), string(hierarchy.ProcessorChain), string(hierarchy.Organizational))
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
	var in recipients.CreateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	detail, err := h.Store.Create(r.Context(), p.OrganizationID, in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, detail, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	rec, err := h.Store.Get(r.Context(), p.OrganizationID, chi.URLParam(r, "recipientID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if rec == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, rec, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in recipients.UpdateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	rec, err := h.Store.Update(r.Context(), p.OrganizationID, chi.URLParam(r, "recipientID"), in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, rec, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), p.OrganizationID, chi.URLParam(r, "recipientID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleNodes(w http.ResponseWriter, r *http.Request, fetch func(orgID, id string) ([]hierarchy.Node, error)) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	nodes, err := fetch(p.OrganizationID, chi.URLParam(r, "recipientID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if nodes == nil {
		nodes = []hierarchy.Node{}
	}
	api.Success(w, nodes, reqID)
}

func (h *Handler) handleChildren(w http.ResponseWriter, r *http.Request) {
	h.handleNodes(w, r, func(orgID, id string) ([]hierarchy.Node, error) {
		return h.Store.Children(r.Context(), orgID, id)
	})
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	h.handleNodes(w, r, func(orgID, id string) ([]hierarchy.Node, error) {
		return h.Store.Tree(r.Context(), orgID, id)
	})
}

func (h *Handler) handleAncestors(w http.ResponseWriter, r *http.Request) {
	h.handleNodes(w, r, func(orgID, id string) ([]hierarchy.Node, error) {
		return h.Store.Ancestors(r.Context(), orgID, id)
	})
}

func (h *Handler) handleOrphaned(w http.ResponseWriter, r *http.Request) {
	h.handleNodes(w, r, func(orgID, _ string) ([]hierarchy.Node, error) {
		return h.Store.Orphaned(r.Context(), orgID)
	})
}

func (h *Handler) handleUnlinked(w http.ResponseWriter, r *http.Request) {
	h.handleNodes(w, r, func(orgID, _ string) ([]hierarchy.Node, error) {
		return h.Store.Unlinked(r.Context(), orgID)
	})
}

func (h *Handler) handleDepth(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	depth, err := h.Store.Depth(r.Context(), p.OrganizationID, chi.URLParam(r, "recipientID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]int{"depth": depth}, reqID)
}
