package assetshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/assets"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *assets.Store
	Paging shared.Paging
}

func NewHandler(store *assets.Store, paging shared.Paging) *Handler {
	return &Handler{Store: store, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{assetID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Get("/data-categories", h.handleListCategories)
			r.Put("/data-categories", h.handleSyncCategories)
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
	filter := assets.Filter{AssetType: q.Get("assetType"), IsActive: v.Bool("isActive", q.Get("isActive"))}
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
	var in assets.CreateInput
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
	a, err := h.Store.Get(r.Context(), p.OrganizationID, chi.URLParam(r, "assetID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if a == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, a, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in assets.UpdateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	a, err := h.Store.Update(r.Context(), p.OrganizationID, chi.URLParam(r, "assetID"), in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, a, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), p.OrganizationID, chi.URLParam(r, "assetID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	ids, err := h.Store.ListDataCategories(r.Context(), p.OrganizationID, chi.URLParam(r, "assetID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"dataCategoryIds": ids}, reqID)
}

func (h *Handler) handleSyncCategories(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	result, err := h.Store.SyncDataCategories(r.Context(), p.OrganizationID, chi.URLParam(r, "assetID"), in.IDs, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}
