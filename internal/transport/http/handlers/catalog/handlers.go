package cataloghandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/catalog"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *catalog.Store
	Paging shared.Paging
}

func NewHandler(store *catalog.Store, paging shared.Paging) *Handler {
	return &Handler{Store: store, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	for _, kind := range []catalog.Kind{catalog.Purposes, catalog.DataCategories, catalog.DataSubjectCategories} {
		r.Route("/"+kind.Name, func(r chi.Router) {
			r.Get("/", h.handleList(kind))
			r.Post("/", h.handleCreate(kind))
			r.Route("/{itemID}", func(r chi.Router) {
				r.Get("/", h.handleGet(kind))
				r.Patch("/", h.handleUpdate(kind))
				r.Delete("/", h.handleDelete(kind))
				r.Post("/activate", h.handleSetActive(kind, true))
				r.Post("/deactivate", h.handleSetActive(kind, false))
			})
		})
	}
	r.Get("/countries", h.handleListCountries)
	r.Get("/countries/{code}", h.handleGetCountry)
	r.Route("/transfer-mechanisms", func(r chi.Router) {
		r.Get("/", h.handleListMechanisms)
		r.Post("/", h.handleCreateMechanism)
	})
}

func (h *Handler) handleList(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		reqID := middleware.GetRequestID(r.Context())
		q := r.URL.Query()
		v := shared.NewValidator()
		filter := catalog.Filter{IsActive: v.Bool("isActive", q.Get("isActive")), Search: strings.TrimSpace(q.Get("search"))}
		page := shared.ParsePage(r, h.Paging.Default, h.Paging.Max, v)
		if err := v.Err(); err != nil {
			api.FailError(w, err, reqID)
			return
		}
		items, err := h.Store.List(r.Context(), kind, p.OrganizationID, filter, page)
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		api.Success(w, items, reqID)
	}
}

func (h *Handler) handleCreate(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		reqID := middleware.GetRequestID(r.Context())
		var in catalog.CreateInput
		if err := shared.DecodeJSON(r, &in); err != nil {
			api.FailError(w, err, reqID)
			return
		}
		item, err := h.Store.Create(r.Context(), kind, p.OrganizationID, in, shared.Actor(r, p))
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		api.Created(w, item, reqID)
	}
}

func (h *Handler) handleGet(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		reqID := middleware.GetRequestID(r.Context())
		item, err := h.Store.Get(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "itemID"))
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		if item == nil {
			api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
			return
		}
		api.Success(w, item, reqID)
	}
}

func (h *Handler) handleUpdate(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		reqID := middleware.GetRequestID(r.Context())
		var in catalog.UpdateInput
		if err := shared.DecodeJSON(r, &in); err != nil {
			api.FailError(w, err, reqID)
			return
		}
		item, err := h.Store.Update(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "itemID"), in, shared.Actor(r, p))
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		api.Success(w, item, reqID)
	}
}

func (h *Handler) handleSetActive(kind catalog.Kind, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		reqID := middleware.GetRequestID(r.Context())
		item, err := h.Store.SetActive(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "itemID"), active, shared.Actor(r, p))
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		api.Success(w, item, reqID)
	}
}

func (h *Handler) handleDelete(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.Caller(w, r)
		if !ok {
			return
		}
		if err := h.Store.Delete(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "itemID"), shared.Actor(r, p)); err != nil {
			api.FailError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.NoContent(w)
	}
}

func (h *Handler) handleListCountries(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	v := shared.NewValidator()
	v.Enum("status", status, geography.StatusEU, geography.StatusEEA, geography.StatusAdequate, geography.StatusThirdCountry)
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	countries, err := h.Store.ListCountries(r.Context(), status)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, countries, reqID)
}

func (h *Handler) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	country, err := h.Store.CountryByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if country == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, country, reqID)
}

func (h *Handler) handleListMechanisms(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	mechanisms, err := h.Store.ListMechanisms(r.Context(), p.OrganizationID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, mechanisms, reqID)
}

func (h *Handler) handleCreateMechanism(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in catalog.MechanismInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	m, err := h.Store.CreateMechanism(r.Context(), p.OrganizationID, in)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, m, reqID)
}
