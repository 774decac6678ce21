package activitieshandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/activities"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store  *activities.Store
	Paging shared.Paging
	Now    func() time.Time
}

func NewHandler(store *activities.Store, paging shared.Paging) *Handler {
	return &Handler{Store: store, Paging: paging, Now: time.Now}
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/due-for-review", h.handleDueForReview)
		r.Route("/{activityID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Route("/{relation}", func(r chi.Router) {
				r.Get("/", h.handleListLinked)
				r.Put("/", h.handleSync)
				r.Post("/", h.handleLink)
				r.Delete("/{targetID}", h.handleUnlink)
			})
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
	filter := activities.Filter{
		Status:          q.Get("status"),
		RequiresDPIA:    v.Bool("requiresDpia", q.Get("requiresDpia")),
		ReviewDueBefore: v.Date("reviewDueBefore", q.Get("reviewDueBefore")),
		OwnerUnitID:     q.Get("ownerUnitId"),
	}
	v.Enum("status", filter.Status, activities.StatusDraft, activities.StatusActive, activities.StatusArchived)
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

func (h *Handler) handleDueForReview(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	page := shared.ParsePage(r, h.Paging.Default, h.Paging.Max, v)
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	result, err := h.Store.DueForReview(r.Context(), p.OrganizationID, h.Now(), page)
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
	var in activities.CreateInput
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
	detail, err := h.Store.Detail(r.Context(), p.OrganizationID, chi.URLParam(r, "activityID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if detail == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, detail, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in activities.UpdateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	a, err := h.Store.Update(r.Context(), p.OrganizationID, chi.URLParam(r, "activityID"), in, shared.Actor(r, p))
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
	if err := h.Store.Delete(r.Context(), p.OrganizationID, chi.URLParam(r, "activityID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func relation(w http.ResponseWriter, r *http.Request) (activities.Relation, bool) {
	rel, ok := activities.RelationByName(chi.URLParam(r, "relation"))
	if !ok {
		api.FailError(w, dal.ErrNotFoundOrForbidden, middleware.GetRequestID(r.Context()))
	}
	return rel, ok
}

func (h *Handler) handleListLinked(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	rel, ok := relation(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	ids, err := h.Store.ListLinked(r.Context(), rel, p.OrganizationID, chi.URLParam(r, "activityID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{rel.Field: ids}, reqID)
}

// handleSync replaces the whole set of links with the ids in the body.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	rel, ok := relation(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in idsRequest
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	result, err := h.Store.Sync(r.Context(), rel, p.OrganizationID, chi.URLParam(r, "activityID"), in.IDs, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	rel, ok := relation(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in idsRequest
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	added, err := h.Store.Link(r.Context(), rel, p.OrganizationID, chi.URLParam(r, "activityID"), in.IDs, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"added": added}, reqID)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	rel, ok := relation(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	removed, err := h.Store.Unlink(r.Context(), rel, p.OrganizationID, chi.URLParam(r, "activityID"), chi.URLParam(r, "targetID"), shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"removed": removed}, reqID)
}
