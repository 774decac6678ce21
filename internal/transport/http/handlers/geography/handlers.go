package geographyhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Store *geography.Store
}

func NewHandler(store *geography.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/locations/{kind}", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{locationID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/move", h.handleMove)
			r.Post("/deactivate", h.handleDeactivate)
		})
	})
	r.Get("/transfers", h.handleAssessOrganization)
	r.Get("/transfers/{anchor}/{anchorID}", h.handleAssess)
}

func locationKind(w http.ResponseWriter, r *http.Request) (geography.LocationKind, bool) {
	kind := geography.LocationKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		api.FailError(w, dal.ErrNotFoundOrForbidden, middleware.GetRequestID(r.Context()))
		return "", false
	}
	return kind, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	kind, ok := locationKind(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	v := shared.NewValidator()
	ownerID := q.Get("ownerId")
	if ownerID == "" {
		v.Add("ownerId", "is required")
	}
	includeInactive := v.Bool("includeInactive", q.Get("includeInactive"))
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	locations, err := h.Store.ListLocations(r.Context(), kind, p.OrganizationID, ownerID, includeInactive != nil && *includeInactive)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, locations, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	kind, ok := locationKind(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in geography.LocationInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	loc, err := h.Store.CreateLocation(r.Context(), kind, p.OrganizationID, in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, loc, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	kind, ok := locationKind(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	loc, err := h.Store.GetLocation(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "locationID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if loc == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, loc, reqID)
}

// handleMove deactivates the location and creates its replacement in the new
// country, so earlier transfer assessments stay explainable.
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	kind, ok := locationKind(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in geography.MoveInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	loc, err := h.Store.MoveLocation(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "locationID"), in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, loc, reqID)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	kind, ok := locationKind(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeactivateLocation(r.Context(), kind, p.OrganizationID, chi.URLParam(r, "locationID"), shared.Actor(r, p)); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleAssessOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	h.assess(w, r, geography.Anchor{Kind: geography.AnchorOrganization, ID: p.OrganizationID}, p.OrganizationID)
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	anchor := geography.Anchor{Kind: geography.AnchorKind(chi.URLParam(r, "anchor")), ID: chi.URLParam(r, "anchorID")}
	switch anchor.Kind {
	case geography.AnchorAsset, geography.AnchorRecipient, geography.AnchorActivity:
	default:
		api.FailError(w, dal.ErrNotFoundOrForbidden, middleware.GetRequestID(r.Context()))
		return
	}
	h.assess(w, r, anchor, p.OrganizationID)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request, anchor geography.Anchor, orgID string) {
	reqID := middleware.GetRequestID(r.Context())
	assessment, err := h.Store.AssessCrossBorderTransfers(r.Context(), anchor, orgID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, assessment, reqID)
}
