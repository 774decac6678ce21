package organizationshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/organizations"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

// Handler exposes the caller's own organization. Creating and listing
// organizations is an operator concern and has no route here.
type Handler struct {
	Store *organizations.Store
}

func NewHandler(store *organizations.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/organization", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	org, err := h.Store.Get(r.Context(), p.OrganizationID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if org == nil {
		api.FailError(w, dal.ErrNotFoundOrForbidden, reqID)
		return
	}
	api.Success(w, org, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in organizations.UpdateInput
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	org, err := h.Store.Update(r.Context(), p.OrganizationID, in, shared.Actor(r, p))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, org, reqID)
}
