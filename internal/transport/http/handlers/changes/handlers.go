package changeshandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/transport/http/api"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type Handler struct {
	Ledger *changes.Ledger
	Paging shared.Paging
}

func NewHandler(ledger *changes.Ledger, paging shared.Paging) *Handler {
	return &Handler{Ledger: ledger, Paging: paging}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/changes", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRecord)
		r.Get("/components/{componentType}/{componentID}", h.handleResolve)
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
	filter := changes.Filter{
		ComponentType: changes.ComponentType(q.Get("componentType")),
		ComponentID:   q.Get("componentId"),
		ChangeType:    changes.ChangeKind(q.Get("changeType")),
		Since:         v.Date("since", q.Get("since")),
	}
	if filter.ComponentType != "" && !filter.ComponentType.Valid() {
		v.Add("componentType", "unknown component type")
	}
	if filter.ChangeType != "" && !filter.ChangeType.Valid() {
		v.Add("changeType", "must be one of created updated deleted")
	}
	page := shared.ParsePage(r, h.Paging.Default, h.Paging.Max, v)
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	result, err := h.Ledger.List(r.Context(), p.OrganizationID, filter, page)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

type recordRequest struct {
	ComponentType changes.ComponentType `json:"componentType"`
	ComponentID   string                `json:"componentId"`
	ChangeType    changes.ChangeKind    `json:"changeType"`
	FieldName     string                `json:"fieldName"`
	OldValue      json.RawMessage       `json:"oldValue"`
	NewValue      json.RawMessage       `json:"newValue"`
}

// handleRecord appends an entry on behalf of a collaborator that changed a
// component outside this service. The component must still resolve unless the
// change is a deletion.
func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var in recordRequest
	if err := shared.DecodeJSON(r, &in); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	if in.ChangeType != changes.Deleted {
		exists, err := h.Ledger.ResolveComponent(r.Context(), p.OrganizationID, in.ComponentType, in.ComponentID)
		if err != nil {
			api.FailError(w, err, reqID)
			return
		}
		if !exists {
			api.Fail(w, http.StatusNotFound, "not_found", "resource not found", reqID)
			return
		}
	}
	entry, err := h.Ledger.RecordChange(r.Context(), changes.NewEntry{
		OrganizationID: p.OrganizationID,
		ComponentType:  in.ComponentType,
		ComponentID:    in.ComponentID,
		ChangeType:     in.ChangeType,
		FieldName:      in.FieldName,
		OldValue:       rawOrNil(in.OldValue),
		NewValue:       rawOrNil(in.NewValue),
		Actor:          shared.Actor(r, p),
	})
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Created(w, entry, reqID)
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	exists, err := h.Ledger.ResolveComponent(r.Context(), p.OrganizationID, changes.ComponentType(chi.URLParam(r, "componentType")), chi.URLParam(r, "componentID"))
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, map[string]bool{"exists": exists}, reqID)
}
