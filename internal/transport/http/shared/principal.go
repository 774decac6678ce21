package shared

import (
	"net/http"
	"strings"

	"privacyhub/internal/auth"
	"privacyhub/internal/domain/changes"
	"privacyhub/internal/requestctx"
	"privacyhub/internal/transport/http/api"
)

// Paging carries the configured list limits into handlers.
type Paging struct {
	Default int
	Max     int
}

// Caller returns the authenticated principal, writing a 401 when there is none.
func Caller(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := requestctx.GetPrincipal(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestctx.GetRequestID(r.Context()))
		return auth.Principal{}, false
	}
	return p, true
}

// Actor attributes a mutation to the caller. X-Change-Reason lands on every
// change entry the request produces.
func Actor(r *http.Request, p auth.Principal) changes.Actor {
	return changes.Actor{ID: p.ActorID, Reason: strings.TrimSpace(r.Header.Get("X-Change-Reason"))}
}
