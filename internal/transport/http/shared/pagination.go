package shared

import (
	"net/http"
	"strconv"

	"privacyhub/internal/domain/dal"
)

// ParsePage reads ?cursor= and ?limit=. The cursor is opaque here; stores
// decode and reject malformed tokens.
func ParsePage(r *http.Request, defaultLimit, maxLimit int, v *Validator) dal.Page {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("limit", "must be a positive integer")
		} else {
			limit = n
		}
	}
	return dal.Page{Cursor: q.Get("cursor"), Limit: dal.NormalizeLimit(limit, defaultLimit, maxLimit)}
}
