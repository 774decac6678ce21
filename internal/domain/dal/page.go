package dal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxLimit is the hard ceiling for one page; configured page sizes may not
// exceed it.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Page struct {
	Cursor string
	Limit  int
}

type PageResult[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// Cursor is the keyset position of the last row of a page. Rows are ordered by
// (created_at, id) ascending.
type Cursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, Invalid("cursor", "malformed cursor")
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, Invalid("cursor", "malformed cursor")
	}
	if _, err := uuid.Parse(c.ID); err != nil || c.CreatedAt.IsZero() {
		return nil, Invalid("cursor", "malformed cursor")
	}
	return &c, nil
}

// NormalizeLimit clamps limit into [1, max]; zero or negative becomes def.
func NormalizeLimit(limit, def, max int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Keyset appends the cursor predicate, ordering and limit to query. alias is the
// table alias or empty. One extra row is fetched to detect a following page.
func Keyset(query string, args []any, alias string, page Page) (string, []any, int, error) {
	cursor, err := DecodeCursor(page.Cursor)
	if err != nil {
		return "", nil, 0, err
	}
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	if cursor != nil {
		query += fmt.Sprintf(" AND (%[1]screated_at, %[1]sid) > ($%[2]d, $%[3]d)", prefix, len(args)+1, len(args)+2)
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	limit := NormalizeLimit(page.Limit, DefaultLimit, MaxLimit)
	query += fmt.Sprintf(" ORDER BY %[1]screated_at, %[1]sid LIMIT $%[2]d", prefix, len(args)+1)
	args = append(args, limit+1)
	return query, args, limit, nil
}

// Paginate trims the look-ahead row and builds the next cursor from the last
// returned item.
func Paginate[T any](items []T, limit int, key func(T) Cursor) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	if len(items) <= limit {
		return PageResult[T]{Items: items}
	}
	items = items[:limit]
	next := key(items[len(items)-1]).Encode()
	return PageResult[T]{Items: items, NextCursor: &next}
}
