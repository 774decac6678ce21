package hierarchy

import (
	"context"

	"github.com/go-faster/errors"

	"privacyhub/internal/domain/tenancy"
)

// ParentFunc returns the parent of id, or "" for a root.
type ParentFunc func(ctx context.Context, id string) (string, error)

// Walk follows parent links from start and returns the ancestors, nearest
// first. It stops at a root, or when a node repeats, in which case cycle is
// true. limit caps the number of steps; zero means no cap.
func Walk(ctx context.Context, start string, parent ParentFunc, limit int) (chain []string, cycle bool, err error) {
	visited := map[string]struct{}{start: {}}
	current := start
	for {
		if err := ctx.Err(); err != nil {
			return chain, false, err
		}
		next, err := parent(ctx, current)
		if err != nil {
			return chain, false, err
		}
		if next == "" {
			return chain, false, nil
		}
		if _, seen := visited[next]; seen {
			return chain, true, nil
		}
		visited[next] = struct{}{}
		chain = append(chain, next)
		if limit > 0 && len(chain) > limit {
			return chain, false, errors.Wrapf(ErrDepthExceeded, "more than %d ancestors", limit)
		}
		current = next
	}
}

// contains reports whether id is in chain.
func contains(chain []string, id string) bool {
	for _, c := range chain {
		if c == id {
			return true
		}
	}
	return false
}

// canonical lower-cases a well-formed uuid so ids compare the way Postgres
// compares them. Malformed ids are returned unchanged.
func canonical(id string) string {
	if parsed, ok := tenancy.ParseID(id); ok {
		return parsed.String()
	}
	return id
}
