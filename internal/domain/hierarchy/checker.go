package hierarchy

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/metrics"
)

// walkLimit bounds ancestor walks on corrupted data.
const walkLimit = 1000

type Checker struct {
	Spec Spec
}

func NewChecker(spec Spec) Checker {
	return Checker{Spec: spec}
}

func (c Checker) table() string { return pgx.Identifier{string(c.Spec.Table)}.Sanitize() }

func (c Checker) typeExpr() string {
	if c.Spec.TypeColumn == "" {
		return "'" + string(c.Spec.FixedType) + "'"
	}
	return pgx.Identifier{c.Spec.TypeColumn}.Sanitize()
}

func (c Checker) columns() string {
	return "id::text, parent_id::text, name, " + c.typeExpr()
}

func scanNode(row pgx.Row) (Node, error) {
	var n Node
	var typ string
	if err := row.Scan(&n.ID, &n.ParentID, &n.Name, &typ); err != nil {
		return Node{}, err
	}
	n.Type = Type(typ)
	return n, nil
}

func (c Checker) node(ctx context.Context, q dal.Querier, id, orgID string) (Node, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return Node{}, dal.ErrNotFoundOrForbidden
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = $1 AND id = $2", c.columns(), c.table())
	n, err := scanNode(q.QueryRow(ctx, query, orgID, id))
	if err != nil {
		return Node{}, dal.MapError(err)
	}
	return n, nil
}

func (c Checker) parentFunc(q dal.Querier, orgID string, cache map[string]Node) ParentFunc {
	return func(ctx context.Context, id string) (string, error) {
		n, ok := cache[id]
		if !ok {
			var err error
			n, err = c.node(ctx, q, id, orgID)
			if err != nil {
				return "", err
			}
			cache[id] = n
		}
		if n.ParentID == nil {
			return "", nil
		}
		return *n.ParentID, nil
	}
}

func (c Checker) DirectChildren(ctx context.Context, q dal.Querier, nodeID, orgID string) ([]Node, error) {
	if err := tenancy.Require(ctx, q, c.Spec.Table, nodeID, orgID); err != nil {
		return nil, err
	}
	return c.children(ctx, q, []string{nodeID}, orgID, 1)
}

func (c Checker) children(ctx context.Context, q dal.Querier, parents []string, orgID string, depth int) ([]Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = $1 AND parent_id = ANY($2::uuid[]) ORDER BY name, id", c.columns(), c.table())
	rows, err := q.Query(ctx, query, orgID, parents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		n.Depth = depth
		out = append(out, n)
	}
	return out, rows.Err()
}

// DescendantTree returns every node below nodeID in breadth-first order with
// Depth set relative to nodeID. maxDepth <= 0 means unlimited.
func (c Checker) DescendantTree(ctx context.Context, q dal.Querier, nodeID, orgID string, maxDepth int) ([]Node, error) {
	if err := tenancy.Require(ctx, q, c.Spec.Table, nodeID, orgID); err != nil {
		return nil, err
	}
	visited := map[string]struct{}{nodeID: {}}
	frontier := []string{nodeID}
	out := []Node{}
	for depth := 1; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		level, err := c.children(ctx, q, frontier, orgID, depth)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, n := range level {
			if _, seen := visited[n.ID]; seen {
				continue
			}
			visited[n.ID] = struct{}{}
			frontier = append(frontier, n.ID)
			out = append(out, n)
		}
	}
	return out, nil
}

// AncestorChain returns the parent, grandparent and so on up to the root.
func (c Checker) AncestorChain(ctx context.Context, q dal.Querier, nodeID, orgID string) ([]Node, error) {
	cache := map[string]Node{}
	start, err := c.node(ctx, q, nodeID, orgID)
	if err != nil {
		return nil, err
	}
	cache[nodeID] = start

	ids, cycle, err := Walk(ctx, nodeID, c.parentFunc(q, orgID, cache), walkLimit)
	if err != nil {
		return nil, err
	}
	if cycle {
		return nil, ErrCycle
	}
	out := make([]Node, 0, len(ids))
	for i, id := range ids {
		n, ok := cache[id]
		if !ok {
			if n, err = c.node(ctx, q, id, orgID); err != nil {
				return nil, err
			}
		}
		n.Depth = i + 1
		out = append(out, n)
	}
	return out, nil
}

// CheckCircularReference reports whether making parentID the parent of nodeID
// would close a loop. Self-reference always does.
func (c Checker) CheckCircularReference(ctx context.Context, q dal.Querier, nodeID, parentID, orgID string) (bool, error) {
	nodeID, parentID = canonical(nodeID), canonical(parentID)
	if nodeID == parentID {
		return true, nil
	}
	if err := tenancy.Require(ctx, q, c.Spec.Table, parentID, orgID); err != nil {
		return false, err
	}
	ids, cycle, err := Walk(ctx, parentID, c.parentFunc(q, orgID, map[string]Node{}), walkLimit)
	if err != nil {
		return false, err
	}
	return cycle || contains(ids, nodeID), nil
}

// CalculateDepth is the number of ancestors of nodeID; roots are 0.
func (c Checker) CalculateDepth(ctx context.Context, q dal.Querier, nodeID, orgID string) (int, error) {
	if err := tenancy.Require(ctx, q, c.Spec.Table, nodeID, orgID); err != nil {
		return 0, err
	}
	ids, cycle, err := Walk(ctx, nodeID, c.parentFunc(q, orgID, map[string]Node{}), walkLimit)
	if err != nil {
		return 0, err
	}
	if cycle {
		return 0, ErrCycle
	}
	return len(ids), nil
}

// SubtreeHeight is the depth of the deepest descendant below nodeID, 0 for a leaf.
func (c Checker) SubtreeHeight(ctx context.Context, q dal.Querier, nodeID, orgID string) (int, error) {
	tree, err := c.DescendantTree(ctx, q, nodeID, orgID, 0)
	if err != nil {
		return 0, err
	}
	height := 0
	for _, n := range tree {
		if n.Depth > height {
			height = n.Depth
		}
	}
	return height, nil
}

// ValidateParent checks that parentID may become the parent of nodeID under
// hierarchy type typ. nodeID is empty for a node that does not exist yet. It
// must run inside the writing transaction before the row is persisted.
func (c Checker) ValidateParent(ctx context.Context, q dal.Querier, nodeID, parentID, orgID string, typ Type) error {
	if parentID == "" {
		return nil
	}
	nodeID, parentID = canonical(nodeID), canonical(parentID)
	if !typ.Valid() {
		return dal.Invalid("hierarchyType", "unknown hierarchy type")
	}
	if nodeID != "" && nodeID == parentID {
		return c.violation("cycle", ErrCycle)
	}
	parent, err := c.node(ctx, q, parentID, orgID)
	if err != nil {
		return err
	}
	if parent.Type != typ {
		return c.violation("type_mismatch", ErrTypeMismatch)
	}

	height := 0
	if nodeID != "" {
		cyclic, err := c.CheckCircularReference(ctx, q, nodeID, parentID, orgID)
		if err != nil {
			return err
		}
		if cyclic {
			return c.violation("cycle", ErrCycle)
		}
		if height, err = c.SubtreeHeight(ctx, q, nodeID, orgID); err != nil {
			return err
		}
	}

	parentDepth, err := c.CalculateDepth(ctx, q, parentID, orgID)
	if err != nil {
		if errors.Is(err, ErrCycle) {
			return c.violation("cycle", err)
		}
		return err
	}
	if parentDepth+1+height > typ.MaxDepth() {
		return c.violation("depth", errors.Wrapf(ErrDepthExceeded, "%s allows depth %d", typ, typ.MaxDepth()))
	}
	return nil
}

func (c Checker) violation(reason string, err error) error {
	metrics.HierarchyViolation(reason)
	return err
}

// FindOrphaned lists nodes matching rule that have no parent.
func (c Checker) FindOrphaned(ctx context.Context, q dal.Querier, orgID string, rule Rule) ([]Node, error) {
	return c.scan(ctx, q, orgID, rule, "parent_id IS NULL")
}

// FindUnlinked lists nodes matching rule whose RequiredLink column is empty.
func (c Checker) FindUnlinked(ctx context.Context, q dal.Querier, orgID string, rule Rule) ([]Node, error) {
	if rule.RequiredLink == "" {
		return []Node{}, nil
	}
	return c.scan(ctx, q, orgID, rule, pgx.Identifier{rule.RequiredLink}.Sanitize()+" IS NULL")
}

func (c Checker) scan(ctx context.Context, q dal.Querier, orgID string, rule Rule, cond string) ([]Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = $1 AND %s", c.columns(), c.table(), cond)
	args := []any{orgID}
	if rule.Column != "" {
		query += fmt.Sprintf(" AND %s = ANY($2::text[])", pgx.Identifier{rule.Column}.Sanitize())
		args = append(args, rule.Values)
	}
	query += " ORDER BY name, id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
