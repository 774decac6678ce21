package relations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
	"privacyhub/internal/platform/metrics"
)

type Engine struct {
	DB *pgxpool.Pool
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{DB: pool}
}

// Sync makes the set of right ids linked to anchorID equal desired. Only the
// difference is written and the whole change commits or rolls back as a unit.
func (e *Engine) Sync(ctx context.Context, j Junction, anchorID, orgID string, desired []string) (SyncResult, error) {
	return db.InTxResult(ctx, e.DB, func(tx pgx.Tx) (SyncResult, error) {
		return SyncTx(ctx, tx, j, anchorID, orgID, desired)
	})
}

// Link adds rightIDs to the anchor, ignoring ones already linked. It returns the
// ids that were newly linked.
func (e *Engine) Link(ctx context.Context, j Junction, anchorID, orgID string, rightIDs []string) ([]string, error) {
	return db.InTxResult(ctx, e.DB, func(tx pgx.Tx) ([]string, error) {
		return LinkTx(ctx, tx, j, anchorID, orgID, rightIDs)
	})
}

// Unlink removes one link. A right id that is not linked, or is malformed, is
// not an error. It reports whether a row was removed.
func (e *Engine) Unlink(ctx context.Context, j Junction, anchorID, orgID, rightID string) (bool, error) {
	return db.InTxResult(ctx, e.DB, func(tx pgx.Tx) (bool, error) {
		return UnlinkTx(ctx, tx, j, anchorID, orgID, rightID)
	})
}

func (e *Engine) List(ctx context.Context, j Junction, anchorID, orgID string) ([]string, error) {
	if err := tenancy.Require(ctx, e.DB, j.Anchor, anchorID, orgID); err != nil {
		return nil, err
	}
	return current(ctx, e.DB, j, anchorID, orgID)
}

func SyncTx(ctx context.Context, tx pgx.Tx, j Junction, anchorID, orgID string, desired []string) (SyncResult, error) {
	if err := tenancy.RequireForUpdate(ctx, tx, j.Anchor, anchorID, orgID); err != nil {
		return SyncResult{}, err
	}
	desired = tenancy.Dedupe(tenancy.Canonical(desired))
	if err := tenancy.RequireAll(ctx, tx, j.Right, desired, orgID); err != nil {
		return SyncResult{}, err
	}
	have, err := current(ctx, tx, j, anchorID, orgID)
	if err != nil {
		return SyncResult{}, err
	}

	res := Diff(have, desired)
	if len(res.Removed) > 0 {
		query := fmt.Sprintf("DELETE FROM %s WHERE organization_id = $1 AND %s = $2 AND %s = ANY($3::uuid[])", j.table(), j.anchor(), j.right())
		if _, err := tx.Exec(ctx, query, orgID, anchorID, res.Removed); err != nil {
			return SyncResult{}, dal.MapError(err)
		}
	}
	if len(res.Added) > 0 {
		if _, err := insert(ctx, tx, j, anchorID, orgID, res.Added); err != nil {
			return SyncResult{}, err
		}
	}
	metrics.RelationRows(j.Name, "insert", len(res.Added))
	metrics.RelationRows(j.Name, "delete", len(res.Removed))
	return res, nil
}

func LinkTx(ctx context.Context, tx pgx.Tx, j Junction, anchorID, orgID string, rightIDs []string) ([]string, error) {
	if err := tenancy.RequireForUpdate(ctx, tx, j.Anchor, anchorID, orgID); err != nil {
		return nil, err
	}
	rightIDs = tenancy.Dedupe(tenancy.Canonical(rightIDs))
	if len(rightIDs) == 0 {
		return []string{}, nil
	}
	if err := tenancy.RequireAll(ctx, tx, j.Right, rightIDs, orgID); err != nil {
		return nil, err
	}
	added, err := insert(ctx, tx, j, anchorID, orgID, rightIDs)
	if err != nil {
		return nil, err
	}
	metrics.RelationRows(j.Name, "insert", len(added))
	return added, nil
}

func UnlinkTx(ctx context.Context, tx pgx.Tx, j Junction, anchorID, orgID, rightID string) (bool, error) {
	if err := tenancy.RequireForUpdate(ctx, tx, j.Anchor, anchorID, orgID); err != nil {
		return false, err
	}
	if _, ok := tenancy.ParseID(rightID); !ok {
		return false, nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE organization_id = $1 AND %s = $2 AND %s = $3", j.table(), j.anchor(), j.right())
	tag, err := tx.Exec(ctx, query, orgID, anchorID, rightID)
	if err != nil {
		return false, dal.MapError(err)
	}
	removed := tag.RowsAffected() > 0
	if removed {
		metrics.RelationRows(j.Name, "delete", 1)
	}
	return removed, nil
}

// ListTx reads linked ids without re-checking the anchor.
func ListTx(ctx context.Context, q dal.Querier, j Junction, anchorID, orgID string) ([]string, error) {
	return current(ctx, q, j, anchorID, orgID)
}

func current(ctx context.Context, q dal.Querier, j Junction, anchorID, orgID string) ([]string, error) {
	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE organization_id = $1 AND %s = $2 ORDER BY created_at, %s", j.right(), j.table(), j.anchor(), j.right())
	rows, err := q.Query(ctx, query, orgID, anchorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insert(ctx context.Context, tx pgx.Tx, j Junction, anchorID, orgID string, rightIDs []string) ([]string, error) {
	query := fmt.Sprintf(`
    INSERT INTO %s (organization_id, %s, %s)
    SELECT $1::uuid, $2::uuid, r FROM unnest($3::uuid[]) AS r
    ON CONFLICT DO NOTHING
    RETURNING %s::text
  `, j.table(), j.anchor(), j.right(), j.right())
	rows, err := tx.Query(ctx, query, orgID, anchorID, rightIDs)
	if err != nil {
		return nil, dal.MapError(err)
	}
	defer rows.Close()

	added := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		added = append(added, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dal.MapError(err)
	}
	return added, nil
}
