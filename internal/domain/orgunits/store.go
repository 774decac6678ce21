package orgunits

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/hierarchy"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

type Store struct {
	DB      *pgxpool.Pool
	checker hierarchy.Checker
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool, checker: hierarchy.NewChecker(hierarchy.OrgUnits)}
}

const columns = `id::text, organization_id::text, parent_id::text, name, description, created_at, updated_at`

func scan(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.OrganizationID, &u.ParentID, &u.Name, &u.Description, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func lockTree(ctx context.Context, tx pgx.Tx, orgID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('org_units:' || $1))`, orgID)
	return err
}

func (s *Store) Create(ctx context.Context, orgID string, in CreateInput, actor changes.Actor) (Unit, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := dal.Validate(in); err != nil {
		return Unit{}, err
	}
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Unit, error) {
		if err := tenancy.Require(ctx, tx, tenancy.Organizations, orgID, orgID); err != nil {
			return Unit{}, err
		}
		if in.ParentID != nil {
			if err := lockTree(ctx, tx, orgID); err != nil {
				return Unit{}, err
			}
			if err := s.checker.ValidateParent(ctx, tx, "", *in.ParentID, orgID, hierarchy.Organizational); err != nil {
				return Unit{}, err
			}
		}
		unit, err := scan(tx.QueryRow(ctx, `
      INSERT INTO org_units (organization_id, parent_id, name, description)
      VALUES ($1,$2,$3,$4)
      RETURNING `+columns, orgID, in.ParentID, in.Name, in.Description))
		if err != nil {
			return Unit{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, changes.OrgUnit, unit.ID, unit, actor); err != nil {
			return Unit{}, err
		}
		return unit, nil
	})
}

func (s *Store) Get(ctx context.Context, orgID, id string) (*Unit, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	unit, err := get(ctx, s.DB, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func get(ctx context.Context, q dal.Querier, orgID, id string) (Unit, error) {
	unit, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM org_units WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Unit{}, dal.MapError(err)
	}
	return unit, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Unit], error) {
	query := `SELECT ` + columns + ` FROM org_units WHERE organization_id = $1`
	args := []any{orgID}
	switch {
	case filter.RootsOnly:
		query += " AND parent_id IS NULL"
	case filter.ParentID != "":
		if _, ok := tenancy.ParseID(filter.ParentID); !ok {
			return dal.PageResult[Unit]{}, dal.Invalid("parentId", "must be a UUID")
		}
		query += fmt.Sprintf(" AND parent_id = $%d", len(args)+1)
		args = append(args, filter.ParentID)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Unit]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Unit]{}, err
	}
	defer rows.Close()

	var items []Unit
	for rows.Next() {
		unit, err := scan(rows)
		if err != nil {
			return dal.PageResult[Unit]{}, err
		}
		items = append(items, unit)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Unit]{}, err
	}
	return dal.Paginate(items, limit, func(u Unit) dal.Cursor {
		return dal.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	}), nil
}

func (s *Store) Update(ctx context.Context, orgID, id string, in UpdateInput, actor changes.Actor) (Unit, error) {
	u := dal.NewUpdates(orgID, id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Unit{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	dal.ApplyField(u, "description", in.Description)
	dal.ApplyField(u, "parent_id", in.ParentID)

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Unit, error) {
		if in.ParentID.Set {
			if err := lockTree(ctx, tx, orgID); err != nil {
				return Unit{}, err
			}
		}
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.OrgUnits, id, orgID); err != nil {
			return Unit{}, err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return Unit{}, err
		}
		if u.Empty() {
			return before, nil
		}
		if in.ParentID.Set && !in.ParentID.Null {
			if err := s.checker.ValidateParent(ctx, tx, id, in.ParentID.Value, orgID, hierarchy.Organizational); err != nil {
				return Unit{}, err
			}
		}
		after, err := scan(tx.QueryRow(ctx, `
      UPDATE org_units SET `+u.Clause()+`, updated_at = now()
      WHERE organization_id = $1 AND id = $2
      RETURNING `+columns, u.Args()...))
		if err != nil {
			return Unit{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, orgID, changes.OrgUnit, id, before, after, actor); err != nil {
			return Unit{}, err
		}
		return after, nil
	})
}

// Delete removes the unit. Child units become roots and activities owned by
// the unit lose their owner.
func (s *Store) Delete(ctx context.Context, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := lockTree(ctx, tx, orgID); err != nil {
			return err
		}
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.OrgUnits, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM org_units WHERE organization_id = $1 AND id = $2`, orgID, id); err != nil {
			return dal.MapError(err)
		}
		return changes.RecordDelete(ctx, tx, orgID, changes.OrgUnit, id, before, actor)
	})
}

func (s *Store) Tree(ctx context.Context, orgID, id string) ([]hierarchy.Node, error) {
	return s.checker.DescendantTree(ctx, s.DB, id, orgID, hierarchy.Organizational.MaxDepth())
}

func (s *Store) Ancestors(ctx context.Context, orgID, id string) ([]hierarchy.Node, error) {
	return s.checker.AncestorChain(ctx, s.DB, id, orgID)
}
