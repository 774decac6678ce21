package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

func (k Kind) columns() string {
	special := "false"
	if k.Special {
		special = "is_special_category"
	}
	return "id::text, organization_id::text, name, description, is_active, " + special + ", metadata, created_at, updated_at"
}

func (k Kind) table() string { return pgx.Identifier{string(k.Table)}.Sanitize() }

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OrganizationID, &it.Name, &it.Description, &it.IsActive, &it.IsSpecialCategory, &it.Metadata, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func metadataJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, dal.Invalid("metadata", "is not JSON serializable")
	}
	return payload, nil
}

func (s *Store) Create(ctx context.Context, kind Kind, orgID string, in CreateInput, actor changes.Actor) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := dal.Validate(in); err != nil {
		return Item{}, err
	}
	meta, err := metadataJSON(in.Metadata)
	if err != nil {
		return Item{}, err
	}
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Item, error) {
		if err := tenancy.Require(ctx, tx, tenancy.Organizations, orgID, orgID); err != nil {
			return Item{}, err
		}
		cols, vals := "organization_id, name, description, metadata", "$1,$2,$3,$4"
		args := []any{orgID, in.Name, in.Description, meta}
		if kind.Special {
			cols += ", is_special_category"
			vals += ",$5"
			args = append(args, in.IsSpecialCategory)
		}
		item, err := scanItem(tx.QueryRow(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s", kind.table(), cols, vals, kind.columns()), args...))
		if err != nil {
			return Item{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, kind.Component, item.ID, item, actor); err != nil {
			return Item{}, err
		}
		return item, nil
	})
}

// Get returns nil when id is not an item of kind owned by orgID.
func (s *Store) Get(ctx context.Context, kind Kind, orgID, id string) (*Item, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	item, err := get(ctx, s.DB, kind, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func get(ctx context.Context, q dal.Querier, kind Kind, orgID, id string) (Item, error) {
	item, err := scanItem(q.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = $1 AND id = $2", kind.columns(), kind.table()), orgID, id))
	if err != nil {
		return Item{}, dal.MapError(err)
	}
	return item, nil
}

func (s *Store) List(ctx context.Context, kind Kind, orgID string, filter Filter, page dal.Page) (dal.PageResult[Item], error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = $1", kind.columns(), kind.table())
	args := []any{orgID}
	if filter.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Item]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Item]{}, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return dal.PageResult[Item]{}, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Item]{}, err
	}
	return dal.Paginate(items, limit, func(it Item) dal.Cursor {
		return dal.Cursor{CreatedAt: it.CreatedAt, ID: it.ID}
	}), nil
}

func (s *Store) Update(ctx context.Context, kind Kind, orgID, id string, in UpdateInput, actor changes.Actor) (Item, error) {
	u := dal.NewUpdates(orgID, id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Item{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	dal.ApplyField(u, "description", in.Description)
	if in.IsActive.Set {
		if in.IsActive.Null {
			return Item{}, dal.Invalid("isActive", "cannot be null")
		}
		u.Add("is_active", in.IsActive.Value)
	}
	if in.IsSpecialCategory.Set {
		if !kind.Special {
			return Item{}, dal.Invalid("isSpecialCategory", "not supported for "+kind.Name)
		}
		if in.IsSpecialCategory.Null {
			return Item{}, dal.Invalid("isSpecialCategory", "cannot be null")
		}
		u.Add("is_special_category", in.IsSpecialCategory.Value)
	}
	if in.Metadata.Set {
		meta, err := metadataJSON(in.Metadata.Value)
		if err != nil {
			return Item{}, err
		}
		u.Add("metadata", meta)
	}
	return s.update(ctx, kind, orgID, id, u, actor)
}

func (s *Store) SetActive(ctx context.Context, kind Kind, orgID, id string, active bool, actor changes.Actor) (Item, error) {
	u := dal.NewUpdates(orgID, id)
	u.Add("is_active", active)
	return s.update(ctx, kind, orgID, id, u, actor)
}

func (s *Store) update(ctx context.Context, kind Kind, orgID, id string, u *dal.Updates, actor changes.Actor) (Item, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Item, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, kind.Table, id, orgID); err != nil {
			return Item{}, err
		}
		before, err := get(ctx, tx, kind, orgID, id)
		if err != nil {
			return Item{}, err
		}
		if u.Empty() {
			return before, nil
		}
		query := fmt.Sprintf("UPDATE %s SET %s, updated_at = now() WHERE organization_id = $1 AND id = $2 RETURNING %s", kind.table(), u.Clause(), kind.columns())
		after, err := scanItem(tx.QueryRow(ctx, query, u.Args()...))
		if err != nil {
			return Item{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, orgID, kind.Component, id, before, after, actor); err != nil {
			return Item{}, err
		}
		return after, nil
	})
}

// Delete removes the item and its junction rows.
func (s *Store) Delete(ctx context.Context, kind Kind, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tenancy.RequireForUpdate(ctx, tx, kind.Table, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, kind, orgID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE organization_id = $1 AND id = $2", kind.table()), orgID, id); err != nil {
			return dal.MapError(err)
		}
		return changes.RecordDelete(ctx, tx, orgID, kind.Component, id, before, actor)
	})
}
