package organizations

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const columns = `id::text, name, slug, status, headquarters_country_id::text, metadata, created_at, updated_at, deleted_at`

func scan(row pgx.Row) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.HeadquartersCountryID, &o.Metadata, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt)
	return o, err
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

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return dal.Invalid("slug", "must be lower-case words separated by hyphens")
	}
	return nil
}

func (s *Store) Create(ctx context.Context, in CreateInput, actor changes.Actor) (Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := dal.Validate(in); err != nil {
		return Organization{}, err
	}
	if err := validateSlug(in.Slug); err != nil {
		return Organization{}, err
	}
	meta, err := metadataJSON(in.Metadata)
	if err != nil {
		return Organization{}, err
	}
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Organization, error) {
		if in.HeadquartersCountryID != nil {
			if err := tenancy.RequireVisible(ctx, tx, tenancy.Countries, *in.HeadquartersCountryID, ""); err != nil {
				return Organization{}, dal.Invalid("headquartersCountryId", "unknown country")
			}
		}
		org, err := scan(tx.QueryRow(ctx, `
      INSERT INTO organizations (name, slug, headquarters_country_id, metadata)
      VALUES ($1,$2,$3,$4)
      RETURNING `+columns, in.Name, in.Slug, in.HeadquartersCountryID, meta))
		if err != nil {
			return Organization{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, org.ID, changes.Organization, org.ID, org, actor); err != nil {
			return Organization{}, err
		}
		return org, nil
	})
}

// Get returns nil when the organization does not exist or is soft deleted.
func (s *Store) Get(ctx context.Context, id string) (*Organization, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	return s.one(ctx, s.DB, "id = $1 AND deleted_at IS NULL", id)
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.one(ctx, s.DB, "slug = $1 AND deleted_at IS NULL", slug)
}

func (s *Store) one(ctx context.Context, q dal.Querier, where string, arg any) (*Organization, error) {
	org, err := scan(q.QueryRow(ctx, "SELECT "+columns+" FROM organizations WHERE "+where, arg))
	if err != nil {
		if errors.Is(dal.MapError(err), dal.ErrNotFoundOrForbidden) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (s *Store) List(ctx context.Context, filter Filter, page dal.Page) (dal.PageResult[Organization], error) {
	query := "SELECT " + columns + " FROM organizations WHERE TRUE"
	var args []any
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Organization]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Organization]{}, err
	}
	defer rows.Close()

	var items []Organization
	for rows.Next() {
		org, err := scan(rows)
		if err != nil {
			return dal.PageResult[Organization]{}, err
		}
		items = append(items, org)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Organization]{}, err
	}
	return dal.Paginate(items, limit, func(o Organization) dal.Cursor {
		return dal.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (s *Store) Update(ctx context.Context, id string, in UpdateInput, actor changes.Actor) (Organization, error) {
	u := dal.NewUpdates(id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Organization{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	if in.Slug.Set {
		if in.Slug.Null {
			return Organization{}, dal.Invalid("slug", "is required")
		}
		if err := validateSlug(in.Slug.Value); err != nil {
			return Organization{}, err
		}
		u.Add("slug", in.Slug.Value)
	}
	if in.Status.Set {
		switch in.Status.Value {
		case StatusActive, StatusSuspended, StatusArchived:
			u.Add("status", in.Status.Value)
		default:
			return Organization{}, dal.Invalid("status", "must be one of ACTIVE SUSPENDED ARCHIVED")
		}
	}
	dal.ApplyField(u, "headquarters_country_id", in.HeadquartersCountryID)
	if in.Metadata.Set {
		meta, err := metadataJSON(in.Metadata.Value)
		if err != nil {
			return Organization{}, err
		}
		u.Add("metadata", meta)
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Organization, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.Organizations, id, id); err != nil {
			return Organization{}, err
		}
		before, err := s.one(ctx, tx, "id = $1 AND deleted_at IS NULL", id)
		if err != nil {
			return Organization{}, err
		}
		if before == nil {
			return Organization{}, dal.ErrNotFoundOrForbidden
		}
		if in.HeadquartersCountryID.Set && !in.HeadquartersCountryID.Null {
			if err := tenancy.RequireVisible(ctx, tx, tenancy.Countries, in.HeadquartersCountryID.Value, id); err != nil {
				return Organization{}, dal.Invalid("headquartersCountryId", "unknown country")
			}
		}
		if u.Empty() {
			return *before, nil
		}
		after, err := scan(tx.QueryRow(ctx, "UPDATE organizations SET "+u.Clause()+", updated_at = now() WHERE id = $1 RETURNING "+columns, u.Args()...))
		if err != nil {
			return Organization{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, id, changes.Organization, id, before, after, actor); err != nil {
			return Organization{}, err
		}
		return after, nil
	})
}

// SoftDelete marks the organization deleted and keeps its data.
func (s *Store) SoftDelete(ctx context.Context, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.Organizations, id, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, "UPDATE organizations SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL", id)
		if err != nil {
			return dal.MapError(err)
		}
		if tag.RowsAffected() == 0 {
			return dal.ErrNotFoundOrForbidden
		}
		_, err = changes.Record(ctx, tx, changes.NewEntry{
			OrganizationID: id, ComponentType: changes.Organization, ComponentID: id,
			ChangeType: changes.Deleted, FieldName: "deletedAt", Actor: actor,
		})
		return err
	})
}

// Delete removes the organization and, through cascading foreign keys, every
// row it owns including its change history.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, ok := tenancy.ParseID(id); !ok {
		return dal.ErrNotFoundOrForbidden
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM organizations WHERE id = $1", id)
	if err != nil {
		return dal.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return dal.ErrNotFoundOrForbidden
	}
	return nil
}
