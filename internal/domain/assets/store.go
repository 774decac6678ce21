package assets

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
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/domain/relations"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const columns = `id::text, organization_id::text, name, asset_type, description, is_active, metadata, created_at, updated_at`

func scan(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.AssetType, &a.Description, &a.IsActive, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
	return a, err
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

// Create inserts the asset together with its processing locations and data
// categories. A third-country location without a mechanism fails the whole
// create.
func (s *Store) Create(ctx context.Context, orgID string, in CreateInput, actor changes.Actor) (Detail, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := dal.Validate(in); err != nil {
		return Detail{}, err
	}
	meta, err := metadataJSON(in.Metadata)
	if err != nil {
		return Detail{}, err
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Detail, error) {
		if err := tenancy.Require(ctx, tx, tenancy.Organizations, orgID, orgID); err != nil {
			return Detail{}, err
		}
		a, err := scan(tx.QueryRow(ctx, `
      INSERT INTO digital_assets (organization_id, name, asset_type, description, metadata)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING `+columns, orgID, in.Name, in.AssetType, in.Description, meta))
		if err != nil {
			return Detail{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, changes.DigitalAsset, a.ID, a, actor); err != nil {
			return Detail{}, err
		}

		inputs := make([]geography.LocationInput, 0, len(in.Locations))
		for _, l := range in.Locations {
			inputs = append(inputs, l.For(a.ID))
		}
		locations, err := geography.CreateLocationsTx(ctx, tx, geography.AssetLocation, orgID, inputs, actor)
		if err != nil {
			return Detail{}, err
		}

		d := Detail{Asset: a, Locations: locations, DataCategoryIDs: []string{}}
		if len(in.DataCategoryIDs) > 0 {
			res, err := syncCategoriesTx(ctx, tx, orgID, a.ID, in.DataCategoryIDs, actor)
			if err != nil {
				return Detail{}, err
			}
			d.DataCategoryIDs = res.Added
		}
		return d, nil
	})
}

// Get returns nil when the asset is absent or belongs to another organization.
func (s *Store) Get(ctx context.Context, orgID, id string) (*Asset, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	a, err := get(ctx, s.DB, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func get(ctx context.Context, q dal.Querier, orgID, id string) (Asset, error) {
	a, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM digital_assets WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Asset{}, dal.MapError(err)
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Asset], error) {
	query := `SELECT ` + columns + ` FROM digital_assets WHERE organization_id = $1`
	args := []any{orgID}
	if filter.AssetType != "" {
		query += fmt.Sprintf(" AND asset_type = $%d", len(args)+1)
		args = append(args, filter.AssetType)
	}
	if filter.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.IsActive)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Asset]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Asset]{}, err
	}
	defer rows.Close()

	var items []Asset
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return dal.PageResult[Asset]{}, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Asset]{}, err
	}
	return dal.Paginate(items, limit, func(a Asset) dal.Cursor {
		return dal.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	}), nil
}

func (s *Store) Update(ctx context.Context, orgID, id string, in UpdateInput, actor changes.Actor) (Asset, error) {
	u := dal.NewUpdates(orgID, id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Asset{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	if in.AssetType.Set {
		if in.AssetType.Null || !assetTypes[in.AssetType.Value] {
			return Asset{}, dal.Invalid("assetType", "unknown asset type")
		}
		u.Add("asset_type", in.AssetType.Value)
	}
	dal.ApplyField(u, "description", in.Description)
	if in.IsActive.Set {
		if in.IsActive.Null {
			return Asset{}, dal.Invalid("isActive", "cannot be null")
		}
		u.Add("is_active", in.IsActive.Value)
	}
	if in.Metadata.Set {
		meta, err := metadataJSON(in.Metadata.Value)
		if err != nil {
			return Asset{}, err
		}
		u.Add("metadata", meta)
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Asset, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.DigitalAssets, id, orgID); err != nil {
			return Asset{}, err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return Asset{}, err
		}
		if u.Empty() {
			return before, nil
		}
		after, err := scan(tx.QueryRow(ctx, `
      UPDATE digital_assets SET `+u.Clause()+`, updated_at = now()
      WHERE organization_id = $1 AND id = $2
      RETURNING `+columns, u.Args()...))
		if err != nil {
			return Asset{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, orgID, changes.DigitalAsset, id, before, after, actor); err != nil {
			return Asset{}, err
		}
		return after, nil
	})
}

// Delete removes the asset with its locations and links.
func (s *Store) Delete(ctx context.Context, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.DigitalAssets, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM digital_assets WHERE organization_id = $1 AND id = $2`, orgID, id); err != nil {
			return dal.MapError(err)
		}
		return changes.RecordDelete(ctx, tx, orgID, changes.DigitalAsset, id, before, actor)
	})
}

func (s *Store) SyncDataCategories(ctx context.Context, orgID, assetID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (relations.SyncResult, error) {
		return syncCategoriesTx(ctx, tx, orgID, assetID, ids, actor)
	})
}

func (s *Store) ListDataCategories(ctx context.Context, orgID, assetID string) ([]string, error) {
	return relations.NewEngine(s.DB).List(ctx, relations.AssetDataCategories, assetID, orgID)
}

func syncCategoriesTx(ctx context.Context, tx pgx.Tx, orgID, assetID string, ids []string, actor changes.Actor) (relations.SyncResult, error) {
	res, err := relations.SyncTx(ctx, tx, relations.AssetDataCategories, assetID, orgID, ids)
	if err != nil || !res.Changed() {
		return res, err
	}
	before := append(append([]string{}, res.Unchanged...), res.Removed...)
	after := append(append([]string{}, res.Unchanged...), res.Added...)
	if err := changes.RecordRelation(ctx, tx, orgID, changes.DigitalAsset, assetID, "dataCategoryIds", before, after, actor); err != nil {
		return relations.SyncResult{}, err
	}
	return res, nil
}
