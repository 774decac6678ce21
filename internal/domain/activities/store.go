package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

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

const columns = `id::text, organization_id::text, name, description, status, legal_basis, owner_unit_id::text,
  requires_dpia, next_review_at, metadata, created_at, updated_at`

func scan(row pgx.Row) (Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Description, &a.Status, &a.LegalBasis, &a.OwnerUnitID,
		&a.RequiresDPIA, &a.NextReviewAt, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
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

func validateLegalBasis(v *string) error {
	if v != nil && !legalBases[*v] {
		return dal.Invalid("legalBasis", "unknown legal basis")
	}
	return nil
}

func requireOwnerUnit(ctx context.Context, q dal.Querier, id *string, orgID string) error {
	if id == nil {
		return nil
	}
	if err := tenancy.Require(ctx, q, tenancy.OrgUnits, *id, orgID); err != nil {
		if errors.Is(err, dal.ErrNotFoundOrForbidden) {
			return dal.Invalid("ownerUnitId", "unknown organizational unit")
		}
		return err
	}
	return nil
}

// Create inserts the activity and its initial links in one transaction. Any
// foreign or missing linked id aborts the whole create.
func (s *Store) Create(ctx context.Context, orgID string, in CreateInput, actor changes.Actor) (Detail, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if err := dal.Validate(in); err != nil {
		return Detail{}, err
	}
	if err := validateLegalBasis(in.LegalBasis); err != nil {
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
		if err := requireOwnerUnit(ctx, tx, in.OwnerUnitID, orgID); err != nil {
			return Detail{}, err
		}
		a, err := scan(tx.QueryRow(ctx, `
      INSERT INTO processing_activities (organization_id, name, description, status, legal_basis, owner_unit_id, requires_dpia, next_review_at, metadata)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
      RETURNING `+columns, orgID, in.Name, in.Description, in.Status, in.LegalBasis, in.OwnerUnitID, in.RequiresDPIA, in.NextReviewAt, meta))
		if err != nil {
			return Detail{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, changes.ProcessingActivity, a.ID, a, actor); err != nil {
			return Detail{}, err
		}

		d := Detail{Activity: a}
		initial := []struct {
			rel Relation
			ids []string
			out *[]string
		}{
			{Purposes, in.PurposeIDs, &d.PurposeIDs},
			{DataCategories, in.DataCategoryIDs, &d.DataCategoryIDs},
			{DataSubjects, in.DataSubjectIDs, &d.DataSubjectIDs},
			{Recipients, in.RecipientIDs, &d.RecipientIDs},
			{Assets, in.AssetIDs, &d.AssetIDs},
		}
		for _, r := range initial {
			*r.out = []string{}
			if len(r.ids) == 0 {
				continue
			}
			res, err := syncTx(ctx, tx, r.rel, orgID, a.ID, r.ids, actor)
			if err != nil {
				return Detail{}, err
			}
			*r.out = res.Added
		}
		return d, nil
	})
}

// Get returns nil when the activity is absent or belongs to another organization.
func (s *Store) Get(ctx context.Context, orgID, id string) (*Activity, error) {
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

// Detail reads the activity and all of its links from one snapshot.
func (s *Store) Detail(ctx context.Context, orgID, id string) (*Detail, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, dal.TxFailure("begin", err)
	}
	defer tx.Rollback(ctx)

	a, err := get(ctx, tx, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := Detail{Activity: a}
	for _, r := range []struct {
		rel Relation
		out *[]string
	}{
		{Purposes, &d.PurposeIDs},
		{DataCategories, &d.DataCategoryIDs},
		{DataSubjects, &d.DataSubjectIDs},
		{Recipients, &d.RecipientIDs},
		{Assets, &d.AssetIDs},
	} {
		ids, err := listTx(ctx, tx, r.rel, orgID, id)
		if err != nil {
			return nil, err
		}
		*r.out = ids
	}
	return &d, nil
}

func get(ctx context.Context, q dal.Querier, orgID, id string) (Activity, error) {
	a, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM processing_activities WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Activity{}, dal.MapError(err)
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Activity], error) {
	query := `SELECT ` + columns + ` FROM processing_activities WHERE organization_id = $1`
	args := []any{orgID}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.RequiresDPIA != nil {
		query += fmt.Sprintf(" AND requires_dpia = $%d", len(args)+1)
		args = append(args, *filter.RequiresDPIA)
	}
	if filter.ReviewDueBefore != nil {
		query += fmt.Sprintf(" AND next_review_at < $%d", len(args)+1)
		args = append(args, *filter.ReviewDueBefore)
	}
	if filter.OwnerUnitID != "" {
		if _, ok := tenancy.ParseID(filter.OwnerUnitID); !ok {
			return dal.PageResult[Activity]{}, dal.Invalid("ownerUnitId", "must be a UUID")
		}
		query += fmt.Sprintf(" AND owner_unit_id = $%d", len(args)+1)
		args = append(args, filter.OwnerUnitID)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Activity]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Activity]{}, err
	}
	defer rows.Close()

	var items []Activity
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return dal.PageResult[Activity]{}, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Activity]{}, err
	}
	return dal.Paginate(items, limit, func(a Activity) dal.Cursor {
		return dal.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	}), nil
}

func (s *Store) Update(ctx context.Context, orgID, id string, in UpdateInput, actor changes.Actor) (Activity, error) {
	u := dal.NewUpdates(orgID, id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Activity{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	dal.ApplyField(u, "description", in.Description)
	if in.Status.Set {
		switch {
		case in.Status.Null:
			return Activity{}, dal.Invalid("status", "cannot be null")
		case in.Status.Value != StatusDraft && in.Status.Value != StatusActive && in.Status.Value != StatusArchived:
			return Activity{}, dal.Invalid("status", "must be one of DRAFT ACTIVE ARCHIVED")
		}
		u.Add("status", in.Status.Value)
	}
	if in.LegalBasis.Set {
		if err := validateLegalBasis(in.LegalBasis.Ptr()); err != nil {
			return Activity{}, err
		}
		dal.ApplyField(u, "legal_basis", in.LegalBasis)
	}
	dal.ApplyField(u, "owner_unit_id", in.OwnerUnitID)
	if in.RequiresDPIA.Set {
		if in.RequiresDPIA.Null {
			return Activity{}, dal.Invalid("requiresDpia", "cannot be null")
		}
		u.Add("requires_dpia", in.RequiresDPIA.Value)
	}
	dal.ApplyField(u, "next_review_at", in.NextReviewAt)
	if in.Metadata.Set {
		meta, err := metadataJSON(in.Metadata.Value)
		if err != nil {
			return Activity{}, err
		}
		u.Add("metadata", meta)
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Activity, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.ProcessingActivities, id, orgID); err != nil {
			return Activity{}, err
		}
		if in.OwnerUnitID.Set && !in.OwnerUnitID.Null {
			if err := requireOwnerUnit(ctx, tx, in.OwnerUnitID.Ptr(), orgID); err != nil {
				return Activity{}, err
			}
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return Activity{}, err
		}
		if u.Empty() {
			return before, nil
		}
		after, err := scan(tx.QueryRow(ctx, `
      UPDATE processing_activities SET `+u.Clause()+`, updated_at = now()
      WHERE organization_id = $1 AND id = $2
      RETURNING `+columns, u.Args()...))
		if err != nil {
			return Activity{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, orgID, changes.ProcessingActivity, id, before, after, actor); err != nil {
			return Activity{}, err
		}
		return after, nil
	})
}

// Delete removes the activity. Junction rows cascade; documents referencing it
// keep their row with activity_id cleared.
func (s *Store) Delete(ctx context.Context, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.ProcessingActivities, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM processing_activities WHERE organization_id = $1 AND id = $2`, orgID, id); err != nil {
			return dal.MapError(err)
		}
		return changes.RecordDelete(ctx, tx, orgID, changes.ProcessingActivity, id, before, actor)
	})
}

// DueForReview lists activities whose next review falls before now.
func (s *Store) DueForReview(ctx context.Context, orgID string, now time.Time, page dal.Page) (dal.PageResult[Activity], error) {
	return s.List(ctx, orgID, Filter{ReviewDueBefore: &now}, page)
}
