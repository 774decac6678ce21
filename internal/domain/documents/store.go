package documents

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

const columns = `id::text, organization_id::text, document_type, title, version, status, activity_id::text,
  assessment_id::text, data_snapshot, docx_url, pdf_url, created_at, updated_at`

func scan(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OrganizationID, &d.DocumentType, &d.Title, &d.Version, &d.Status, &d.ActivityID,
		&d.AssessmentID, &d.DataSnapshot, &d.DocxURL, &d.PdfURL, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Create stores a new draft. Its version follows the highest version of the
// same document type for the same activity.
func (s *Store) Create(ctx context.Context, orgID string, in CreateInput, actor changes.Actor) (Document, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := dal.Validate(in); err != nil {
		return Document{}, err
	}
	snapshot := []byte("{}")
	if in.DataSnapshot != nil {
		var err error
		if snapshot, err = json.Marshal(in.DataSnapshot); err != nil {
			return Document{}, dal.Invalid("dataSnapshot", "is not JSON serializable")
		}
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Document, error) {
		if err := tenancy.Require(ctx, tx, tenancy.Organizations, orgID, orgID); err != nil {
			return Document{}, err
		}
		if in.ActivityID != nil {
			if err := tenancy.Require(ctx, tx, tenancy.ProcessingActivities, *in.ActivityID, orgID); err != nil {
				return Document{}, err
			}
		}
		if err := lockVersions(ctx, tx, orgID, in.DocumentType); err != nil {
			return Document{}, err
		}
		var version int
		if err := tx.QueryRow(ctx, `
      SELECT COALESCE(MAX(version), 0) + 1 FROM generated_documents
      WHERE organization_id = $1 AND document_type = $2 AND activity_id IS NOT DISTINCT FROM $3::uuid
    `, orgID, in.DocumentType, in.ActivityID).Scan(&version); err != nil {
			return Document{}, dal.MapError(err)
		}
		d, err := scan(tx.QueryRow(ctx, `
      INSERT INTO generated_documents (organization_id, document_type, title, version, activity_id, assessment_id, data_snapshot, docx_url, pdf_url)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
      RETURNING `+columns,
			orgID, in.DocumentType, in.Title, version, in.ActivityID, in.AssessmentID, snapshot, in.DocxURL, in.PdfURL))
		if err != nil {
			return Document{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, changes.GeneratedDocument, d.ID, d, actor); err != nil {
			return Document{}, err
		}
		return d, nil
	})
}

// lockVersions serializes version numbering for one document type within an
// organization.
func lockVersions(ctx context.Context, tx pgx.Tx, orgID, documentType string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('documents:' || $1 || ':' || $2))`, orgID, documentType)
	return err
}

func (s *Store) Get(ctx context.Context, orgID, id string) (*Document, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	d, err := get(ctx, s.DB, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func get(ctx context.Context, q dal.Querier, orgID, id string) (Document, error) {
	d, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM generated_documents WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Document{}, dal.MapError(err)
	}
	return d, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Document], error) {
	query := `SELECT ` + columns + ` FROM generated_documents WHERE organization_id = $1`
	args := []any{orgID}
	if filter.DocumentType != "" {
		query += fmt.Sprintf(" AND document_type = $%d", len(args)+1)
		args = append(args, filter.DocumentType)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.ActivityID != "" {
		if _, ok := tenancy.ParseID(filter.ActivityID); !ok {
			return dal.PageResult[Document]{}, dal.Invalid("activityId", "must be a UUID")
		}
		query += fmt.Sprintf(" AND activity_id = $%d", len(args)+1)
		args = append(args, filter.ActivityID)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Document]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Document]{}, err
	}
	defer rows.Close()

	var items []Document
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return dal.PageResult[Document]{}, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Document]{}, err
	}
	return dal.Paginate(items, limit, func(d Document) dal.Cursor {
		return dal.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	}), nil
}

// UpdateStatus moves a document along draft, final, superseded, archived.
// Finalizing a document supersedes the previous final version of the same
// type for the same activity.
func (s *Store) UpdateStatus(ctx context.Context, orgID, id, status string, actor changes.Actor) (Document, error) {
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Document, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.GeneratedDocuments, id, orgID); err != nil {
			return Document{}, err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return Document{}, err
		}
		if !CanTransition(before.Status, status) {
			return Document{}, dal.Invalid("status", fmt.Sprintf("cannot move from %s to %s", before.Status, status))
		}

		if status == StatusFinal {
			rows, err := tx.Query(ctx, `
        SELECT `+columns+` FROM generated_documents
        WHERE organization_id = $1 AND document_type = $2 AND activity_id IS NOT DISTINCT FROM $3::uuid
          AND status = 'final' AND id <> $4
        FOR UPDATE
      `, orgID, before.DocumentType, before.ActivityID, id)
			if err != nil {
				return Document{}, err
			}
			previous, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) { return scan(row) })
			if err != nil {
				return Document{}, err
			}
			for _, prev := range previous {
				if _, err := s.setStatus(ctx, tx, orgID, prev, StatusSuperseded, actor); err != nil {
					return Document{}, err
				}
			}
		}
		return s.setStatus(ctx, tx, orgID, before, status, actor)
	})
}

func (s *Store) setStatus(ctx context.Context, tx pgx.Tx, orgID string, before Document, status string, actor changes.Actor) (Document, error) {
	after, err := scan(tx.QueryRow(ctx, `
    UPDATE generated_documents SET status = $3, updated_at = now()
    WHERE organization_id = $1 AND id = $2
    RETURNING `+columns, orgID, before.ID, status))
	if err != nil {
		return Document{}, dal.MapError(err)
	}
	if err := changes.RecordUpdate(ctx, tx, orgID, changes.GeneratedDocument, before.ID, before, after, actor); err != nil {
		return Document{}, err
	}
	return after, nil
}

// Delete removes the document and its impact links.
func (s *Store) Delete(ctx context.Context, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.GeneratedDocuments, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM generated_documents WHERE organization_id = $1 AND id = $2`, orgID, id); err != nil {
			return dal.MapError(err)
		}
		return changes.RecordDelete(ctx, tx, orgID, changes.GeneratedDocument, id, before, actor)
	})
}
