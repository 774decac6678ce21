package changes

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

const affectedColumns = "id::text, organization_id::text, generated_document_id::text, change_log_id::text, impact_type, description, created_at"

func scanAffected(row pgx.Row) (AffectedDocument, error) {
	var a AffectedDocument
	var impact string
	err := row.Scan(&a.ID, &a.OrganizationID, &a.GeneratedDocumentID, &a.ChangeLogID, &impact, &a.Description, &a.CreatedAt)
	a.ImpactType = ImpactType(impact)
	return a, err
}

// LinkAffectedDocument records that changeID affects documentID. A second link
// for the same pair fails with dal.ErrConstraint and leaves the first intact.
func (l *Ledger) LinkAffectedDocument(ctx context.Context, orgID, documentID, changeID string, impact ImpactType, description string) (AffectedDocument, error) {
	if !impact.Valid() {
		return AffectedDocument{}, dal.Invalid("impactType", "must be one of CONTENT_OUTDATED REVIEW_REQUIRED REGENERATE")
	}
	return db.InTxResult(ctx, l.DB, func(tx pgx.Tx) (AffectedDocument, error) {
		if err := tenancy.Require(ctx, tx, tenancy.GeneratedDocuments, documentID, orgID); err != nil {
			return AffectedDocument{}, err
		}
		if err := tenancy.Require(ctx, tx, tenancy.ChangeLogEntries, changeID, orgID); err != nil {
			return AffectedDocument{}, err
		}
		a, err := scanAffected(tx.QueryRow(ctx, `
      INSERT INTO affected_documents (organization_id, generated_document_id, change_log_id, impact_type, description)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING `+affectedColumns,
			orgID, documentID, changeID, string(impact), nullable(description)))
		if err != nil {
			return AffectedDocument{}, dal.MapError(err)
		}
		return a, nil
	})
}

func (l *Ledger) ListAffectedDocuments(ctx context.Context, orgID, documentID string) ([]AffectedDocument, error) {
	if err := tenancy.Require(ctx, l.DB, tenancy.GeneratedDocuments, documentID, orgID); err != nil {
		return nil, err
	}
	rows, err := l.DB.Query(ctx, `
    SELECT `+affectedColumns+`
    FROM affected_documents
    WHERE organization_id = $1 AND generated_document_id = $2
    ORDER BY created_at, id
  `, orgID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AffectedDocument{}
	for rows.Next() {
		a, err := scanAffected(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StaleDocuments lists final documents that have impact links newer than their
// last update and therefore need regeneration.
func (l *Ledger) StaleDocuments(ctx context.Context, orgID string) ([]StaleDocument, error) {
	rows, err := l.DB.Query(ctx, `
    SELECT d.id::text, d.document_type, d.title, COUNT(a.id), MAX(a.created_at)
    FROM generated_documents d
    JOIN affected_documents a ON a.generated_document_id = d.id AND a.organization_id = d.organization_id
    WHERE d.organization_id = $1 AND d.status = 'final' AND a.created_at > d.updated_at
    GROUP BY d.id, d.document_type, d.title
    ORDER BY MAX(a.created_at) DESC, d.id
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StaleDocument{}
	for rows.Next() {
		var s StaleDocument
		if err := rows.Scan(&s.DocumentID, &s.DocumentType, &s.Title, &s.Impacts, &s.LatestImpact); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type ScanResult struct {
	Changes   int       `json:"changes"`
	Linked    int       `json:"linked"`
	Skipped   int       `json:"skipped"`
	Watermark time.Time `json:"watermark"`
}

// ImpactAnalyzer links documents of affected processing activities to the
// changes that touched them.
type ImpactAnalyzer struct {
	Ledger   *Ledger
	PageSize int
}

func NewImpactAnalyzer(ledger *Ledger) *ImpactAnalyzer {
	return &ImpactAnalyzer{Ledger: ledger, PageSize: dal.MaxLimit}
}

// Scan processes every change recorded after since. Pairs that are already
// linked count as skipped. The returned watermark is the newest change seen.
func (a *ImpactAnalyzer) Scan(ctx context.Context, orgID string, since time.Time) (ScanResult, error) {
	res := ScanResult{Watermark: since}
	page := dal.Page{Limit: a.PageSize}
	for {
		batch, err := a.Ledger.List(ctx, orgID, Filter{Since: &since}, page)
		if err != nil {
			return res, err
		}
		for _, entry := range batch.Items {
			res.Changes++
			if entry.CreatedAt.After(res.Watermark) {
				res.Watermark = entry.CreatedAt
			}
			docs, err := a.affectedDocuments(ctx, orgID, entry)
			if err != nil {
				return res, err
			}
			for _, doc := range docs {
				_, err := a.Ledger.LinkAffectedDocument(ctx, orgID, doc, entry.ID, impactFor(entry.ChangeType), describe(entry))
				switch {
				case err == nil:
					res.Linked++
				case dal.IsUniqueViolation(err):
					res.Skipped++
				default:
					return res, err
				}
			}
		}
		if batch.NextCursor == nil {
			return res, nil
		}
		page.Cursor = *batch.NextCursor
	}
}

func impactFor(kind ChangeKind) ImpactType {
	switch kind {
	case Created:
		return ReviewRequired
	case Deleted:
		return Regenerate
	default:
		return ContentOutdated
	}
}

func describe(e Entry) string {
	if e.FieldName != nil {
		return fmt.Sprintf("%s %s %s", e.ComponentType, e.ChangeType, *e.FieldName)
	}
	return fmt.Sprintf("%s %s", e.ComponentType, e.ChangeType)
}

// activitySources maps a component type to a query returning the ids of
// processing activities that reference component $2 within organization $1.
var activitySources = map[ComponentType]string{
	ProcessingActivity:  "SELECT id FROM processing_activities WHERE organization_id = $1 AND id = $2",
	Purpose:             "SELECT activity_id FROM activity_purposes WHERE organization_id = $1 AND purpose_id = $2",
	DataSubjectCategory: "SELECT activity_id FROM activity_data_subjects WHERE organization_id = $1 AND data_subject_category_id = $2",
	Recipient:           "SELECT activity_id FROM activity_recipients WHERE organization_id = $1 AND recipient_id = $2",
	DigitalAsset:        "SELECT activity_id FROM activity_assets WHERE organization_id = $1 AND asset_id = $2",
	OrgUnit:             "SELECT id FROM processing_activities WHERE organization_id = $1 AND owner_unit_id = $2",
	DataCategory: `
    SELECT activity_id FROM activity_data_categories WHERE organization_id = $1 AND data_category_id = $2
    UNION
    SELECT aa.activity_id FROM activity_assets aa
    JOIN asset_data_categories adc ON adc.asset_id = aa.asset_id AND adc.organization_id = aa.organization_id
    WHERE aa.organization_id = $1 AND adc.data_category_id = $2`,
	ProcessingLocation: `
    SELECT aa.activity_id FROM asset_processing_locations l
    JOIN activity_assets aa ON aa.asset_id = l.asset_id AND aa.organization_id = l.organization_id
    WHERE l.organization_id = $1 AND l.id = $2
    UNION
    SELECT ar.activity_id FROM recipient_processing_locations l
    JOIN activity_recipients ar ON ar.recipient_id = l.recipient_id AND ar.organization_id = l.organization_id
    WHERE l.organization_id = $1 AND l.id = $2`,
}

// affectedDocuments returns draft and final documents generated for the
// activities touched by entry. Organization level changes affect them all.
func (a *ImpactAnalyzer) affectedDocuments(ctx context.Context, orgID string, entry Entry) ([]string, error) {
	var query string
	args := []any{orgID}
	switch entry.ComponentType {
	case Organization:
		query = "SELECT id::text FROM generated_documents WHERE organization_id = $1 AND status IN ('draft', 'final') ORDER BY created_at, id"
	case GeneratedDocument:
		return nil, nil
	default:
		source, ok := activitySources[entry.ComponentType]
		if !ok {
			return nil, errors.Errorf("no impact source for component type %q", entry.ComponentType)
		}
		query = `
      SELECT id::text FROM generated_documents
      WHERE organization_id = $1 AND status IN ('draft', 'final') AND activity_id IN (` + source + `)
      ORDER BY created_at, id`
		args = append(args, entry.ComponentID)
	}

	rows, err := a.Ledger.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
