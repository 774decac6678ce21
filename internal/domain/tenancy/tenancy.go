package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/platform/metrics"
)

// Table is a tenant-scoped table the guard may check. The set is closed so that
// table names never come from callers.
type Table string

const (
	Organizations         Table = "organizations"
	Purposes              Table = "purposes"
	DataCategories        Table = "data_categories"
	DataSubjectCategories Table = "data_subject_categories"
	OrgUnits              Table = "org_units"
	ProcessingActivities  Table = "processing_activities"
	DigitalAssets         Table = "digital_assets"
	Recipients            Table = "recipients"
	AssetLocations        Table = "asset_processing_locations"
	RecipientLocations    Table = "recipient_processing_locations"
	ChangeLogEntries      Table = "change_log_entries"
	GeneratedDocuments    Table = "generated_documents"
	AffectedDocuments     Table = "affected_documents"
	TransferMechanisms    Table = "transfer_mechanisms"
	Countries             Table = "countries"
)

var known = map[Table]bool{
	Organizations: true, Purposes: true, DataCategories: true, DataSubjectCategories: true,
	OrgUnits: true, ProcessingActivities: true, DigitalAssets: true, Recipients: true,
	AssetLocations: true, RecipientLocations: true, ChangeLogEntries: true,
	GeneratedDocuments: true, AffectedDocuments: true, TransferMechanisms: true, Countries: true,
}

func (t Table) Valid() bool { return known[t] }

func (t Table) ident() string { return pgx.Identifier{string(t)}.Sanitize() }

// ownerColumn is the column compared with the organization id. The organizations
// table owns itself.
func (t Table) ownerColumn() string {
	if t == Organizations {
		return "id"
	}
	return "organization_id"
}

// ParseID reports whether id is a well formed identifier.
func ParseID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}

// Require verifies in a single query that id exists in table and belongs to
// orgID. Absence, foreign ownership and malformed ids all yield
// dal.ErrNotFoundOrForbidden.
func Require(ctx context.Context, q dal.Querier, table Table, id, orgID string) error {
	return require(ctx, q, table, id, orgID, "")
}

// RequireForUpdate is Require plus a row lock held until the surrounding
// transaction ends. q must be a transaction.
func RequireForUpdate(ctx context.Context, q dal.Querier, table Table, id, orgID string) error {
	return require(ctx, q, table, id, orgID, " FOR UPDATE")
}

func require(ctx context.Context, q dal.Querier, table Table, id, orgID, suffix string) error {
	if !table.Valid() || table == Countries {
		return fmt.Errorf("tenancy: table %q is not tenant scoped", table)
	}
	if _, ok := ParseID(id); !ok {
		return reject(table)
	}
	if _, ok := ParseID(orgID); !ok {
		return reject(table)
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1 AND %s = $2%s", table.ident(), table.ownerColumn(), suffix)
	var one int
	if err := q.QueryRow(ctx, query, id, orgID).Scan(&one); err != nil {
		if mapped := dal.MapError(err); mapped == dal.ErrNotFoundOrForbidden {
			return reject(table)
		}
		return err
	}
	return nil
}

// RequireAll checks every id with one query. Duplicates are ignored.
func RequireAll(ctx context.Context, q dal.Querier, table Table, ids []string, orgID string) error {
	unique := Dedupe(ids)
	if len(unique) == 0 {
		return nil
	}
	if !table.Valid() || table == Countries {
		return fmt.Errorf("tenancy: table %q is not tenant scoped", table)
	}
	for _, id := range unique {
		if _, ok := ParseID(id); !ok {
			return reject(table)
		}
	}
	if _, ok := ParseID(orgID); !ok {
		return reject(table)
	}
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE id = ANY($1::uuid[]) AND %s = $2", table.ident(), table.ownerColumn())
	var found int
	if err := q.QueryRow(ctx, query, unique, orgID).Scan(&found); err != nil {
		return err
	}
	if found != len(unique) {
		return reject(table)
	}
	return nil
}

// RequireVisible accepts rows owned by orgID and shared reference rows whose
// organization_id is NULL. Countries carry no owner and are always visible.
func RequireVisible(ctx context.Context, q dal.Querier, table Table, id, orgID string) error {
	if _, ok := ParseID(id); !ok {
		return reject(table)
	}
	var query string
	args := []any{id}
	switch table {
	case Countries:
		query = "SELECT 1 FROM countries WHERE id = $1"
	case TransferMechanisms:
		query = "SELECT 1 FROM transfer_mechanisms WHERE id = $1 AND (organization_id IS NULL OR organization_id = $2)"
		if _, ok := ParseID(orgID); !ok {
			return reject(table)
		}
		args = append(args, orgID)
	default:
		return Require(ctx, q, table, id, orgID)
	}
	var one int
	if err := q.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if dal.MapError(err) == dal.ErrNotFoundOrForbidden {
			return reject(table)
		}
		return err
	}
	return nil
}

// Dedupe keeps the first occurrence of every id, preserving order.
func Dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func reject(table Table) error {
	metrics.GuardRejected(string(table))
	return dal.ErrNotFoundOrForbidden
}

// Canonical rewrites well formed ids into their lower-case hyphenated form.
// Malformed ids are kept so the guard can reject them.
func Canonical(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if parsed, ok := ParseID(id); ok {
			out[i] = parsed.String()
		} else {
			out[i] = id
		}
	}
	return out
}
