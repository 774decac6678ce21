package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wI2L/jsondiff"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/metrics"
)

type Ledger struct {
	DB *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{DB: pool}
}

const entryColumns = `id::text, organization_id::text, component_type, component_id::text, change_type, field_name,
    old_value, new_value, actor_id, reason, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var componentType, changeType string
	err := row.Scan(&e.ID, &e.OrganizationID, &componentType, &e.ComponentID, &changeType, &e.FieldName,
		&e.OldValue, &e.NewValue, &e.ActorID, &e.Reason, &e.CreatedAt)
	e.ComponentType = ComponentType(componentType)
	e.ChangeType = ChangeKind(changeType)
	return e, err
}

func encodeValue(field string, v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, dal.Invalid(field, "is not valid JSON")
		}
		return raw, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, dal.Invalid(field, "is not JSON serializable")
	}
	return payload, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record appends one entry using q, which is normally the transaction that
// performed the mutation.
func Record(ctx context.Context, q dal.Querier, e NewEntry) (Entry, error) {
	if _, ok := tenancy.ParseID(e.OrganizationID); !ok {
		return Entry{}, dal.ErrNotFoundOrForbidden
	}
	if !e.ComponentType.Valid() {
		return Entry{}, dal.Invalid("componentType", "unknown component type")
	}
	if _, ok := tenancy.ParseID(e.ComponentID); !ok {
		return Entry{}, dal.Invalid("componentId", "must be a valid id")
	}
	if !e.ChangeType.Valid() {
		return Entry{}, dal.Invalid("changeType", "must be one of created updated deleted")
	}
	oldJSON, err := encodeValue("oldValue", e.OldValue)
	if err != nil {
		return Entry{}, err
	}
	newJSON, err := encodeValue("newValue", e.NewValue)
	if err != nil {
		return Entry{}, err
	}

	entry, err := scanEntry(q.QueryRow(ctx, `
    INSERT INTO change_log_entries (organization_id, component_type, component_id, change_type, field_name, old_value, new_value, actor_id, reason)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+entryColumns,
		e.OrganizationID, string(e.ComponentType), e.ComponentID, string(e.ChangeType), nullable(e.FieldName),
		oldJSON, newJSON, nullable(e.Actor.ID), nullable(e.Actor.Reason)))
	if err != nil {
		return Entry{}, dal.MapError(err)
	}
	metrics.ChangeRecorded(string(e.ComponentType), string(e.ChangeType))
	return entry, nil
}

// RecordDiff compares two snapshots and appends one updated entry per changed
// top-level field. Identical snapshots record nothing.
func RecordDiff(ctx context.Context, q dal.Querier, base NewEntry, before, after any) ([]Entry, error) {
	fields, oldVals, newVals, err := DiffFields(before, after)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(fields))
	for _, field := range fields {
		e := base
		e.ChangeType = Updated
		e.FieldName = field
		e.OldValue = oldVals[field]
		e.NewValue = newVals[field]
		entry, err := Record(ctx, q, e)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// bookkeeping fields change on every write and are not recorded.
var bookkeeping = map[string]bool{"updatedAt": true}

// DiffFields returns the changed top-level JSON fields between before and
// after, in first-seen order, with the raw old and new values of each.
func DiffFields(before, after any) ([]string, map[string]json.RawMessage, map[string]json.RawMessage, error) {
	beforeJSON, err := encodeValue("oldValue", before)
	if err != nil {
		return nil, nil, nil, err
	}
	afterJSON, err := encodeValue("newValue", after)
	if err != nil {
		return nil, nil, nil, err
	}
	if beforeJSON == nil {
		beforeJSON = []byte("{}")
	}
	if afterJSON == nil {
		afterJSON = []byte("{}")
	}

	var oldVals, newVals map[string]json.RawMessage
	if json.Unmarshal(beforeJSON, &oldVals) != nil || json.Unmarshal(afterJSON, &newVals) != nil {
		return nil, nil, nil, dal.Invalid("snapshot", "must be a JSON object")
	}

	patch, err := jsondiff.CompareJSON(beforeJSON, afterJSON)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "diff snapshots")
	}
	seen := map[string]bool{}
	var fields []string
	for _, op := range patch {
		field := topLevel(string(op.Path))
		if field == "" {
			field = topLevel(string(op.From))
		}
		if field == "" || seen[field] || bookkeeping[field] {
			continue
		}
		seen[field] = true
		fields = append(fields, field)
	}
	return fields, oldVals, newVals, nil
}

// topLevel extracts the first segment of a JSON pointer.
func topLevel(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	segment, _, _ := strings.Cut(pointer, "/")
	return strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
}

func (l *Ledger) RecordChange(ctx context.Context, e NewEntry) (Entry, error) {
	return Record(ctx, l.DB, e)
}

func (l *Ledger) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Entry], error) {
	if _, ok := tenancy.ParseID(orgID); !ok {
		return dal.PageResult[Entry]{}, dal.ErrNotFoundOrForbidden
	}
	query := "SELECT " + entryColumns + " FROM change_log_entries WHERE organization_id = $1"
	args := []any{orgID}
	if filter.ComponentType != "" {
		query += fmt.Sprintf(" AND component_type = $%d", len(args)+1)
		args = append(args, string(filter.ComponentType))
	}
	if filter.ComponentID != "" {
		if _, ok := tenancy.ParseID(filter.ComponentID); !ok {
			return dal.PageResult[Entry]{}, dal.Invalid("componentId", "must be a valid id")
		}
		query += fmt.Sprintf(" AND component_id = $%d", len(args)+1)
		args = append(args, filter.ComponentID)
	}
	if filter.ChangeType != "" {
		query += fmt.Sprintf(" AND change_type = $%d", len(args)+1)
		args = append(args, string(filter.ChangeType))
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at > $%d", len(args)+1)
		args = append(args, *filter.Since)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Entry]{}, err
	}

	rows, err := l.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Entry]{}, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return dal.PageResult[Entry]{}, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Entry]{}, err
	}
	return dal.Paginate(items, limit, func(e Entry) dal.Cursor {
		return dal.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

// ResolveComponent reports whether the component an entry points at still
// exists in orgID.
func (l *Ledger) ResolveComponent(ctx context.Context, orgID string, componentType ComponentType, id string) (bool, error) {
	if !componentType.Valid() {
		return false, dal.Invalid("componentType", "unknown component type")
	}
	for _, table := range componentType.Tables() {
		err := tenancy.Require(ctx, l.DB, table, id, orgID)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, dal.ErrNotFoundOrForbidden) {
			return false, err
		}
	}
	return false, nil
}

func RecordCreate(ctx context.Context, q dal.Querier, orgID string, t ComponentType, id string, value any, actor Actor) error {
	_, err := Record(ctx, q, NewEntry{OrganizationID: orgID, ComponentType: t, ComponentID: id, ChangeType: Created, NewValue: value, Actor: actor})
	return err
}

func RecordUpdate(ctx context.Context, q dal.Querier, orgID string, t ComponentType, id string, before, after any, actor Actor) error {
	_, err := RecordDiff(ctx, q, NewEntry{OrganizationID: orgID, ComponentType: t, ComponentID: id, Actor: actor}, before, after)
	return err
}

func RecordDelete(ctx context.Context, q dal.Querier, orgID string, t ComponentType, id string, value any, actor Actor) error {
	_, err := Record(ctx, q, NewEntry{OrganizationID: orgID, ComponentType: t, ComponentID: id, ChangeType: Deleted, OldValue: value, Actor: actor})
	return err
}

// RecordRelation logs a junction sync as an update of field on the anchor.
func RecordRelation(ctx context.Context, q dal.Querier, orgID string, t ComponentType, id, field string, before, after []string, actor Actor) error {
	_, err := Record(ctx, q, NewEntry{
		OrganizationID: orgID, ComponentType: t, ComponentID: id, ChangeType: Updated,
		FieldName: field, OldValue: before, NewValue: after, Actor: actor,
	})
	return err
}
