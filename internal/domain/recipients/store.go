package recipients

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
	"privacyhub/internal/domain/hierarchy"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/platform/db"
)

type Store struct {
	DB      *pgxpool.Pool
	checker hierarchy.Checker
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool, checker: hierarchy.NewChecker(hierarchy.Recipients)}
}

const columns = `id::text, organization_id::text, name, recipient_type, hierarchy_type, parent_id::text,
  external_organization_id::text, description, is_active, metadata, created_at, updated_at`

func scan(row pgx.Row) (Recipient, error) {
	var r Recipient
	var typ string
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.RecipientType, &typ, &r.ParentID,
		&r.ExternalOrganizationID, &r.Description, &r.IsActive, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	r.HierarchyType = hierarchy.Type(typ)
	return r, err
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

// lockHierarchy serializes parent changes within one organization so two
// concurrent moves cannot together close a loop.
func lockHierarchy(ctx context.Context, tx pgx.Tx, orgID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('recipients:' || $1))`, orgID)
	return err
}

func (s *Store) Create(ctx context.Context, orgID string, in CreateInput, actor changes.Actor) (Detail, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.HierarchyType == "" {
		in.HierarchyType = hierarchy.ProcessorChain
	}
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
		if in.ParentID != nil {
			if err := lockHierarchy(ctx, tx, orgID); err != nil {
				return Detail{}, err
			}
			if err := s.checker.ValidateParent(ctx, tx, "", *in.ParentID, orgID, in.HierarchyType); err != nil {
				return Detail{}, err
			}
		}
		r, err := scan(tx.QueryRow(ctx, `
      INSERT INTO recipients (organization_id, name, recipient_type, hierarchy_type, parent_id, external_organization_id, description, metadata)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      RETURNING `+columns, orgID, in.Name, in.RecipientType, string(in.HierarchyType), in.ParentID, in.ExternalOrganizationID, in.Description, meta))
		if err != nil {
			return Detail{}, dal.MapError(err)
		}
		if err := changes.RecordCreate(ctx, tx, orgID, changes.Recipient, r.ID, r, actor); err != nil {
			return Detail{}, err
		}

		inputs := make([]geography.LocationInput, 0, len(in.Locations))
		for _, l := range in.Locations {
			inputs = append(inputs, l.For(r.ID))
		}
		locations, err := geography.CreateLocationsTx(ctx, tx, geography.RecipientLocation, orgID, inputs, actor)
		if err != nil {
			return Detail{}, err
		}
		return Detail{Recipient: r, Locations: locations}, nil
	})
}

// Get returns nil when the recipient is absent or belongs to another organization.
func (s *Store) Get(ctx context.Context, orgID, id string) (*Recipient, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, nil
	}
	r, err := get(ctx, s.DB, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func get(ctx context.Context, q dal.Querier, orgID, id string) (Recipient, error) {
	r, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM recipients WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Recipient{}, dal.MapError(err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter, page dal.Page) (dal.PageResult[Recipient], error) {
	query := `SELECT ` + columns + ` FROM recipients WHERE organization_id = $1`
	args := []any{orgID}
	if filter.RecipientType != "" {
		query += fmt.Sprintf(" AND recipient_type = $%d", len(args)+1)
		args = append(args, filter.RecipientType)
	}
	if filter.HierarchyType != "" {
		query += fmt.Sprintf(" AND hierarchy_type = $%d", len(args)+1)
		args = append(args, string(filter.HierarchyType))
	}
	switch {
	case filter.RootsOnly:
		query += " AND parent_id IS NULL"
	case filter.ParentID != "":
		if _, ok := tenancy.ParseID(filter.ParentID); !ok {
			return dal.PageResult[Recipient]{}, dal.Invalid("parentId", "must be a UUID")
		}
		query += fmt.Sprintf(" AND parent_id = $%d", len(args)+1)
		args = append(args, filter.ParentID)
	}
	if filter.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.IsActive)
	}
	query, args, limit, err := dal.Keyset(query, args, "", page)
	if err != nil {
		return dal.PageResult[Recipient]{}, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return dal.PageResult[Recipient]{}, err
	}
	defer rows.Close()

	var items []Recipient
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return dal.PageResult[Recipient]{}, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return dal.PageResult[Recipient]{}, err
	}
	return dal.Paginate(items, limit, func(r Recipient) dal.Cursor {
		return dal.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	}), nil
}

// Update applies the patch. A parent or hierarchy type change is validated
// against the current tree inside the transaction before anything is written.
func (s *Store) Update(ctx context.Context, orgID, id string, in UpdateInput, actor changes.Actor) (Recipient, error) {
	u := dal.NewUpdates(orgID, id)
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return Recipient{}, dal.Invalid("name", "is required")
		}
		u.Add("name", strings.TrimSpace(in.Name.Value))
	}
	if in.RecipientType.Set {
		if in.RecipientType.Null || !recipientTypes[in.RecipientType.Value] {
			return Recipient{}, dal.Invalid("recipientType", "unknown recipient type")
		}
		u.Add("recipient_type", in.RecipientType.Value)
	}
	if in.HierarchyType.Set {
		if in.HierarchyType.Null || !in.HierarchyType.Value.Valid() {
			return Recipient{}, dal.Invalid("hierarchyType", "unknown hierarchy type")
		}
		u.Add("hierarchy_type", string(in.HierarchyType.Value))
	}
	dal.ApplyField(u, "parent_id", in.ParentID)
	dal.ApplyField(u, "external_organization_id", in.ExternalOrganizationID)
	dal.ApplyField(u, "description", in.Description)
	if in.IsActive.Set {
		if in.IsActive.Null {
			return Recipient{}, dal.Invalid("isActive", "cannot be null")
		}
		u.Add("is_active", in.IsActive.Value)
	}
	if in.Metadata.Set {
		meta, err := metadataJSON(in.Metadata.Value)
		if err != nil {
			return Recipient{}, err
		}
		u.Add("metadata", meta)
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Recipient, error) {
		if in.ParentID.Set || in.HierarchyType.Set {
			if err := lockHierarchy(ctx, tx, orgID); err != nil {
				return Recipient{}, err
			}
		}
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.Recipients, id, orgID); err != nil {
			return Recipient{}, err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return Recipient{}, err
		}
		if u.Empty() {
			return before, nil
		}
		if err := s.validateMove(ctx, tx, orgID, before, in); err != nil {
			return Recipient{}, err
		}
		after, err := scan(tx.QueryRow(ctx, `
      UPDATE recipients SET `+u.Clause()+`, updated_at = now()
      WHERE organization_id = $1 AND id = $2
      RETURNING `+columns, u.Args()...))
		if err != nil {
			return Recipient{}, dal.MapError(err)
		}
		if err := changes.RecordUpdate(ctx, tx, orgID, changes.Recipient, id, before, after, actor); err != nil {
			return Recipient{}, err
		}
		return after, nil
	})
}

func (s *Store) validateMove(ctx context.Context, tx pgx.Tx, orgID string, before Recipient, in UpdateInput) error {
	typ := before.HierarchyType
	if in.HierarchyType.Set {
		typ = in.HierarchyType.Value
	}
	parent := ""
	if before.ParentID != nil {
		parent = *before.ParentID
	}
	if in.ParentID.Set {
		parent = ""
		if !in.ParentID.Null {
			parent = in.ParentID.Value
		}
	}

	if typ != before.HierarchyType {
		children, err := s.checker.DirectChildren(ctx, tx, before.ID, orgID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return dal.Invalid("hierarchyType", "cannot change while the recipient has children")
		}
	}
	if !in.ParentID.Set && typ == before.HierarchyType {
		return nil
	}
	return s.checker.ValidateParent(ctx, tx, before.ID, parent, orgID, typ)
}

// Delete removes the recipient. Its children become roots and each of them
// gets a parentId change entry.
func (s *Store) Delete(ctx context.Context, orgID, id string, actor changes.Actor) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := lockHierarchy(ctx, tx, orgID); err != nil {
			return err
		}
		if err := tenancy.RequireForUpdate(ctx, tx, tenancy.Recipients, id, orgID); err != nil {
			return err
		}
		before, err := get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		children, err := s.checker.DirectChildren(ctx, tx, id, orgID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recipients WHERE organization_id = $1 AND id = $2`, orgID, id); err != nil {
			return dal.MapError(err)
		}
		if err := changes.RecordDelete(ctx, tx, orgID, changes.Recipient, id, before, actor); err != nil {
			return err
		}
		for _, child := range children {
			if _, err := changes.Record(ctx, tx, changes.NewEntry{
				OrganizationID: orgID,
				ComponentType:  changes.Recipient,
				ComponentID:    child.ID,
				ChangeType:     changes.Updated,
				FieldName:      "parentId",
				OldValue:       id,
				NewValue:       nil,
				Actor:          actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Children(ctx context.Context, orgID, id string) ([]hierarchy.Node, error) {
	return s.checker.DirectChildren(ctx, s.DB, id, orgID)
}

// Tree returns the descendants of id limited to the maximum depth of its
// hierarchy type.
func (s *Store) Tree(ctx context.Context, orgID, id string) ([]hierarchy.Node, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return nil, dal.ErrNotFoundOrForbidden
	}
	r, err := get(ctx, s.DB, orgID, id)
	if err != nil {
		return nil, err
	}
	return s.checker.DescendantTree(ctx, s.DB, id, orgID, r.HierarchyType.MaxDepth())
}

func (s *Store) Ancestors(ctx context.Context, orgID, id string) ([]hierarchy.Node, error) {
	return s.checker.AncestorChain(ctx, s.DB, id, orgID)
}

func (s *Store) Depth(ctx context.Context, orgID, id string) (int, error) {
	return s.checker.CalculateDepth(ctx, s.DB, id, orgID)
}

// Orphaned lists sub-processors that have no parent processor.
func (s *Store) Orphaned(ctx context.Context, orgID string) ([]hierarchy.Node, error) {
	return s.checker.FindOrphaned(ctx, s.DB, orgID, hierarchy.OrphanedSubProcessors)
}

// Unlinked lists external recipients without an external organization reference.
func (s *Store) Unlinked(ctx context.Context, orgID string) ([]hierarchy.Node, error) {
	return s.checker.FindUnlinked(ctx, s.DB, orgID, hierarchy.UnlinkedExternal)
}
