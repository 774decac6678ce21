package geography

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/hierarchy"
	"privacyhub/internal/domain/relations"
	"privacyhub/internal/domain/tenancy"
)

// AssessCrossBorderTransfers derives transfer candidates from the active
// processing locations reachable from anchor. It never writes; all reads share
// one read-only snapshot.
func (s *Store) AssessCrossBorderTransfers(ctx context.Context, anchor Anchor, orgID string) (Assessment, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Assessment{}, dal.TxFailure("begin", err)
	}
	defer tx.Rollback(ctx)

	home, err := HomeCountry(ctx, tx, orgID)
	if err != nil {
		return Assessment{}, err
	}
	if home == "" {
		return Assessment{}, ErrHomeCountryUnset
	}
	homeCountry, err := CountryByID(ctx, tx, home)
	if err != nil {
		return Assessment{}, err
	}

	assets, recipients, all, err := owners(ctx, tx, anchor, orgID)
	if err != nil {
		return Assessment{}, err
	}

	var rows []Row
	if all || len(assets) > 0 {
		r, err := activeRows(ctx, tx, AssetLocation, orgID, assets, all)
		if err != nil {
			return Assessment{}, err
		}
		rows = append(rows, r...)
	}
	if all || len(recipients) > 0 {
		r, err := activeRows(ctx, tx, RecipientLocation, orgID, recipients, all)
		if err != nil {
			return Assessment{}, err
		}
		rows = append(rows, r...)
	}
	if err := tx.Commit(ctx); err != nil {
		return Assessment{}, dal.TxFailure("commit", err)
	}

	return Assessment{HomeCountry: homeCountry, Transfers: Derive(home, rows)}, nil
}

// owners resolves the asset and recipient ids whose locations count for
// anchor. all is true for an organization-wide assessment.
func owners(ctx context.Context, q dal.Querier, anchor Anchor, orgID string) (assets, recipients []string, all bool, err error) {
	switch anchor.Kind {
	case AnchorOrganization:
		if anchor.ID != orgID {
			return nil, nil, false, dal.ErrNotFoundOrForbidden
		}
		return nil, nil, true, nil
	case AnchorAsset:
		if err := tenancy.Require(ctx, q, tenancy.DigitalAssets, anchor.ID, orgID); err != nil {
			return nil, nil, false, err
		}
		return []string{anchor.ID}, nil, false, nil
	case AnchorRecipient:
		if err := tenancy.Require(ctx, q, tenancy.Recipients, anchor.ID, orgID); err != nil {
			return nil, nil, false, err
		}
		recipients, err = withDescendants(ctx, q, []string{anchor.ID}, orgID)
		return nil, recipients, false, err
	case AnchorActivity:
		if err := tenancy.Require(ctx, q, tenancy.ProcessingActivities, anchor.ID, orgID); err != nil {
			return nil, nil, false, err
		}
		assets, err = relations.ListTx(ctx, q, relations.ActivityAssets, anchor.ID, orgID)
		if err != nil {
			return nil, nil, false, err
		}
		linked, err := relations.ListTx(ctx, q, relations.ActivityRecipients, anchor.ID, orgID)
		if err != nil {
			return nil, nil, false, err
		}
		recipients, err = withDescendants(ctx, q, linked, orgID)
		return assets, recipients, false, err
	default:
		return nil, nil, false, dal.Invalid("anchorKind", "unknown anchor kind")
	}
}

func withDescendants(ctx context.Context, q dal.Querier, roots []string, orgID string) ([]string, error) {
	checker := hierarchy.NewChecker(hierarchy.Recipients)
	out := append([]string{}, roots...)
	for _, id := range roots {
		tree, err := checker.DescendantTree(ctx, q, id, orgID, 0)
		if err != nil {
			return nil, err
		}
		for _, n := range tree {
			out = append(out, n.ID)
		}
	}
	return tenancy.Dedupe(out), nil
}

func activeRows(ctx context.Context, q dal.Querier, kind LocationKind, orgID string, ownerIDs []string, all bool) ([]Row, error) {
	query := fmt.Sprintf(`
    SELECT l.id::text, l.%[1]s::text, c.id::text, c.code, c.name, c.gdpr_status,
           m.id::text, m.code, m.name
    FROM %[2]s l
    JOIN countries c ON c.id = l.country_id
    LEFT JOIN transfer_mechanisms m ON m.id = l.transfer_mechanism_id
    WHERE l.organization_id = $1 AND l.is_active`, kind.ownerColumn(), kind.table())
	args := []any{orgID}
	if !all {
		query += fmt.Sprintf(" AND l.%s = ANY($2::uuid[])", kind.ownerColumn())
		args = append(args, ownerIDs)
	}
	query += " ORDER BY l.created_at, l.id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r := Row{Kind: kind}
		var mechID, mechCode, mechName *string
		if err := rows.Scan(&r.LocationID, &r.OwnerID, &r.Country.ID, &r.Country.Code, &r.Country.Name, &r.Country.GDPRStatus,
			&mechID, &mechCode, &mechName); err != nil {
			return nil, err
		}
		if mechID != nil {
			r.Mechanism = &Mechanism{ID: *mechID, Code: deref(mechCode), Name: deref(mechName)}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
