package geography

import (
	"context"
	"fmt"

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

const locationColumns = `
    l.id::text, l.organization_id::text, l.%[1]s::text, l.role, l.purpose_id::text, l.transfer_mechanism_id::text,
    l.is_active, l.created_at, l.updated_at, c.id::text, c.code, c.name, c.gdpr_status`

func scanLocation(kind LocationKind, row pgx.Row) (Location, error) {
	loc := Location{Kind: kind}
	var role string
	err := row.Scan(&loc.ID, &loc.OrganizationID, &loc.OwnerID, &role, &loc.PurposeID, &loc.TransferMechanismID,
		&loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt, &loc.Country.ID, &loc.Country.Code, &loc.Country.Name, &loc.Country.GDPRStatus)
	loc.Role = Role(role)
	return loc, err
}

func selectLocations(kind LocationKind) string {
	return "SELECT " + fmt.Sprintf(locationColumns, kind.ownerColumn()) +
		" FROM " + string(kind.table()) + " l JOIN countries c ON c.id = l.country_id"
}

// HomeCountry returns the organization's headquarters country id, or "" when
// none is recorded.
func HomeCountry(ctx context.Context, q dal.Querier, orgID string) (string, error) {
	if err := tenancy.Require(ctx, q, tenancy.Organizations, orgID, orgID); err != nil {
		return "", err
	}
	var home *string
	if err := q.QueryRow(ctx, "SELECT headquarters_country_id::text FROM organizations WHERE id = $1", orgID).Scan(&home); err != nil {
		return "", dal.MapError(err)
	}
	if home == nil {
		return "", nil
	}
	return *home, nil
}

func CountryByID(ctx context.Context, q dal.Querier, id string) (Country, error) {
	if _, ok := tenancy.ParseID(id); !ok {
		return Country{}, dal.ErrNotFoundOrForbidden
	}
	var c Country
	err := q.QueryRow(ctx, "SELECT id::text, code, name, gdpr_status FROM countries WHERE id = $1", id).
		Scan(&c.ID, &c.Code, &c.Name, &c.GDPRStatus)
	if err != nil {
		return Country{}, dal.MapError(err)
	}
	return c, nil
}

// checkMechanism enforces the safeguard rule. It runs on the pool before any
// transaction is opened.
func (s *Store) checkMechanism(ctx context.Context, orgID, countryID string, mechanismID *string) error {
	home, err := HomeCountry(ctx, s.DB, orgID)
	if err != nil {
		return err
	}
	country, err := CountryByID(ctx, s.DB, countryID)
	if err != nil {
		return err
	}
	if RequiresMechanism(home, country) && (mechanismID == nil || *mechanismID == "") {
		return ErrMechanismRequired
	}
	return nil
}

func (s *Store) CreateLocation(ctx context.Context, kind LocationKind, orgID string, in LocationInput, actor changes.Actor) (Location, error) {
	if !kind.Valid() {
		return Location{}, dal.Invalid("kind", "unknown location kind")
	}
	if err := dal.Validate(in); err != nil {
		return Location{}, err
	}
	if err := s.checkMechanism(ctx, orgID, in.CountryID, in.TransferMechanismID); err != nil {
		return Location{}, err
	}
	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Location, error) {
		return insertLocation(ctx, tx, kind, orgID, in, actor)
	})
}

// CreateLocationsTx validates and inserts locations inside an existing
// transaction, for create-with-children flows.
func CreateLocationsTx(ctx context.Context, tx pgx.Tx, kind LocationKind, orgID string, inputs []LocationInput, actor changes.Actor) ([]Location, error) {
	if len(inputs) == 0 {
		return []Location{}, nil
	}
	home, err := HomeCountry(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(inputs))
	for i, in := range inputs {
		if err := dal.Validate(in); err != nil {
			return nil, err
		}
		country, err := CountryByID(ctx, tx, in.CountryID)
		if err != nil {
			return nil, err
		}
		if RequiresMechanism(home, country) && (in.TransferMechanismID == nil || *in.TransferMechanismID == "") {
			return nil, errors.Wrapf(ErrMechanismRequired, "location %d", i)
		}
		loc, err := insertLocation(ctx, tx, kind, orgID, in, actor)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func insertLocation(ctx context.Context, tx pgx.Tx, kind LocationKind, orgID string, in LocationInput, actor changes.Actor) (Location, error) {
	if err := tenancy.Require(ctx, tx, kind.ownerTable(), in.OwnerID, orgID); err != nil {
		return Location{}, err
	}
	if err := tenancy.RequireVisible(ctx, tx, tenancy.Countries, in.CountryID, orgID); err != nil {
		return Location{}, err
	}
	if in.PurposeID != nil {
		if err := tenancy.Require(ctx, tx, tenancy.Purposes, *in.PurposeID, orgID); err != nil {
			return Location{}, err
		}
	}
	if in.TransferMechanismID != nil {
		if err := tenancy.RequireVisible(ctx, tx, tenancy.TransferMechanisms, *in.TransferMechanismID, orgID); err != nil {
			return Location{}, err
		}
	}

	var id string
	query := fmt.Sprintf(`
    INSERT INTO %s (organization_id, %s, country_id, role, purpose_id, transfer_mechanism_id)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id::text
  `, kind.table(), kind.ownerColumn())
	if err := tx.QueryRow(ctx, query, orgID, in.OwnerID, in.CountryID, string(in.Role), in.PurposeID, in.TransferMechanismID).Scan(&id); err != nil {
		return Location{}, dal.MapError(err)
	}
	loc, err := getLocation(ctx, tx, kind, orgID, id)
	if err != nil {
		return Location{}, err
	}
	if _, err := changes.Record(ctx, tx, changes.NewEntry{
		OrganizationID: orgID,
		ComponentType:  changes.ProcessingLocation,
		ComponentID:    loc.ID,
		ChangeType:     changes.Created,
		NewValue:       loc,
		Actor:          actor,
	}); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func getLocation(ctx context.Context, q dal.Querier, kind LocationKind, orgID, id string) (Location, error) {
	loc, err := scanLocation(kind, q.QueryRow(ctx, selectLocations(kind)+" WHERE l.organization_id = $1 AND l.id = $2", orgID, id))
	if err != nil {
		return Location{}, dal.MapError(err)
	}
	return loc, nil
}

// GetLocation returns nil when the location does not exist in orgID.
func (s *Store) GetLocation(ctx context.Context, kind LocationKind, orgID, id string) (*Location, error) {
	if _, ok := tenancy.ParseID(id); !ok || !kind.Valid() {
		return nil, nil
	}
	loc, err := getLocation(ctx, s.DB, kind, orgID, id)
	if errors.Is(err, dal.ErrNotFoundOrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *Store) ListLocations(ctx context.Context, kind LocationKind, orgID, ownerID string, includeInactive bool) ([]Location, error) {
	if !kind.Valid() {
		return nil, dal.Invalid("kind", "unknown location kind")
	}
	if err := tenancy.Require(ctx, s.DB, kind.ownerTable(), ownerID, orgID); err != nil {
		return nil, err
	}
	query := selectLocations(kind) + fmt.Sprintf(" WHERE l.organization_id = $1 AND l.%s = $2", kind.ownerColumn())
	if !includeInactive {
		query += " AND l.is_active"
	}
	query += " ORDER BY l.created_at, l.id"

	rows, err := s.DB.Query(ctx, query, orgID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Location{}
	for rows.Next() {
		loc, err := scanLocation(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateLocation(ctx context.Context, kind LocationKind, orgID, id string, actor changes.Actor) error {
	if !kind.Valid() {
		return dal.Invalid("kind", "unknown location kind")
	}
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return deactivate(ctx, tx, kind, orgID, id, actor)
	})
}

func deactivate(ctx context.Context, tx pgx.Tx, kind LocationKind, orgID, id string, actor changes.Actor) error {
	if err := tenancy.RequireForUpdate(ctx, tx, kind.table(), id, orgID); err != nil {
		return err
	}
	active, err := isActive(ctx, tx, kind, orgID, id)
	if err != nil {
		return err
	}
	if !active {
		return nil
	}
	update := fmt.Sprintf("UPDATE %s SET is_active = false, updated_at = now() WHERE organization_id = $1 AND id = $2", kind.table())
	if _, err := tx.Exec(ctx, update, orgID, id); err != nil {
		return dal.MapError(err)
	}
	_, err = changes.Record(ctx, tx, changes.NewEntry{
		OrganizationID: orgID,
		ComponentType:  changes.ProcessingLocation,
		ComponentID:    id,
		ChangeType:     changes.Updated,
		FieldName:      "isActive",
		OldValue:       true,
		NewValue:       false,
		Actor:          actor,
	})
	return err
}

func isActive(ctx context.Context, q dal.Querier, kind LocationKind, orgID, id string) (bool, error) {
	var active bool
	query := fmt.Sprintf("SELECT is_active FROM %s WHERE organization_id = $1 AND id = $2", kind.table())
	if err := q.QueryRow(ctx, query, orgID, id).Scan(&active); err != nil {
		return false, dal.MapError(err)
	}
	return active, nil
}

// MoveLocation replaces a location with a new one in another country. The new
// row is inserted and the old one deactivated in one transaction.
func (s *Store) MoveLocation(ctx context.Context, kind LocationKind, orgID, locationID string, in MoveInput, actor changes.Actor) (Location, error) {
	if !kind.Valid() {
		return Location{}, dal.Invalid("kind", "unknown location kind")
	}
	if err := dal.Validate(in); err != nil {
		return Location{}, err
	}
	current, err := s.GetLocation(ctx, kind, orgID, locationID)
	if err != nil {
		return Location{}, err
	}
	if current == nil {
		return Location{}, dal.ErrNotFoundOrForbidden
	}
	if !current.IsActive {
		return Location{}, dal.Invalid("locationId", "location is inactive")
	}
	next := LocationInput{
		OwnerID:             current.OwnerID,
		CountryID:           in.CountryID,
		Role:                current.Role,
		PurposeID:           current.PurposeID,
		TransferMechanismID: current.TransferMechanismID,
	}
	if in.Role != "" {
		next.Role = in.Role
	}
	if in.TransferMechanismID != nil {
		next.TransferMechanismID = in.TransferMechanismID
	}
	if err := s.checkMechanism(ctx, orgID, next.CountryID, next.TransferMechanismID); err != nil {
		return Location{}, err
	}

	return db.InTxResult(ctx, s.DB, func(tx pgx.Tx) (Location, error) {
		if err := tenancy.RequireForUpdate(ctx, tx, kind.table(), locationID, orgID); err != nil {
			return Location{}, err
		}
		// A concurrent move may have replaced the row since it was read.
		active, err := isActive(ctx, tx, kind, orgID, locationID)
		if err != nil {
			return Location{}, err
		}
		if !active {
			return Location{}, dal.Invalid("locationId", "location is inactive")
		}
		created, err := insertLocation(ctx, tx, kind, orgID, next, actor)
		if err != nil {
			return Location{}, err
		}
		if err := deactivate(ctx, tx, kind, orgID, locationID, actor); err != nil {
			return Location{}, err
		}
		return created, nil
	})
}
