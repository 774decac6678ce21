package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
)

// ListCountries returns the shared country reference table ordered by code.
// status filters on gdpr_status when not empty.
func (s *Store) ListCountries(ctx context.Context, status string) ([]Country, error) {
	query := `SELECT id::text, code, name, gdpr_status FROM countries`
	var args []any
	if status != "" {
		query += ` WHERE gdpr_status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY code`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	countries := []Country{}
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.GDPRStatus); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

func (s *Store) CountryByCode(ctx context.Context, code string) (*Country, error) {
	var c Country
	err := s.DB.QueryRow(ctx, `SELECT id::text, code, name, gdpr_status FROM countries WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code))).Scan(&c.ID, &c.Code, &c.Name, &c.GDPRStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListMechanisms returns the global transfer mechanisms plus those defined by orgID.
func (s *Store) ListMechanisms(ctx context.Context, orgID string) ([]Mechanism, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, organization_id::text, code, name, category
    FROM transfer_mechanisms
    WHERE organization_id IS NULL OR organization_id = $1
    ORDER BY organization_id NULLS FIRST, code
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mechanisms := []Mechanism{}
	for rows.Next() {
		var m Mechanism
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Code, &m.Name, &m.Category); err != nil {
			return nil, err
		}
		mechanisms = append(mechanisms, m)
	}
	return mechanisms, rows.Err()
}

// CreateMechanism adds an organization-specific transfer mechanism.
func (s *Store) CreateMechanism(ctx context.Context, orgID string, in MechanismInput) (Mechanism, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := dal.Validate(in); err != nil {
		return Mechanism{}, err
	}
	if err := tenancy.Require(ctx, s.DB, tenancy.Organizations, orgID, orgID); err != nil {
		return Mechanism{}, err
	}
	var m Mechanism
	err := s.DB.QueryRow(ctx, `
    INSERT INTO transfer_mechanisms (organization_id, code, name, category)
    VALUES ($1,$2,$3,$4)
    RETURNING id::text, organization_id::text, code, name, category
  `, orgID, in.Code, in.Name, in.Category).Scan(&m.ID, &m.OrganizationID, &m.Code, &m.Name, &m.Category)
	if err != nil {
		return Mechanism{}, dal.MapError(err)
	}
	return m, nil
}
