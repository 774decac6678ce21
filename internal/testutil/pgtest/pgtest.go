// Package pgtest provides a migrated Postgres pool and throwaway organizations
// for integration tests. Tests skip when TEST_DATABASE_URL is unset.
package pgtest

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/platform/db"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// Pool returns a pool connected to TEST_DATABASE_URL with all migrations
// applied. The pool is closed when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrateOnce.Do(func() {
		migrateErr = db.Migrate(ctx, pool)
	})
	require.NoError(t, migrateErr)
	return pool
}

// NewOrg inserts an organization with the given headquarters country code
// (empty for none) and deletes it, with all owned rows, on cleanup.
func NewOrg(t *testing.T, pool *pgxpool.Pool, hqCountry string) string {
	t.Helper()
	ctx := context.Background()
	slug := "test-" + uuid.NewString()

	var countryID *string
	if hqCountry != "" {
		id := CountryID(t, pool, hqCountry)
		countryID = &id
	}

	var orgID string
	err := pool.QueryRow(ctx, `
    INSERT INTO organizations (name, slug, headquarters_country_id)
    VALUES ($1,$2,$3)
    RETURNING id
  `, "Test "+slug[5:13], slug, countryID).Scan(&orgID)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM organizations WHERE id = $1", orgID)
	})
	return orgID
}

func CountryID(t *testing.T, pool *pgxpool.Pool, code string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), "SELECT id FROM countries WHERE code = $1", code).Scan(&id)
	require.NoError(t, err, "country %s", code)
	return id
}

func MechanismID(t *testing.T, pool *pgxpool.Pool, code string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), "SELECT id FROM transfer_mechanisms WHERE code = $1 AND organization_id IS NULL", code).Scan(&id)
	require.NoError(t, err, "mechanism %s", code)
	return id
}

// Insert runs an INSERT ... RETURNING id and returns the id.
func Insert(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) string {
	t.Helper()
	var id string
	require.NoError(t, pool.QueryRow(context.Background(), sql, args...).Scan(&id))
	return id
}

func Purpose(t *testing.T, pool *pgxpool.Pool, orgID, name string) string {
	t.Helper()
	return Insert(t, pool, "INSERT INTO purposes (organization_id, name) VALUES ($1,$2) RETURNING id", orgID, name)
}

func DataCategory(t *testing.T, pool *pgxpool.Pool, orgID, name string) string {
	t.Helper()
	return Insert(t, pool, "INSERT INTO data_categories (organization_id, name) VALUES ($1,$2) RETURNING id", orgID, name)
}

func Activity(t *testing.T, pool *pgxpool.Pool, orgID, name string) string {
	t.Helper()
	return Insert(t, pool, "INSERT INTO processing_activities (organization_id, name) VALUES ($1,$2) RETURNING id", orgID, name)
}

func Asset(t *testing.T, pool *pgxpool.Pool, orgID, name string) string {
	t.Helper()
	return Insert(t, pool, "INSERT INTO digital_assets (organization_id, name, asset_type) VALUES ($1,$2,'DATABASE') RETURNING id", orgID, name)
}

// Recipient inserts a PROCESSOR_CHAIN recipient; parentID may be empty.
func Recipient(t *testing.T, pool *pgxpool.Pool, orgID, name, recipientType, parentID string) string {
	t.Helper()
	var parent *string
	if parentID != "" {
		parent = &parentID
	}
	return Insert(t, pool, `
    INSERT INTO recipients (organization_id, name, recipient_type, parent_id)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, orgID, name, recipientType, parent)
}
