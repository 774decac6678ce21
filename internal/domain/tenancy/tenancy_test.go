package tenancy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
	"privacyhub/internal/testutil/pgtest"
)

func TestDedupePreservesOrder(t *testing.T) {
	require.Equal(t, []string{"b", "a", "c"}, tenancy.Dedupe([]string{"b", "a", "b", "c", "a"}))
	require.Nil(t, tenancy.Dedupe(nil))
}

func TestParseID(t *testing.T) {
	_, ok := tenancy.ParseID("not-a-uuid")
	require.False(t, ok)
	id := uuid.NewString()
	parsed, ok := tenancy.ParseID(id)
	require.True(t, ok)
	require.Equal(t, id, parsed.String())
}

func TestRequireIsolatesOrganizations(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "DE")
	orgB := pgtest.NewOrg(t, pool, "DE")
	purpose := pgtest.Purpose(t, pool, orgA, "Payroll")

	require.NoError(t, tenancy.Require(ctx, pool, tenancy.Purposes, purpose, orgA))

	foreign := tenancy.Require(ctx, pool, tenancy.Purposes, purpose, orgB)
	missing := tenancy.Require(ctx, pool, tenancy.Purposes, uuid.NewString(), orgA)
	malformed := tenancy.Require(ctx, pool, tenancy.Purposes, "42", orgA)
	for _, err := range []error{foreign, missing, malformed} {
		require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
		require.Equal(t, foreign.Error(), err.Error())
	}
}

func TestRequireAll(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "")
	orgB := pgtest.NewOrg(t, pool, "")
	p1 := pgtest.Purpose(t, pool, orgA, "One")
	p2 := pgtest.Purpose(t, pool, orgA, "Two")
	other := pgtest.Purpose(t, pool, orgB, "Other")

	require.NoError(t, tenancy.RequireAll(ctx, pool, tenancy.Purposes, []string{p1, p2, p1}, orgA))
	require.NoError(t, tenancy.RequireAll(ctx, pool, tenancy.Purposes, nil, orgA))
	require.ErrorIs(t, tenancy.RequireAll(ctx, pool, tenancy.Purposes, []string{p1, other}, orgA), dal.ErrNotFoundOrForbidden)
}

func TestRequireVisibleAcceptsGlobalMechanisms(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "")
	orgB := pgtest.NewOrg(t, pool, "")

	scc := pgtest.MechanismID(t, pool, "SCC")
	require.NoError(t, tenancy.RequireVisible(ctx, pool, tenancy.TransferMechanisms, scc, orgA))

	private := pgtest.Insert(t, pool, "INSERT INTO transfer_mechanisms (organization_id, code, name) VALUES ($1,'CUSTOM','Custom') RETURNING id", orgA)
	require.NoError(t, tenancy.RequireVisible(ctx, pool, tenancy.TransferMechanisms, private, orgA))
	require.ErrorIs(t, tenancy.RequireVisible(ctx, pool, tenancy.TransferMechanisms, private, orgB), dal.ErrNotFoundOrForbidden)

	require.NoError(t, tenancy.RequireVisible(ctx, pool, tenancy.Countries, pgtest.CountryID(t, pool, "US"), orgB))
}
