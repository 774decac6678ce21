package assets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/assets"
	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/testutil/pgtest"
)

var actor = changes.Actor{ID: "it-admin"}

func TestCreateWithLocations(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := assets.NewStore(pool)
	scc := pgtest.MechanismID(t, pool, "SCC")
	cat := pgtest.DataCategory(t, pool, org, "Contact data")

	d, err := store.Create(ctx, org, assets.CreateInput{
		Name:      "CRM",
		AssetType: "CLOUD_SERVICE",
		Locations: []geography.NewLocation{
			{CountryID: pgtest.CountryID(t, pool, "DE"), Role: geography.RoleHosting},
			{CountryID: pgtest.CountryID(t, pool, "US"), Role: geography.RoleProcessing, TransferMechanismID: &scc},
		},
		DataCategoryIDs: []string{cat},
	}, actor)
	require.NoError(t, err)
	require.Len(t, d.Locations, 2)
	require.Equal(t, "US", d.Locations[1].Country.Code)
	require.Equal(t, []string{cat}, d.DataCategoryIDs)

	locs, err := geography.NewStore(pool).ListLocations(ctx, geography.AssetLocation, org, d.ID, false)
	require.NoError(t, err)
	require.Len(t, locs, 2)
}

func TestCreateRollsBackWithoutMechanism(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := assets.NewStore(pool)

	_, err := store.Create(ctx, org, assets.CreateInput{
		Name:      "Analytics",
		AssetType: "APPLICATION",
		Locations: []geography.NewLocation{{CountryID: pgtest.CountryID(t, pool, "US"), Role: geography.RoleBoth}},
	}, actor)
	require.ErrorIs(t, err, geography.ErrMechanismRequired)
	require.ErrorIs(t, err, dal.ErrValidation)

	res, err := store.List(ctx, org, assets.Filter{}, dal.Page{})
	require.NoError(t, err)
	require.Empty(t, res.Items)
}

func TestUpdateListDelete(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	other := pgtest.NewOrg(t, pool, "DE")
	store := assets.NewStore(pool)

	db1, err := store.Create(ctx, org, assets.CreateInput{Name: "Primary DB", AssetType: "DATABASE"}, actor)
	require.NoError(t, err)
	_, err = store.Create(ctx, org, assets.CreateInput{Name: "Intranet", AssetType: "APPLICATION"}, actor)
	require.NoError(t, err)

	updated, err := store.Update(ctx, org, db1.ID, assets.UpdateInput{IsActive: dal.Set(false)}, actor)
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	_, err = store.Update(ctx, org, db1.ID, assets.UpdateInput{AssetType: dal.Set("SPACESHIP")}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)

	active := true
	res, err := store.List(ctx, org, assets.Filter{IsActive: &active}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, "Intranet", res.Items[0].Name)

	res, err = store.List(ctx, org, assets.Filter{AssetType: "DATABASE"}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	require.ErrorIs(t, store.Delete(ctx, other, db1.ID, actor), dal.ErrNotFoundOrForbidden)
	require.NoError(t, store.Delete(ctx, org, db1.ID, actor))
	got, err := store.Get(ctx, org, db1.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSyncAssetDataCategories(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	other := pgtest.NewOrg(t, pool, "DE")
	store := assets.NewStore(pool)

	a := pgtest.Asset(t, pool, org, "Warehouse")
	c1 := pgtest.DataCategory(t, pool, org, "Identity")
	c2 := pgtest.DataCategory(t, pool, org, "Location")
	foreign := pgtest.DataCategory(t, pool, other, "Foreign")

	res, err := store.SyncDataCategories(ctx, org, a, []string{c1, c2}, actor)
	require.NoError(t, err)
	require.Len(t, res.Added, 2)

	_, err = store.SyncDataCategories(ctx, org, a, []string{c1, foreign}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)

	linked, err := store.ListDataCategories(ctx, org, a)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{c1, c2}, linked)

	res, err = store.SyncDataCategories(ctx, org, a, nil, actor)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{c1, c2}, res.Removed)
}
