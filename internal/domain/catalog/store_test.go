package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/catalog"
	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/testutil/pgtest"
)

var actor = changes.Actor{ID: "dpo"}

func TestItemLifecycle(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	item, err := store.Create(ctx, catalog.DataCategories, org, catalog.CreateInput{Name: " Health ", IsSpecialCategory: true}, actor)
	require.NoError(t, err)
	require.Equal(t, "Health", item.Name)
	require.True(t, item.IsSpecialCategory)
	require.True(t, item.IsActive)

	desc := "medical records"
	updated, err := store.Update(ctx, catalog.DataCategories, org, item.ID, catalog.UpdateInput{Description: dal.Set(desc)}, actor)
	require.NoError(t, err)
	require.Equal(t, desc, *updated.Description)
	require.Equal(t, "Health", updated.Name)

	cleared, err := store.Update(ctx, catalog.DataCategories, org, item.ID, catalog.UpdateInput{Description: dal.Null[string]()}, actor)
	require.NoError(t, err)
	require.Nil(t, cleared.Description)

	inactive, err := store.SetActive(ctx, catalog.DataCategories, org, item.ID, false, actor)
	require.NoError(t, err)
	require.False(t, inactive.IsActive)

	require.NoError(t, store.Delete(ctx, catalog.DataCategories, org, item.ID, actor))
	got, err := store.Get(ctx, catalog.DataCategories, org, item.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	history, err := changes.NewLedger(pool).List(ctx, org, changes.Filter{ComponentType: changes.DataCategory, ComponentID: item.ID}, dal.Page{})
	require.NoError(t, err)
	kinds := map[changes.ChangeKind]int{}
	for _, e := range history.Items {
		kinds[e.ChangeType]++
	}
	require.Equal(t, 1, kinds[changes.Created])
	require.Equal(t, 1, kinds[changes.Deleted])
	require.Equal(t, 3, kinds[changes.Updated])
}

func TestSpecialCategoryOnlyForDataCategories(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	p, err := store.Create(ctx, catalog.Purposes, org, catalog.CreateInput{Name: "Payroll"}, actor)
	require.NoError(t, err)
	require.False(t, p.IsSpecialCategory)

	_, err = store.Update(ctx, catalog.Purposes, org, p.ID, catalog.UpdateInput{IsSpecialCategory: dal.Set(true)}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)
}

func TestDuplicateNameIsConstraint(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	_, err := store.Create(ctx, catalog.Purposes, org, catalog.CreateInput{Name: "Marketing"}, actor)
	require.NoError(t, err)
	_, err = store.Create(ctx, catalog.Purposes, org, catalog.CreateInput{Name: "Marketing"}, actor)
	require.ErrorIs(t, err, dal.ErrConstraint)
	require.True(t, dal.IsUniqueViolation(err))

	_, err = store.Create(ctx, catalog.Purposes, org, catalog.CreateInput{Name: ""}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)
}

func TestTenantIsolation(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "DE")
	orgB := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	item, err := store.Create(ctx, catalog.DataSubjectCategories, orgA, catalog.CreateInput{Name: "Employees"}, actor)
	require.NoError(t, err)

	got, err := store.Get(ctx, catalog.DataSubjectCategories, orgB, item.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = store.Update(ctx, catalog.DataSubjectCategories, orgB, item.ID, catalog.UpdateInput{Name: dal.Set("Hijacked")}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	require.ErrorIs(t, store.Delete(ctx, catalog.DataSubjectCategories, orgB, item.ID, actor), dal.ErrNotFoundOrForbidden)

	got, err = store.Get(ctx, catalog.DataSubjectCategories, orgA, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Employees", got.Name)

	missing, err := store.Get(ctx, catalog.DataSubjectCategories, orgA, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListPaginatesAndFilters(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	for _, name := range []string{"Billing", "Support", "Analytics", "Billing archive", "Security"} {
		_, err := store.Create(ctx, catalog.Purposes, org, catalog.CreateInput{Name: name}, actor)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	page := dal.Page{Limit: 2}
	for i := 0; i < 5; i++ {
		res, err := store.List(ctx, catalog.Purposes, org, catalog.Filter{}, page)
		require.NoError(t, err)
		for _, it := range res.Items {
			require.False(t, seen[it.ID], "duplicate across pages")
			seen[it.ID] = true
		}
		if res.NextCursor == nil {
			break
		}
		page.Cursor = *res.NextCursor
	}
	require.Len(t, seen, 5)

	res, err := store.List(ctx, catalog.Purposes, org, catalog.Filter{Search: "billing"}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Nil(t, res.NextCursor)

	active := false
	res, err = store.List(ctx, catalog.Purposes, org, catalog.Filter{IsActive: &active}, dal.Page{})
	require.NoError(t, err)
	require.Empty(t, res.Items)

	_, err = store.List(ctx, catalog.Purposes, org, catalog.Filter{}, dal.Page{Cursor: "%%%"})
	require.ErrorIs(t, err, dal.ErrValidation)
}

func TestReferenceData(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := catalog.NewStore(pool)

	third, err := store.ListCountries(ctx, "THIRD_COUNTRY")
	require.NoError(t, err)
	var codes []string
	for _, c := range third {
		codes = append(codes, c.Code)
	}
	require.Contains(t, codes, "US")
	require.NotContains(t, codes, "DE")

	us, err := store.CountryByCode(ctx, "us")
	require.NoError(t, err)
	require.Equal(t, "United States", us.Name)
	none, err := store.CountryByCode(ctx, "XX")
	require.NoError(t, err)
	require.Nil(t, none)

	custom, err := store.CreateMechanism(ctx, org, catalog.MechanismInput{Code: "dpa-2024", Name: "Group DPA", Category: "SAFEGUARD"})
	require.NoError(t, err)
	require.Equal(t, "DPA-2024", custom.Code)

	other := pgtest.NewOrg(t, pool, "DE")
	mine, err := store.ListMechanisms(ctx, org)
	require.NoError(t, err)
	theirs, err := store.ListMechanisms(ctx, other)
	require.NoError(t, err)
	require.Len(t, mine, len(theirs)+1)
}
