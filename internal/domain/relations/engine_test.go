package relations_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/relations"
	"privacyhub/internal/testutil/pgtest"
)

func sorted(ids ...string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

func listSorted(t *testing.T, e *relations.Engine, j relations.Junction, anchor, org string) []string {
	t.Helper()
	ids, err := e.List(context.Background(), j, anchor, org)
	require.NoError(t, err)
	sort.Strings(ids)
	return ids
}

func TestSyncReplacesSet(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	activity := pgtest.Activity(t, pool, org, "Payroll")
	p1 := pgtest.Purpose(t, pool, org, "P1")
	p2 := pgtest.Purpose(t, pool, org, "P2")
	p3 := pgtest.Purpose(t, pool, org, "P3")
	engine := relations.NewEngine(pool)

	_, err := engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p1, p2})
	require.NoError(t, err)

	res, err := engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p2, p3})
	require.NoError(t, err)
	require.Equal(t, []string{p3}, res.Added)
	require.Equal(t, []string{p1}, res.Removed)
	require.Equal(t, []string{p2}, res.Unchanged)
	require.Equal(t, sorted(p2, p3), listSorted(t, engine, relations.ActivityPurposes, activity, org))

	again, err := engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p3, strings.ToUpper(p2)})
	require.NoError(t, err)
	require.False(t, again.Changed())

	_, err = engine.Sync(ctx, relations.ActivityPurposes, activity, org, nil)
	require.NoError(t, err)
	require.Empty(t, listSorted(t, engine, relations.ActivityPurposes, activity, org))
}

func TestSyncIsAtomic(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "")
	other := pgtest.NewOrg(t, pool, "")
	activity := pgtest.Activity(t, pool, org, "Marketing")
	p1 := pgtest.Purpose(t, pool, org, "P1")
	p2 := pgtest.Purpose(t, pool, org, "P2")
	foreign := pgtest.Purpose(t, pool, other, "Foreign")
	engine := relations.NewEngine(pool)

	_, err := engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p1})
	require.NoError(t, err)

	_, err = engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p2, foreign})
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	require.Equal(t, []string{p1}, listSorted(t, engine, relations.ActivityPurposes, activity, org))

	_, err = engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{p2, uuid.NewString()})
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	require.Equal(t, []string{p1}, listSorted(t, engine, relations.ActivityPurposes, activity, org))
}

func TestSyncRejectsForeignAnchor(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "")
	orgB := pgtest.NewOrg(t, pool, "")
	activity := pgtest.Activity(t, pool, orgA, "HR")
	purposeB := pgtest.Purpose(t, pool, orgB, "B")
	engine := relations.NewEngine(pool)

	_, err := engine.Sync(ctx, relations.ActivityPurposes, activity, orgB, []string{purposeB})
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)

	_, err = engine.List(ctx, relations.ActivityPurposes, activity, orgB)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
}

func TestLinkIsIdempotent(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "")
	asset := pgtest.Asset(t, pool, org, "CRM")
	c1 := pgtest.DataCategory(t, pool, org, "Contact")
	engine := relations.NewEngine(pool)

	added, err := engine.Link(ctx, relations.AssetDataCategories, asset, org, []string{c1})
	require.NoError(t, err)
	require.Equal(t, []string{c1}, added)

	added, err = engine.Link(ctx, relations.AssetDataCategories, asset, org, []string{c1, c1})
	require.NoError(t, err)
	require.Empty(t, added)
	require.Equal(t, []string{c1}, listSorted(t, engine, relations.AssetDataCategories, asset, org))
}

func TestUnlinkAbsentIsNoop(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "")
	activity := pgtest.Activity(t, pool, org, "Support")
	p1 := pgtest.Purpose(t, pool, org, "P1")
	engine := relations.NewEngine(pool)

	_, err := engine.Link(ctx, relations.ActivityPurposes, activity, org, []string{p1})
	require.NoError(t, err)

	removed, err := engine.Unlink(ctx, relations.ActivityPurposes, activity, org, uuid.NewString())
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = engine.Unlink(ctx, relations.ActivityPurposes, activity, org, "garbage")
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = engine.Unlink(ctx, relations.ActivityPurposes, activity, org, p1)
	require.NoError(t, err)
	require.True(t, removed)
	require.Empty(t, listSorted(t, engine, relations.ActivityPurposes, activity, org))
}

func TestConcurrentLinksOnOneAnchor(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "")
	activity := pgtest.Activity(t, pool, org, "Busy")
	engine := relations.NewEngine(pool)

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, pgtest.Purpose(t, pool, org, "P"+uuid.NewString()[:8]))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := engine.Link(ctx, relations.ActivityPurposes, activity, org, []string{id})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, sorted(ids...), listSorted(t, engine, relations.ActivityPurposes, activity, org))
}
