package activities_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/activities"
	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/testutil/pgtest"
)

var actor = changes.Actor{ID: "dpo", Reason: "annual review"}

func sorted(ids ...string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

func TestCreateWithInitialLinks(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	p1 := pgtest.Purpose(t, pool, org, "Payroll")
	c1 := pgtest.DataCategory(t, pool, org, "Bank details")
	asset := pgtest.Asset(t, pool, org, "HR database")

	d, err := store.Create(ctx, org, activities.CreateInput{
		Name:            "Payroll run",
		PurposeIDs:      []string{p1, p1},
		DataCategoryIDs: []string{c1},
		AssetIDs:        []string{asset},
	}, actor)
	require.NoError(t, err)
	require.Equal(t, activities.StatusDraft, d.Status)
	require.Equal(t, []string{p1}, d.PurposeIDs)
	require.Equal(t, []string{c1}, d.DataCategoryIDs)
	require.Empty(t, d.RecipientIDs)

	got, err := store.Detail(ctx, org, d.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p1}, got.PurposeIDs)
	require.Equal(t, []string{asset}, got.AssetIDs)
	require.Empty(t, got.DataSubjectIDs)
}

func TestCreateRollsBackOnForeignLink(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	other := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	mine := pgtest.Purpose(t, pool, org, "Mine")
	theirs := pgtest.Purpose(t, pool, other, "Theirs")

	_, err := store.Create(ctx, org, activities.CreateInput{Name: "Leaky", PurposeIDs: []string{mine, theirs}}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)

	res, err := store.List(ctx, org, activities.Filter{}, dal.Page{})
	require.NoError(t, err)
	require.Empty(t, res.Items)
}

func TestSyncPurposesEndToEnd(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	p1 := pgtest.Purpose(t, pool, org, "P1")
	p2 := pgtest.Purpose(t, pool, org, "P2")
	p3 := pgtest.Purpose(t, pool, org, "P3")

	d, err := store.Create(ctx, org, activities.CreateInput{Name: "Marketing", PurposeIDs: []string{p1, p2}}, actor)
	require.NoError(t, err)

	res, err := store.SyncPurposes(ctx, org, d.ID, []string{p2, p3}, actor)
	require.NoError(t, err)
	require.Equal(t, []string{p3}, res.Added)
	require.Equal(t, []string{p1}, res.Removed)
	require.Equal(t, []string{p2}, res.Unchanged)

	linked, err := store.ListPurposes(ctx, org, d.ID)
	require.NoError(t, err)
	require.Equal(t, sorted(p2, p3), sorted(linked...))

	again, err := store.SyncPurposes(ctx, org, d.ID, []string{p3, p2}, actor)
	require.NoError(t, err)
	require.False(t, again.Changed())

	history, err := changes.NewLedger(pool).List(ctx, org, changes.Filter{ComponentID: d.ID, ChangeType: changes.Updated}, dal.Page{})
	require.NoError(t, err)
	var relationEntries []changes.Entry
	for _, e := range history.Items {
		if e.FieldName != nil && *e.FieldName == "purposeIds" {
			relationEntries = append(relationEntries, e)
		}
	}
	// initial link on create plus the one effective sync
	require.Len(t, relationEntries, 2)
	require.Equal(t, "annual review", *relationEntries[1].Reason)
}

func TestLinkAndUnlinkRecipients(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	r1 := pgtest.Recipient(t, pool, org, "Payroll Ltd", "PROCESSOR", "")
	r2 := pgtest.Recipient(t, pool, org, "Cloud Inc", "PROCESSOR", "")
	d, err := store.Create(ctx, org, activities.CreateInput{Name: "Payroll"}, actor)
	require.NoError(t, err)

	added, err := store.LinkRecipients(ctx, org, d.ID, []string{r1}, actor)
	require.NoError(t, err)
	require.Equal(t, []string{r1}, added)

	added, err = store.LinkRecipients(ctx, org, d.ID, []string{r1, r2}, actor)
	require.NoError(t, err)
	require.Equal(t, []string{r2}, added)

	removed, err := store.UnlinkRecipient(ctx, org, d.ID, r1, actor)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = store.UnlinkRecipient(ctx, org, d.ID, r1, actor)
	require.NoError(t, err)
	require.False(t, removed)

	linked, err := store.ListRecipients(ctx, org, d.ID)
	require.NoError(t, err)
	require.Equal(t, []string{r2}, linked)
}

func TestActivityTenantIsolation(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	orgA := pgtest.NewOrg(t, pool, "DE")
	orgB := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	d, err := store.Create(ctx, orgA, activities.CreateInput{Name: "A only"}, actor)
	require.NoError(t, err)
	pB := pgtest.Purpose(t, pool, orgB, "B purpose")

	got, err := store.Get(ctx, orgB, d.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = store.SyncPurposes(ctx, orgB, d.ID, []string{pB}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	_, err = store.LinkPurposes(ctx, orgA, d.ID, []string{pB}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	_, err = store.Update(ctx, orgB, d.ID, activities.UpdateInput{Name: dal.Set("x")}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)
	require.ErrorIs(t, store.Delete(ctx, orgB, d.ID, actor), dal.ErrNotFoundOrForbidden)

	missing, err := store.Get(ctx, orgA, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateAndFilters(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	unit := pgtest.Insert(t, pool, "INSERT INTO org_units (organization_id, name) VALUES ($1,'HR') RETURNING id", org)
	past := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Second)

	a, err := store.Create(ctx, org, activities.CreateInput{Name: "Recruiting"}, actor)
	require.NoError(t, err)
	_, err = store.Create(ctx, org, activities.CreateInput{Name: "Newsletter", RequiresDPIA: true}, actor)
	require.NoError(t, err)

	basis := "CONTRACT"
	updated, err := store.Update(ctx, org, a.ID, activities.UpdateInput{
		Status:       dal.Set(activities.StatusActive),
		LegalBasis:   dal.Set(basis),
		OwnerUnitID:  dal.Set(unit),
		NextReviewAt: dal.Set(past),
	}, actor)
	require.NoError(t, err)
	require.Equal(t, activities.StatusActive, updated.Status)
	require.Equal(t, unit, *updated.OwnerUnitID)

	_, err = store.Update(ctx, org, a.ID, activities.UpdateInput{Status: dal.Set("DONE")}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)
	_, err = store.Update(ctx, org, a.ID, activities.UpdateInput{LegalBasis: dal.Set("WHIM")}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)
	_, err = store.Update(ctx, org, a.ID, activities.UpdateInput{OwnerUnitID: dal.Set(uuid.NewString())}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)

	dpia := true
	res, err := store.List(ctx, org, activities.Filter{RequiresDPIA: &dpia}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, "Newsletter", res.Items[0].Name)

	res, err = store.List(ctx, org, activities.Filter{Status: activities.StatusActive, OwnerUnitID: unit}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	due, err := store.DueForReview(ctx, org, time.Now(), dal.Page{})
	require.NoError(t, err)
	require.Len(t, due.Items, 1)
	require.Equal(t, a.ID, due.Items[0].ID)

	cleared, err := store.Update(ctx, org, a.ID, activities.UpdateInput{OwnerUnitID: dal.Null[string]()}, actor)
	require.NoError(t, err)
	require.Nil(t, cleared.OwnerUnitID)
}

func TestDeleteRecordsHistory(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := activities.NewStore(pool)

	p := pgtest.Purpose(t, pool, org, "Support")
	d, err := store.Create(ctx, org, activities.CreateInput{Name: "Helpdesk", PurposeIDs: []string{p}}, actor)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, org, d.ID, actor))

	got, err := store.Get(ctx, org, d.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	var links int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM activity_purposes WHERE activity_id = $1", d.ID).Scan(&links))
	require.Zero(t, links)

	history, err := changes.NewLedger(pool).List(ctx, org, changes.Filter{ComponentID: d.ID, ChangeType: changes.Deleted}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
}
