package documents_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/documents"
	"privacyhub/internal/testutil/pgtest"
)

var actor = changes.Actor{ID: "dpo"}

func TestCanTransition(t *testing.T) {
	require.True(t, documents.CanTransition(documents.StatusDraft, documents.StatusFinal))
	require.True(t, documents.CanTransition(documents.StatusFinal, documents.StatusSuperseded))
	require.True(t, documents.CanTransition(documents.StatusSuperseded, documents.StatusArchived))
	require.False(t, documents.CanTransition(documents.StatusFinal, documents.StatusDraft))
	require.False(t, documents.CanTransition(documents.StatusArchived, documents.StatusFinal))
	require.False(t, documents.CanTransition(documents.StatusDraft, documents.StatusSuperseded))
}

func TestVersionsAndSupersede(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := documents.NewStore(pool)
	activity := pgtest.Activity(t, pool, org, "Payroll")

	v1, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "ROPA", Title: "Payroll record", ActivityID: &activity}, actor)
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	require.Equal(t, documents.StatusDraft, v1.Status)

	_, err = store.UpdateStatus(ctx, org, v1.ID, documents.StatusFinal, actor)
	require.NoError(t, err)

	v2, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "ROPA", Title: "Payroll record", ActivityID: &activity}, actor)
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	_, err = store.UpdateStatus(ctx, org, v2.ID, documents.StatusFinal, actor)
	require.NoError(t, err)

	old, err := store.Get(ctx, org, v1.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusSuperseded, old.Status)

	_, err = store.UpdateStatus(ctx, org, v2.ID, documents.StatusDraft, actor)
	require.ErrorIs(t, err, dal.ErrValidation)

	finals, err := store.List(ctx, org, documents.Filter{Status: documents.StatusFinal, ActivityID: activity}, dal.Page{})
	require.NoError(t, err)
	require.Len(t, finals.Items, 1)
	require.Equal(t, v2.ID, finals.Items[0].ID)
}

func TestConcurrentCreatesGetDistinctVersions(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := documents.NewStore(pool)

	const writers = 5
	versions := make(chan int, writers)
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "DPIA", Title: "Assessment"}, actor)
			if err != nil {
				errs <- err
				return
			}
			versions <- d.Version
		}()
	}
	wg.Wait()
	close(versions)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	var got []int
	for v := range versions {
		got = append(got, v)
	}
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5}, got)
}

func TestDocumentTenantScope(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	other := pgtest.NewOrg(t, pool, "DE")
	store := documents.NewStore(pool)
	foreignActivity := pgtest.Activity(t, pool, other, "Theirs")

	_, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "DPIA", Title: "Assessment", ActivityID: &foreignActivity}, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)

	d, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "DPIA", Title: "Assessment"}, actor)
	require.NoError(t, err)

	got, err := store.Get(ctx, other, d.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	_, err = store.UpdateStatus(ctx, other, d.ID, documents.StatusFinal, actor)
	require.ErrorIs(t, err, dal.ErrNotFoundOrForbidden)

	require.NoError(t, store.Delete(ctx, org, d.ID, actor))
	got, err = store.Get(ctx, org, d.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeletingActivityKeepsDocument(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	org := pgtest.NewOrg(t, pool, "DE")
	store := documents.NewStore(pool)
	activity := pgtest.Activity(t, pool, org, "Temporary")

	d, err := store.Create(ctx, org, documents.CreateInput{DocumentType: "ROPA", Title: "Record", ActivityID: &activity}, actor)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM processing_activities WHERE id = $1", activity)
	require.NoError(t, err)

	got, err := store.Get(ctx, org, d.ID)
	require.NoError(t, err)
	require.Nil(t, got.ActivityID)
}
