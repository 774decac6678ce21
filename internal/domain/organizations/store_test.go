package organizations_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/organizations"
	"privacyhub/internal/domain/relations"
	"privacyhub/internal/testutil/pgtest"
)

var actor = changes.Actor{ID: "admin"}

func newSlug() string { return "org-" + uuid.NewString()[:8] }

func TestCreateGetUpdate(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	store := organizations.NewStore(pool)
	de := pgtest.CountryID(t, pool, "DE")

	org, err := store.Create(ctx, organizations.CreateInput{Name: " Acme ", Slug: newSlug(), HeadquartersCountryID: &de}, actor)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(context.Background(), org.ID) })
	require.Equal(t, "Acme", org.Name)
	require.Equal(t, organizations.StatusActive, org.Status)

	got, err := store.Get(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	bySlug, err := store.GetBySlug(ctx, org.Slug)
	require.NoError(t, err)
	require.Equal(t, org.ID, bySlug.ID)

	updated, err := store.Update(ctx, org.ID, organizations.UpdateInput{
		Name:                  dal.Set("Acme GmbH"),
		HeadquartersCountryID: dal.Null[string](),
	}, actor)
	require.NoError(t, err)
	require.Equal(t, "Acme GmbH", updated.Name)
	require.Nil(t, updated.HeadquartersCountryID)
	require.Equal(t, org.Slug, updated.Slug)

	history, err := changes.NewLedger(pool).List(ctx, org.ID, changes.Filter{ChangeType: changes.Updated}, dal.Page{})
	require.NoError(t, err)
	var fields []string
	for _, e := range history.Items {
		fields = append(fields, *e.FieldName)
	}
	require.ElementsMatch(t, []string{"name", "headquartersCountryId"}, fields)
}

func TestCreateValidation(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	store := organizations.NewStore(pool)

	_, err := store.Create(ctx, organizations.CreateInput{Name: "Bad", Slug: "Not A Slug"}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)

	_, err = store.Create(ctx, organizations.CreateInput{Slug: newSlug()}, actor)
	require.ErrorIs(t, err, dal.ErrValidation)

	slug := newSlug()
	org, err := store.Create(ctx, organizations.CreateInput{Name: "First", Slug: slug}, actor)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(context.Background(), org.ID) })
	_, err = store.Create(ctx, organizations.CreateInput{Name: "Second", Slug: slug}, actor)
	require.ErrorIs(t, err, dal.ErrConstraint)
}

func TestGetMissingReturnsNil(t *testing.T) {
	pool := pgtest.Pool(t)
	store := organizations.NewStore(pool)

	got, err := store.Get(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSoftDeleteHidesOrganization(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	store := organizations.NewStore(pool)
	org := pgtest.NewOrg(t, pool, "")

	require.NoError(t, store.SoftDelete(ctx, org, actor))
	got, err := store.Get(ctx, org)
	require.NoError(t, err)
	require.Nil(t, got)
	require.ErrorIs(t, store.SoftDelete(ctx, org, actor), dal.ErrNotFoundOrForbidden)
}

func TestDeleteCascades(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	store := organizations.NewStore(pool)
	ledger := changes.NewLedger(pool)
	org := pgtest.NewOrg(t, pool, "DE")

	activity := pgtest.Activity(t, pool, org, "Payroll")
	purpose := pgtest.Purpose(t, pool, org, "Salaries")
	asset := pgtest.Asset(t, pool, org, "HRIS")
	category := pgtest.DataCategory(t, pool, org, "Bank details")
	recipient := pgtest.Recipient(t, pool, org, "Bank", "PROCESSOR", "")
	pgtest.Recipient(t, pool, org, "Clearing", "SUB_PROCESSOR", recipient)
	engine := relations.NewEngine(pool)
	_, err := engine.Sync(ctx, relations.ActivityPurposes, activity, org, []string{purpose})
	require.NoError(t, err)
	_, err = engine.Link(ctx, relations.AssetDataCategories, asset, org, []string{category})
	require.NoError(t, err)

	doc := pgtest.Insert(t, pool, "INSERT INTO generated_documents (organization_id, document_type, title, activity_id) VALUES ($1,'ROPA','R',$2) RETURNING id", org, activity)
	entry, err := ledger.RecordChange(ctx, changes.NewEntry{OrganizationID: org, ComponentType: changes.ProcessingActivity, ComponentID: activity, ChangeType: changes.Created})
	require.NoError(t, err)
	_, err = ledger.LinkAffectedDocument(ctx, org, doc, entry.ID, changes.ReviewRequired, "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, org))

	for _, table := range []string{
		"processing_activities", "purposes", "digital_assets", "data_categories", "recipients",
		"activity_purposes", "asset_data_categories", "change_log_entries", "generated_documents", "affected_documents",
	} {
		var n int
		require.NoError(t, pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE organization_id = $1", table), org).Scan(&n))
		require.Zero(t, n, table)
	}
	require.ErrorIs(t, store.Delete(ctx, org), dal.ErrNotFoundOrForbidden)
}
