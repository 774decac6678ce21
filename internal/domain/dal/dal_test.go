package dal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ID: uuid.NewString()}
	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.True(t, c.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, c.ID, got.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", Cursor{ID: "nope", CreatedAt: time.Now()}.Encode()} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, ErrValidation, token)
	}
	c, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestKeysetAppendsPredicate(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Now().UTC(), ID: uuid.NewString()}.Encode()
	query, args, limit, err := Keyset("SELECT id FROM purposes p WHERE p.organization_id = $1", []any{"org"}, "p", Page{Cursor: cursor, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 10, limit)
	require.Contains(t, query, "(p.created_at, p.id) > ($2, $3)")
	require.Contains(t, query, "ORDER BY p.created_at, p.id LIMIT $4")
	require.Len(t, args, 4)
	require.Equal(t, 11, args[3])
}

func TestPaginate(t *testing.T) {
	now := time.Now()
	key := func(s string) Cursor { return Cursor{CreatedAt: now, ID: s} }

	res := Paginate([]string{"a", "b"}, 2, key)
	require.Nil(t, res.NextCursor)
	require.Len(t, res.Items, 2)

	res = Paginate([]string{"a", "b", "c"}, 2, key)
	require.NotNil(t, res.NextCursor)
	require.Equal(t, []string{"a", "b"}, res.Items)

	empty := Paginate[string](nil, 5, key)
	require.NotNil(t, empty.Items)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, 50, NormalizeLimit(0, 50, 200))
	require.Equal(t, 200, NormalizeLimit(1000, 50, 200))
	require.Equal(t, 7, NormalizeLimit(7, 50, 200))
}

func TestFieldDistinguishesNullFromOmitted(t *testing.T) {
	var body struct {
		Name        Field[string] `json:"name"`
		Description Field[string] `json:"description"`
		Owner       Field[string] `json:"owner"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"name":"HR","description":null}`), &body))

	require.True(t, body.Name.Set)
	require.Equal(t, "HR", body.Name.Value)
	require.True(t, body.Description.Set)
	require.True(t, body.Description.Null)
	require.Nil(t, body.Description.Ptr())
	require.False(t, body.Owner.Set)
}

func TestUpdatesNumbering(t *testing.T) {
	u := NewUpdates("org", "id")
	ApplyField(u, "name", Set("x"))
	ApplyField(u, "description", Null[string]())
	ApplyField(u, "owner", Field[string]{})

	require.Equal(t, "name = $3, description = $4", u.Clause())
	require.Equal(t, []any{"org", "id", "x", nil}, u.Args())
	require.Len(t, u.Changed, 2)
}

func TestMapError(t *testing.T) {
	require.ErrorIs(t, MapError(pgx.ErrNoRows), ErrNotFoundOrForbidden)

	err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "purposes_org_name_key"})
	require.ErrorIs(t, err, ErrConstraint)
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, ConstraintUnique, ce.Kind)
	require.True(t, IsUniqueViolation(err))

	require.ErrorIs(t, MapError(&pgconn.PgError{Code: "23503"}), ErrConstraint)
	require.ErrorIs(t, MapError(&pgconn.PgError{Code: "22P02"}), ErrValidation)

	plain := errors.New("boom")
	require.Equal(t, plain, MapError(plain))
	require.NoError(t, MapError(nil))
}

func TestValidateUsesJSONNames(t *testing.T) {
	type input struct {
		Name   string `json:"name" validate:"required,max=5"`
		Status string `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE"`
	}
	err := Validate(input{Name: "toolong", Status: "BOGUS"})
	require.ErrorIs(t, err, ErrValidation)

	details := Details(err)
	require.Len(t, details, 2)
	require.Equal(t, "name", details[0].Field)
	require.Equal(t, "status", details[1].Field)

	require.NoError(t, Validate(input{Name: "ok"}))
}

func TestTxFailureKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := TxFailure("commit", cause)
	require.ErrorIs(t, err, ErrTransaction)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection reset")
}
