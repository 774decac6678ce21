package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/auth"
	"privacyhub/internal/platform/config"
	"privacyhub/internal/platform/jobs"
	"privacyhub/internal/platform/metrics"
	"privacyhub/internal/testutil/pgtest"
)

const secret = "test-secret"

func testApp(pool *pgxpool.Pool) App {
	cfg := config.Config{
		JWTSecret:       secret,
		Environment:     "test",
		MaxBodyBytes:    1 << 20,
		DefaultPageSize: 50,
		MaxPageSize:     200,
		MetricsEnabled:  true,
		MetricsPath:     "/metrics",
	}
	metrics.Init()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app := App{Config: cfg, Logger: logger, DB: pool}
	if pool != nil {
		app.Jobs = jobs.New(pool, cfg, logger)
	}
	return app
}

func token(t *testing.T, orgID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(secret, auth.Principal{OrganizationID: orgID, ActorID: "tester"}, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, tok string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestProbesAndMetrics(t *testing.T) {
	router := testApp(nil).Router()

	code, _ := do(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, router, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestAPIRequiresToken(t *testing.T) {
	router := testApp(nil).Router()
	for _, path := range []string{"/api/v1/activities", "/api/v1/recipients/orphaned", "/api/v1/changes", "/api/v1/transfers"} {
		code, env := do(t, router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, code, path)
		require.Equal(t, "unauthorized", env.Error.Code)
	}
}

func TestHTTPFlow(t *testing.T) {
	pool := pgtest.Pool(t)
	router := testApp(pool).Router()
	org := pgtest.NewOrg(t, pool, "DE")
	other := pgtest.NewOrg(t, pool, "DE")
	tok, otherTok := token(t, org), token(t, other)

	code, env := do(t, router, http.MethodPost, "/api/v1/purposes", tok, map[string]any{"name": "Billing"})
	require.Equal(t, http.StatusCreated, code)
	var purpose struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &purpose))

	code, env = do(t, router, http.MethodPost, "/api/v1/purposes", tok, map[string]any{"name": "Billing"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "conflict", env.Error.Code)

	code, env = do(t, router, http.MethodPost, "/api/v1/purposes", tok, map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation_error", env.Error.Code)

	code, env = do(t, router, http.MethodGet, "/api/v1/purposes/"+purpose.ID, otherTok, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", env.Error.Code)

	code, env = do(t, router, http.MethodGet, "/api/v1/purposes/"+uuid.NewString(), tok, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, env = do(t, router, http.MethodPost, "/api/v1/activities", tok, map[string]any{
		"name":       "Invoicing",
		"purposeIds": []string{purpose.ID},
	})
	require.Equal(t, http.StatusCreated, code)
	var activity struct {
		ID         string   `json:"id"`
		PurposeIDs []string `json:"purposeIds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &activity))
	require.Equal(t, []string{purpose.ID}, activity.PurposeIDs)

	code, _ = do(t, router, http.MethodPut, "/api/v1/activities/"+activity.ID+"/purposes", otherTok, map[string]any{"ids": []string{}})
	require.Equal(t, http.StatusNotFound, code)

	code, env = do(t, router, http.MethodPut, "/api/v1/activities/"+activity.ID+"/purposes", tok, map[string]any{"ids": []string{}})
	require.Equal(t, http.StatusOK, code)
	var sync struct {
		Removed []string `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sync))
	require.Equal(t, []string{purpose.ID}, sync.Removed)

	code, _ = do(t, router, http.MethodGet, "/api/v1/activities/"+activity.ID+"/nonsense", tok, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, env = do(t, router, http.MethodGet, "/api/v1/changes?componentType=processing_activity&componentId="+activity.ID, tok, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items []struct {
			ChangeType string  `json:"changeType"`
			FieldName  *string `json:"fieldName"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 3)
	require.Equal(t, "created", page.Items[0].ChangeType)

	code, env = do(t, router, http.MethodGet, "/api/v1/changes?componentType=processing_activity", otherTok, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Empty(t, page.Items)

	code, env = do(t, router, http.MethodGet, "/api/v1/transfers", tok, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, router, http.MethodPost, "/api/v1/jobs/impact-scan", tok, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, router, http.MethodGet, "/api/v1/jobs?jobType=impact_scan", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var runs []struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "completed", runs[0].Status)
}

func TestPatchLeavesOmittedFields(t *testing.T) {
	pool := pgtest.Pool(t)
	router := testApp(pool).Router()
	org := pgtest.NewOrg(t, pool, "DE")
	tok := token(t, org)

	code, env := do(t, router, http.MethodPost, "/api/v1/org-units", tok, map[string]any{"name": "Legal", "description": "Contracts"})
	require.Equal(t, http.StatusCreated, code)
	var unit struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unit))

	code, env = do(t, router, http.MethodPatch, "/api/v1/org-units/"+unit.ID, tok, map[string]any{"name": "Legal & Privacy"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &unit))
	require.Equal(t, "Legal & Privacy", unit.Name)
	require.NotNil(t, unit.Description)
	require.Equal(t, "Contracts", *unit.Description)

	code, env = do(t, router, http.MethodPatch, "/api/v1/org-units/"+unit.ID, tok, map[string]any{"description": nil})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &unit))
	require.Nil(t, unit.Description)

	code, env = do(t, router, http.MethodPatch, "/api/v1/org-units/"+unit.ID, tok, map[string]any{"nmae": "typo"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation_error", env.Error.Code)
}
