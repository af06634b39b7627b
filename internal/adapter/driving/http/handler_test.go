package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/killsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/killsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/killsync/internal/application"
	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockEveAPI struct {
	info *model.AccountInfo
	err  error
}

func (m *mockEveAPI) FetchAccountInfo(_ context.Context, _ int64, _ string) (*model.AccountInfo, error) {
	return m.info, m.err
}

func (m *mockEveAPI) FetchKillLog(_ context.Context, _ int64, _ string, _ int64, _ model.KillLogScope) (*model.KillLog, error) {
	return &model.KillLog{}, nil
}

type testEnv struct {
	handler  http.Handler
	db       *sqlite.DB
	settings *application.Settings
	kills    *sqlite.KillmailRepo
}

func setupHandler(t *testing.T, api *mockEveAPI) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	creds := sqlite.NewCredentialRepo(db)
	chars := sqlite.NewCharacterRepo(db)
	kills := sqlite.NewKillmailRepo(db)
	settings := application.NewSettings(sqlite.NewStorageRepo(db))

	keys := application.NewKeyService(creds, chars, application.NewAccessGate(api),
		application.NewStateMutator(creds, chars, settings))

	logger := slog.New(slog.DiscardHandler)
	h := httphandler.NewHandler(keys, kills, settings, logger)

	return &testEnv{
		handler:  httphandler.NewServeMux(h, logger),
		db:       db,
		settings: settings,
		kills:    kills,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAddKey(t *testing.T) {
	api := &mockEveAPI{info: &model.AccountInfo{
		AccessMask: application.KillLogAccessBit,
		Type:       model.KeyTypeCorporation,
		Characters: []model.KeyCharacter{{CharacterID: 90000001}},
	}}
	env := setupHandler(t, api)

	rec := env.do(t, http.MethodPost, "/api/v1/keys", `{"user_id":5,"key_id":"100","v_code":"secret","label":"corp"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Success, your Corporation key has been added.", decode[map[string]string](t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	chars, err := sqlite.NewCharacterRepo(env.db).ListByKey(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, model.DirectorYes, chars[0].IsDirector)

	rec = env.do(t, http.MethodPost, "/api/v1/keys", `{"user_id":6,"key_id":"100","v_code":"secret"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddKey_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		api    *mockEveAPI
		body   string
		status int
	}{
		{"invalid json", &mockEveAPI{}, `{`, http.StatusBadRequest},
		{"malformed key id", &mockEveAPI{}, `{"key_id":"abc","v_code":"x"}`, http.StatusBadRequest},
		{"swapped fields", &mockEveAPI{}, `{"key_id":"123456789012345678901234567890","v_code":"100"}`, http.StatusBadRequest},
		{
			"remote error",
			&mockEveAPI{err: &driven.RemoteError{Code: 203, Message: "Authentication failure."}},
			`{"key_id":"100","v_code":"x"}`,
			http.StatusBadGateway,
		},
		{
			"no kill log access",
			&mockEveAPI{info: &model.AccountInfo{AccessMask: 1}},
			`{"key_id":"100","v_code":"x"}`,
			http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandler(t, tt.api)

			rec := env.do(t, http.MethodPost, "/api/v1/keys", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestRevalidateKey(t *testing.T) {
	api := &mockEveAPI{info: &model.AccountInfo{
		AccessMask: application.KillLogAccessBit,
		Characters: []model.KeyCharacter{{CharacterID: 90000001}},
	}}
	env := setupHandler(t, api)
	ctx := context.Background()
	creds := sqlite.NewCredentialRepo(env.db)

	rec := env.do(t, http.MethodPost, "/api/v1/keys", `{"user_id":5,"key_id":"100","v_code":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, creds.MarkErrored(ctx, 100, 999))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"invalid key id", "/api/v1/keys/abc/validate", `{"user_id":5}`, http.StatusBadRequest},
		{"invalid json", "/api/v1/keys/100/validate", `{`, http.StatusBadRequest},
		{"unknown key", "/api/v1/keys/200/validate", `{"user_id":5}`, http.StatusNotFound},
		{"other user", "/api/v1/keys/100/validate", `{"user_id":6}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}

	cred, err := creds.Get(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 999, cred.ErrorCode, "rejected requests leave the key errored")

	rec = env.do(t, http.MethodPost, "/api/v1/keys/100/validate", `{"user_id":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["message"], "re-validated")

	cred, err = creds.Get(ctx, 100)
	require.NoError(t, err)
	assert.False(t, cred.Errored())
}

func TestRevalidateKey_RemoteFault(t *testing.T) {
	api := &mockEveAPI{info: &model.AccountInfo{AccessMask: application.KillLogAccessBit}}
	env := setupHandler(t, api)

	rec := env.do(t, http.MethodPost, "/api/v1/keys", `{"user_id":5,"key_id":"100","v_code":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	api.err = &driven.RemoteError{Code: 203, Message: "Authentication failure."}
	rec = env.do(t, http.MethodPost, "/api/v1/keys/100/validate", `{"user_id":5}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	cred, err := sqlite.NewCredentialRepo(env.db).Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 203, cred.ErrorCode)
}

func TestAddKey_OwnerResubmitClearsError(t *testing.T) {
	api := &mockEveAPI{info: &model.AccountInfo{AccessMask: application.KillLogAccessBit}}
	env := setupHandler(t, api)
	creds := sqlite.NewCredentialRepo(env.db)
	body := `{"user_id":5,"key_id":"100","v_code":"secret"}`

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/keys", body).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/keys", body).Code, "healthy key")

	require.NoError(t, creds.MarkErrored(context.Background(), 100, 221))
	rec := env.do(t, http.MethodPost, "/api/v1/keys", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	cred, err := creds.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, cred.ErrorCode)
}

func TestGetKillmail(t *testing.T) {
	env := setupHandler(t, &mockEveAPI{})
	_, err := env.kills.InsertIgnore(context.Background(), model.Killmail{
		KillID: 1001, Hash: "abc", Source: "keyID:100", Payload: []byte(`{"killID":1001}`),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/killmails/1001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.KillmailResponse](t, rec)
	assert.Equal(t, int64(1001), resp.KillID)
	assert.Equal(t, "keyID:100", resp.Source)
	assert.JSONEq(t, `{"killID":1001}`, string(resp.Kill))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/killmails/2002", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/killmails/abc", "").Code)
}

func TestStatus(t *testing.T) {
	env := setupHandler(t, &mockEveAPI{})

	rec := env.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, httphandler.StatusResponse{Shards: application.DefaultFetchesPerSecond}, decode[httphandler.StatusResponse](t, rec))

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, env.settings.SetAPIStop(context.Background(), until))
	require.NoError(t, env.settings.SetShardCount(context.Background(), 4))

	resp := decode[httphandler.StatusResponse](t, env.do(t, http.MethodGet, "/api/v1/status", ""))
	assert.Equal(t, 4, resp.Shards)
	assert.True(t, resp.Stopped)
	assert.Equal(t, until.Format(time.RFC3339), resp.StoppedUntil)
}

func TestHealth(t *testing.T) {
	env := setupHandler(t, &mockEveAPI{})

	rec := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	env := setupHandler(t, &mockEveAPI{})

	rec := env.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "killsync_")
}
