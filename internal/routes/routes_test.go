package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/salt"
)

const (
	testAdminToken = "admin-token-0123456789"
	testPIN        = "k7Pq2m9X"
)

func testConfig() config.Config {
	return config.Config{
		AppName:           "simwallet-test",
		AppEnv:            "test",
		DefaultRegion:     "US",
		PINPolicy:         "alphanumeric",
		ProgramName:       "routes-test",
		AliasBackend:      "memory",
		AdminToken:        testAdminToken,
		JWTSecret:         "access-secret-0123456789",
		RefreshSecret:     "refresh-secret-0123456789",
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
		IdempotencyTTL:    time.Minute,
		ResolverCacheSize: 16,
		LoginAttempts:     5,
	}
}

func newTestApp(t *testing.T, cfg config.Config, cache *redis.Client) (*fiber.App, *salt.Manager) {
	t.Helper()
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	require.NoError(t, LoadSalts(context.Background(), salts, "000102030405060708090a0b0c0d0e0f"))

	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	err := Setup(app, Deps{
		Cfg:    cfg,
		Cache:  cache,
		Logger: logging.Discard(),
		Salts:  salts,
		Hasher: credential.NewHasher(credential.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}),
	})
	require.NoError(t, err)
	return app, salts
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func registerAndLogin(t *testing.T, app *fiber.App, phone string) (address, token string) {
	t.Helper()
	status, reg := do(t, app, call{method: http.MethodPost, path: "/api/v1/identity/register", body: map[string]string{"phone": phone, "pin": testPIN, "device_id": "dev-" + phone}})
	require.Equal(t, http.StatusCreated, status, reg)

	status, login := do(t, app, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{"phone": phone, "pin": testPIN, "device_id": "dev-" + phone}})
	require.Equal(t, http.StatusOK, status, login)
	require.Equal(t, reg["wallet_address"], login["wallet_address"])
	return reg["wallet_address"].(string), login["access_token"].(string)
}

func TestRegisterResolveAndWallet(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	address, token := registerAndLogin(t, app, "(650) 253-0000")

	status, _ := do(t, app, call{method: http.MethodGet, path: "/api/v1/wallets/resolve?phone=%2B1%20650%20253%200000"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/wallets/resolve?phone=%2B1%20650%20253%200000", headers: bearer(token)})
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := map[string]string{"X-Admin-Token": testAdminToken}
	status, res := do(t, app, call{method: http.MethodGet, path: "/api/v1/wallets/resolve?phone=%2B1%20650%20253%200000", headers: admin})
	require.Equal(t, http.StatusOK, status, res)
	assert.Equal(t, address, res["address"])
	assert.Equal(t, "+16502530000", res["identifier"])
	assert.Equal(t, true, res["provisioned"])

	status, me := do(t, app, call{method: http.MethodGet, path: "/api/v1/wallet", headers: bearer(token)})
	require.Equal(t, http.StatusOK, status, me)
	w := me["wallet"].(map[string]any)
	assert.Equal(t, address, w["address"])
	assert.Equal(t, false, w["stale"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/wallet"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterErrors(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, call{method: http.MethodPost, path: "/api/v1/identity/register", body: map[string]string{"phone": "+16502530000", "pin": "aaaaaaaa"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "pin does not satisfy alphanumeric policy: needs digit", body["error"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/identity/register", body: map[string]string{"phone": "+16502530000", "pin": testPIN, "region": "ZZZ"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/identity/register", body: map[string]string{"phone": "+16502530000", "pin": testPIN}})
	require.Equal(t, http.StatusCreated, status)
	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/identity/register", body: map[string]string{"phone": "6502530000", "pin": testPIN}})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{"phone": "+16502530000", "pin": "wrongPIN9", "device_id": "d"}})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAliasLifecycle(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	aliceAddr, alice := registerAndLogin(t, app, "+16502530000")
	_, bob := registerAndLogin(t, app, "+16502530001")

	status, b := do(t, app, call{method: http.MethodPost, path: "/api/v1/aliases", body: map[string]string{"alias": "alice"}, headers: bearer(alice)})
	require.Equal(t, http.StatusCreated, status, b)
	assert.Equal(t, aliceAddr, b["owner"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/aliases", body: map[string]string{"alias": "alice"}, headers: bearer(bob)})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/aliases", body: map[string]string{"alias": strings.Repeat("x", 33)}, headers: bearer(bob)})
	assert.Equal(t, http.StatusBadRequest, status)

	status, found := do(t, app, call{method: http.MethodGet, path: "/api/v1/aliases/alice"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, b["reservation"], found["reservation"])

	status, _ = do(t, app, call{method: http.MethodDelete, path: "/api/v1/aliases/alice", headers: bearer(bob)})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, call{method: http.MethodDelete, path: "/api/v1/aliases/alice", headers: bearer(alice)})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/aliases/alice"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/aliases", body: map[string]string{"alias": "alice"}, headers: bearer(bob)})
	require.Equal(t, http.StatusCreated, status)
	status, _ = do(t, app, call{method: http.MethodDelete, path: "/api/v1/aliases/alice", headers: map[string]string{"X-Admin-Token": testAdminToken}})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestPINCheck(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, call{method: http.MethodPost, path: "/api/v1/pin/check", body: map[string]string{"pin": "123456", "policy": "numeric6"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "sequential_digits", body["rule"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/v1/pin/check", body: map[string]string{"pin": "482915", "policy": "numeric6"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/pin/check", body: map[string]string{"pin": "482915", "policy": "emoji"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminSaltRotationMarksWalletsStale(t *testing.T) {
	app, salts := newTestApp(t, testConfig(), nil)
	address, token := registerAndLogin(t, app, "+16502530000")
	before, err := salts.Current()
	require.NoError(t, err)

	status, _ := do(t, app, call{method: http.MethodPost, path: "/api/v1/admin/salt/rotate"})
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := map[string]string{"X-Admin-Token": testAdminToken}
	status, fp := do(t, app, call{method: http.MethodGet, path: "/api/v1/admin/salt", headers: admin})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, before.Fingerprint(), fp["fingerprint"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/v1/admin/salt/init", headers: admin})
	assert.Equal(t, http.StatusConflict, status)

	status, rotated := do(t, app, call{method: http.MethodPost, path: "/api/v1/admin/salt/rotate", headers: admin, body: map[string]string{"salt": "ffeeddccbbaa99887766554433221100"}})
	require.Equal(t, http.StatusOK, status, rotated)
	assert.NotEqual(t, before.Fingerprint(), rotated["fingerprint"])
	assert.NotContains(t, rotated, "salt")

	status, me := do(t, app, call{method: http.MethodGet, path: "/api/v1/wallet", headers: bearer(token)})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, me["wallet"].(map[string]any)["stale"])

	status, res := do(t, app, call{method: http.MethodGet, path: "/api/v1/wallets/resolve?phone=%2B16502530000", headers: admin})
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, address, res["address"])
	assert.Equal(t, false, res["provisioned"])
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, status, body)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "simwallet_http_requests_total")
}

func TestRedisBackedAliasesAndIdempotentRegistration(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	cfg := testConfig()
	cfg.AliasBackend = "redis"
	app, _ := newTestApp(t, cfg, cache)

	reg := call{
		method:  http.MethodPost,
		path:    "/api/v1/identity/register",
		body:    map[string]string{"phone": "+16502530000", "pin": testPIN, "device_id": "d1"},
		headers: map[string]string{"Idempotency-Key": "reg-1"},
	}
	status, first := do(t, app, reg)
	require.Equal(t, http.StatusCreated, status, first)
	status, replay := do(t, app, reg)
	require.Equal(t, http.StatusCreated, status, replay)
	assert.Equal(t, first["user_id"], replay["user_id"])

	status, login := do(t, app, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{"phone": "+16502530000", "pin": testPIN, "device_id": "d1"}, headers: map[string]string{"Idempotency-Key": "login-1"}})
	require.Equal(t, http.StatusOK, status, login)

	headers := bearer(login["access_token"].(string))
	headers["Idempotency-Key"] = "alias-1"
	status, b := do(t, app, call{method: http.MethodPost, path: "/api/v1/aliases", body: map[string]string{"alias": "carol"}, headers: headers})
	require.Equal(t, http.StatusCreated, status, b)

	keys := strings.Join(mr.Keys(), " ")
	assert.Contains(t, keys, "alias:v1:")
}
