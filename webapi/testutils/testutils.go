// Package testutils builds a fully wired fiber app over in-memory SQLite for handler tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infracache "github.com/amirasaad/mlmcore/infra/cache"
	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/app"
	"github.com/amirasaad/mlmcore/pkg/config"
	pkgtestutils "github.com/amirasaad/mlmcore/pkg/testutils"
	"github.com/amirasaad/mlmcore/webapi"
	"github.com/amirasaad/mlmcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const jwtSecret = "test-secret-with-enough-entropy"

// TestApp bundles the HTTP app with the database behind it.
type TestApp struct {
	Fiber *fiber.App
	App   *app.App
	DB    *gorm.DB
	Token string
}

// TestConfig is the configuration the handler tests run with.
func TestConfig() *config.App {
	return &config.App{
		Env:          "test",
		Auth:         &config.Auth{Jwt: &config.Jwt{Secret: jwtSecret, Expiry: time.Hour, Issuer: "mlmcore"}},
		RateLimit:    &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
		BalanceCache: &config.BalanceCache{Driver: "memory", TTL: time.Minute},
		Network:      &config.Network{DefaultDepth: 16, HardDepthCap: 64, RequireActive: true},
		Rank:         &config.Rank{MinActivePV: "0", IncludeSelfInGroup: true, WindowDays: 30},
		Commission: &config.Commission{
			PoolPercent:       "50",
			LevelRates:        []string{"10", "5", "2.5"},
			ActivationBonus:   "500.00",
			ActivationEnabled: true,
		},
	}
}

// NewTestApp wires every service over a fresh database and signs an operator token.
func NewTestApp(t *testing.T, mutate ...func(*config.App)) *TestApp {
	t.Helper()
	cfg := TestConfig()
	for _, m := range mutate {
		m(cfg)
	}
	db := pkgtestutils.NewSQLiteDB(t)
	logger := pkgtestutils.DiscardLogger()
	deps := &config.Deps{
		Uow:          infrarepo.NewUoW(db),
		BalanceCache: infracache.NewMemoryCache(),
		EventBus:     infraeventbus.NewWithMemory(logger),
		Logger:       logger,
		Config:       cfg,
	}
	a, err := app.New(deps)
	require.NoError(t, err)
	token, err := common.GenerateToken(cfg.Auth.Jwt, "operator")
	require.NoError(t, err)
	return &TestApp{Fiber: webapi.SetupApp(a), App: a, DB: db, Token: token}
}

// MakeRequest sends a request through the app; an empty token sends no Authorization header.
func (ta *TestApp) MakeRequest(t *testing.T, method, path, body, token string) *http.Response {
	t.Helper()
	return MakeRequestWithApp(t, ta.Fiber, method, path, body, token)
}

// MakeRequestWithApp sends a request to any fiber app.
func MakeRequestWithApp(t *testing.T, app *fiber.App, method, path, body, token string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Envelope is the decoded success response with Data left raw.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeData asserts the status code and decodes the response data into out.
func DecodeData(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, string(raw))
	if out == nil {
		return
	}
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// DecodeProblem asserts the status code and decodes a problem details body.
func DecodeProblem(t *testing.T, resp *http.Response, wantStatus int) common.ProblemDetails {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, string(raw))
	var pd common.ProblemDetails
	require.NoError(t, json.Unmarshal(raw, &pd))
	return pd
}
