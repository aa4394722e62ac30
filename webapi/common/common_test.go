package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), fiber.StatusNotFound},
		{network.ErrSelfLoop, fiber.StatusBadRequest},
		{network.ErrCycle, fiber.StatusUnprocessableEntity},
		{ledger.ErrUnbalanced, fiber.StatusUnprocessableEntity},
		{ledger.ErrAlreadyReversed, fiber.StatusConflict},
		{fmt.Errorf("%w: could not serialize access", domain.ErrConflict), fiber.StatusConflict},
		{domain.ErrUnauthorized, fiber.StatusUnauthorized},
		{fiber.ErrTooManyRequests, fiber.StatusTooManyRequests},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorToStatusCode(tc.err), tc.err.Error())
	}
}

func decodeProblem(t *testing.T, resp *http.Response) ProblemDetails {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(raw, &pd))
	return pd
}

func TestProblemDetailsJSON(t *testing.T) {
	app := fiber.New()
	app.Get("/missing", func(c *fiber.Ctx) error {
		return ProblemDetailsJSON(c, "Not there", domain.ErrNotFound)
	})
	app.Get("/override", func(c *fiber.Ctx) error {
		return ProblemDetailsJSON(c, "Teapot", domain.ErrNotFound, "custom detail", fiber.StatusTeapot)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	pd := decodeProblem(t, resp)
	assert.Equal(t, fiber.StatusNotFound, pd.Status)
	assert.Equal(t, "/missing", pd.Instance)
	assert.Equal(t, domain.ErrNotFound.Error(), pd.Detail)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/override", nil))
	require.NoError(t, err)
	pd = decodeProblem(t, resp)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "custom detail", pd.Detail)
}

func TestQueryTime(t *testing.T) {
	app := fiber.New()
	var got time.Time
	app.Get("/", func(c *fiber.Ctx) error {
		var err error
		got, err = QueryTime(c, "at")
		if err != nil {
			return ProblemDetailsJSON(c, "bad", err)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?at=2026-03-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?at=2026-03-01T10:00:00%2B03:00", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), got)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?at=soon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestJwtProtected(t *testing.T) {
	cfg := &config.Jwt{Secret: "secret", Expiry: time.Minute, Issuer: "mlmcore"}
	app := fiber.New()
	app.Get("/", JwtProtected(cfg), func(c *fiber.Ctx) error {
		return c.SendString(Subject(c))
	})

	token, err := GenerateToken(cfg, "operator")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "operator", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	other, err := GenerateToken(&config.Jwt{Secret: "other"}, "operator")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	_, err := GenerateToken(&config.Jwt{}, "operator")
	assert.Error(t, err)
}
