package webapi_test

import (
	"io"
	"testing"
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	webtestutils "github.com/amirasaad/mlmcore/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	ta := webtestutils.NewTestApp(t)

	resp := ta.MakeRequest(t, fiber.MethodGet, "/", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = ta.MakeRequest(t, fiber.MethodGet, "/metrics", "", "")
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mlm_http_requests_total")
}

func TestRateLimit(t *testing.T) {
	ta := webtestutils.NewTestApp(t, func(cfg *config.App) {
		cfg.RateLimit = &config.RateLimit{MaxRequests: 5, Window: time.Second}
	})

	for i := range 6 {
		resp := ta.MakeRequest(t, fiber.MethodGet, "/", "", "")
		resp.Body.Close() //nolint:errcheck
		if i < 5 {
			assert.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
		} else {
			assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, "request %d", i+1)
		}
	}

	time.Sleep(1100 * time.Millisecond)
	resp := ta.MakeRequest(t, fiber.MethodGet, "/", "", "")
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
