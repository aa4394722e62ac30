// Package webapi assembles the fiber application:
// - ledger: accounts, transactions, reversals and audits
// - network: sponsor tree mutations, traversals and stats
// - commission: order referral split and activation bonus
package webapi

import (
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/mlmcore/pkg/app"
	commissionweb "github.com/amirasaad/mlmcore/webapi/commission"
	"github.com/amirasaad/mlmcore/webapi/common"
	ledgerweb "github.com/amirasaad/mlmcore/webapi/ledger"
	networkweb "github.com/amirasaad/mlmcore/webapi/network"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	maxRequests, window := 100, time.Minute
	if a.Config != nil && a.Config.RateLimit != nil {
		maxRequests, window = a.Config.RateLimit.MaxRequests, a.Config.RateLimit.Window
	}
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Behind a proxy the first X-Forwarded-For hop is the client.
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if i := strings.Index(forwardedFor, ","); i != -1 {
					return strings.TrimSpace(forwardedFor[:i])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool { return c.Path() == "/metrics" },
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(c, "Too Many Requests",
				errors.New("rate limit exceeded"), fiber.StatusTooManyRequests)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(common.Metrics())

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("MLM core API is running! 🚀")
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	ledgerweb.Routes(fiberApp, a.LedgerService, a.Config)
	networkweb.Routes(fiberApp, a.NetworkService, a.RankService, a.Config)
	commissionweb.Routes(fiberApp, a.CommissionService, a.Config)
	return fiberApp
}
