// Package commission exposes the commission distributor over HTTP.
package commission

import (
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	commissionsvc "github.com/amirasaad/mlmcore/pkg/service/commission"
	"github.com/amirasaad/mlmcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Routes registers the commission endpoints. Both require a bearer token.
//
// Routes:
//   - POST /commissions/orders/:id           : split the referral pool of a completed order
//   - POST /commissions/activations/:userId  : pay the sponsor's activation bonus
func Routes(app *fiber.App, svc *commissionsvc.Service, cfg *config.App) {
	var jwtCfg *config.Jwt
	if cfg != nil && cfg.Auth != nil {
		jwtCfg = cfg.Auth.Jwt
	}
	g := app.Group("/commissions", common.JwtProtected(jwtCfg))
	g.Post("/orders/:id", DistributeOrder(svc))
	g.Post("/activations/:userId", GrantActivation(svc))
}

// DistributeOrder pays the order's upline at most once. A repeated call answers 200 with outcome already_paid.
func DistributeOrder(svc *commissionsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orderID, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		res, err := svc.DistributeOrderCommission(c.UserContext(), orderID)
		if err != nil {
			log.Errorf("Failed to distribute commission for order %s: %v", orderID, err)
			return common.ProblemDetailsJSON(c, "Failed to distribute commission", err)
		}
		log.Infof("Order %s commission outcome %s", orderID, res.Outcome)
		return common.SuccessResponseJSON(c, statusFor(res), "Commission "+string(res.Outcome), res)
	}
}

func GrantActivation(svc *commissionsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.ParseUUIDParam(c, "userId")
		if !ok {
			return err
		}
		res, err := svc.GrantActivationBonus(c.UserContext(), userID)
		if err != nil {
			log.Errorf("Failed to grant activation bonus for %s: %v", userID, err)
			return common.ProblemDetailsJSON(c, "Failed to grant activation bonus", err)
		}
		return common.SuccessResponseJSON(c, statusFor(res), "Activation bonus "+string(res.Outcome), res)
	}
}

func statusFor(res commission.Result) int {
	if res.Outcome == commission.OutcomePaid {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}
