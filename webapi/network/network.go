// Package network exposes the sponsor tree and volume statistics over HTTP.
package network

import (
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	networksvc "github.com/amirasaad/mlmcore/pkg/service/network"
	ranksvc "github.com/amirasaad/mlmcore/pkg/service/rank"
	"github.com/amirasaad/mlmcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

//revive:disable

// AttachRequest represents the request body for attaching a child under a parent.
type AttachRequest struct {
	ParentID string `json:"parent_id" validate:"required,uuid"`
	ChildID  string `json:"child_id" validate:"required,uuid,nefield=ParentID"`
}

// EdgeDTO is the API representation of a sponsor edge.
type EdgeDTO struct {
	ParentID   uuid.UUID `json:"parent_id"`
	ChildID    uuid.UUID `json:"child_id"`
	AttachedAt time.Time `json:"attached_at"`
}

// StatsDTO adds the evaluated window to the aggregated stats.
type StatsDTO struct {
	*network.Stats
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func toEdgeDTO(e network.Edge) EdgeDTO {
	return EdgeDTO{ParentID: e.ParentID, ChildID: e.ChildID, AttachedAt: e.AttachedAt}
}

// Routes registers the network endpoints. Mutations require a bearer token.
//
// Routes:
//   - POST   /network/edges                 : attach or reattach a child
//   - DELETE /network/edges/:childId        : detach a child
//   - GET    /network/users/:id/upline      : ancestors, ?levels=
//   - GET    /network/users/:id/downline    : descendants, ?depth=
//   - GET    /network/users/:id/first-line  : direct children
//   - GET    /network/users/:id/stats       : volumes and rank, ?from=&to=&include_inactive=
func Routes(app *fiber.App, net *networksvc.Service, ranks *ranksvc.Service, cfg *config.App) {
	var jwtCfg *config.Jwt
	if cfg != nil && cfg.Auth != nil {
		jwtCfg = cfg.Auth.Jwt
	}
	protected := common.JwtProtected(jwtCfg)
	g := app.Group("/network")
	g.Post("/edges", protected, Attach(net))
	g.Delete("/edges/:childId", protected, Detach(net))
	g.Get("/users/:id/upline", Upline(net))
	g.Get("/users/:id/downline", Downline(net))
	g.Get("/users/:id/first-line", FirstLine(net))
	g.Get("/users/:id/stats", Stats(ranks))
}

// Attach places the child under the parent, replacing any previous parent.
func Attach(net *networksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[AttachRequest](c)
		if input == nil {
			return err
		}
		edge, err := net.AttachChildToParent(c.UserContext(), uuid.MustParse(input.ParentID), uuid.MustParse(input.ChildID))
		if err != nil {
			log.Errorf("Failed to attach %s under %s: %v", input.ChildID, input.ParentID, err)
			return common.ProblemDetailsJSON(c, "Failed to attach child", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Child attached", toEdgeDTO(*edge))
	}
}

func Detach(net *networksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		childID, ok, err := common.ParseUUIDParam(c, "childId")
		if !ok {
			return err
		}
		if err := net.DetachChild(c.UserContext(), childID); err != nil {
			return common.ProblemDetailsJSON(c, "Failed to detach child", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func Upline(net *networksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		levels, err := common.QueryInt(c, "levels", 0)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid levels", err)
		}
		nodes, err := net.GetUpline(c.UserContext(), id, levels)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get upline", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Upline fetched", nodes)
	}
}

func Downline(net *networksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		depth, err := common.QueryInt(c, "depth", 0)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid depth", err)
		}
		nodes, err := net.GetDownline(c.UserContext(), id, depth)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get downline", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Downline fetched", nodes)
	}
}

func FirstLine(net *networksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		edges, err := net.ListFirstLine(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list first line", err)
		}
		out := make([]EdgeDTO, 0, len(edges))
		for _, e := range edges {
			out = append(out, toEdgeDTO(e))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "First line fetched", out)
	}
}

// Stats aggregates volumes over the requested window; the configured trailing window when none is given.
func Stats(ranks *ranksvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		opts := ranksvc.StatsOptions{IncludeInactive: c.QueryBool("include_inactive", false)}
		if opts.Window.From, err = common.QueryTime(c, "from"); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid from", err)
		}
		if opts.Window.To, err = common.QueryTime(c, "to"); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid to", err)
		}
		if opts.MaxDepth, err = common.QueryInt(c, "depth", 0); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid depth", err)
		}
		if opts.Window.To.IsZero() != opts.Window.From.IsZero() {
			def := ranks.DefaultWindow()
			if opts.Window.From.IsZero() {
				opts.Window.From = opts.Window.To.Add(-def.To.Sub(def.From))
			} else {
				opts.Window.To = def.To
			}
		}
		stats, err := ranks.GetUserNetworkStats(c.UserContext(), id, opts)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get network stats", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Network stats fetched", StatsDTO{
			Stats: stats,
			From:  stats.Window.From,
			To:    stats.Window.To,
		})
	}
}
