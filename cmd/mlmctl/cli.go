package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/amirasaad/mlmcore/infra"
	"github.com/amirasaad/mlmcore/infra/initializer"
	"github.com/amirasaad/mlmcore/pkg/app"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	ranksvc "github.com/amirasaad/mlmcore/pkg/service/rank"
	"github.com/amirasaad/mlmcore/webapi/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

const (
	fEnvFile         = "env-file"
	fAccount         = "account"
	fUser            = "user"
	fCurrency        = "currency"
	fType            = "type"
	fOrder           = "order"
	fTxn             = "txn"
	fReason          = "reason"
	fOperator        = "operator"
	fFrom            = "from"
	fTo              = "to"
	fIncludeInactive = "include-inactive"
	fDepth           = "depth"
	fWorkers         = "workers"
	fSteps           = "steps"
	fSubject         = "subject"
)

// bootstrap builds the wired services for a command; cleanup releases them.
type bootstrap func(c *cli.Context) (a *app.App, cleanup func(), err error)

func defaultBootstrap(c *cli.Context) (*app.App, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	a, err := app.New(deps)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if closer, ok := deps.EventBus.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return a, cleanup, nil
}

func loadConfig(c *cli.Context) (*config.App, error) {
	cfg, err := config.Load(c.String(fEnvFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newCLI(boot bootstrap) *cli.App {
	withApp := func(fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			a, cleanup, err := boot(c)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}
			return fn(c, a)
		}
	}

	return &cli.App{
		Name:  "mlmctl",
		Usage: "operate the MLM ledger and network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fEnvFile, Value: ".env", EnvVars: []string{"MLMCTL_ENV_FILE"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "balance",
				Usage: "print an account balance by --account, or by --user with --currency and --type",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: fAccount, Aliases: []string{"a"}},
					&cli.StringFlag{Name: fUser, Aliases: []string{"u"}},
					&cli.StringFlag{Name: fCurrency, Value: string(money.RUB)},
					&cli.StringFlag{Name: fType, Value: string(ledger.AccountReferral)},
				},
				Action: withApp(balanceAction),
			},
			{
				Name:   "accounts",
				Usage:  "list every ledger account held by --user",
				Flags:  []cli.Flag{&cli.StringFlag{Name: fUser, Aliases: []string{"u"}, Required: true}},
				Action: withApp(accountsAction),
			},
			{
				Name:  "stats",
				Usage: "print a user's network volumes and rank",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: fUser, Aliases: []string{"u"}, Required: true},
					&cli.TimestampFlag{Name: fFrom, Layout: time.DateOnly},
					&cli.TimestampFlag{Name: fTo, Layout: time.DateOnly},
					&cli.BoolFlag{Name: fIncludeInactive},
					&cli.IntFlag{Name: fDepth},
				},
				Action: withApp(statsAction),
			},
			{
				Name:   "distribute",
				Usage:  "distribute the referral commission of a completed order",
				Flags:  []cli.Flag{&cli.StringFlag{Name: fOrder, Aliases: []string{"o"}, Required: true}},
				Action: withApp(distributeAction),
			},
			{
				Name:   "activate",
				Usage:  "grant the sponsor's activation bonus for a new partner",
				Flags:  []cli.Flag{&cli.StringFlag{Name: fUser, Aliases: []string{"u"}, Required: true}},
				Action: withApp(activateAction),
			},
			{
				Name:  "reverse",
				Usage: "reverse a ledger transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: fTxn, Aliases: []string{"t"}, Required: true},
					&cli.StringFlag{Name: fReason, Value: "operator"},
					&cli.StringFlag{Name: fOperator, Value: "mlmctl", EnvVars: []string{"MLMCTL_OPERATOR"}},
				},
				Action: withApp(reverseAction),
			},
			{
				Name:  "recompute-ranks",
				Usage: "recompute and store the rank of every active user",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: fWorkers, Aliases: []string{"w"}, Value: 4, EnvVars: []string{"MLMCTL_WORKERS"}},
				},
				Action: withApp(recomputeAction),
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations, or roll back --steps",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: fSteps, Usage: "roll back this many migrations instead of applying"},
				},
				Action: migrateAction,
			},
			{
				Name:   "token",
				Usage:  "sign an operator bearer token with AUTH_JWT_SECRET",
				Flags:  []cli.Flag{&cli.StringFlag{Name: fSubject, Value: "operator"}},
				Action: tokenAction,
			},
		},
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func uuidFlag(c *cli.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.String(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func balanceAction(c *cli.Context, a *app.App) error {
	ctx := c.Context
	var acc *ledger.Account
	switch {
	case c.IsSet(fAccount):
		id, err := uuidFlag(c, fAccount)
		if err != nil {
			return err
		}
		if acc, err = a.LedgerService.GetAccount(ctx, id); err != nil {
			return err
		}
	case c.IsSet(fUser):
		userID, err := uuidFlag(c, fUser)
		if err != nil {
			return err
		}
		acc, err = a.LedgerService.EnsureAccount(ctx, ledger.UserOwner(userID),
			money.Code(c.String(fCurrency)), ledger.AccountType(c.String(fType)))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --%s or --%s is required", fAccount, fUser)
	}
	balance, err := a.LedgerService.GetBalance(ctx, acc.ID)
	if err != nil {
		return err
	}
	return printJSON(c, map[string]any{
		"account_id": acc.ID,
		"currency":   acc.Currency,
		"type":       acc.Type,
		"balance":    balance,
	})
}

func accountsAction(c *cli.Context, a *app.App) error {
	userID, err := uuidFlag(c, fUser)
	if err != nil {
		return err
	}
	accounts, err := a.LedgerService.ListAccounts(c.Context, ledger.UserOwner(userID))
	if err != nil {
		return err
	}
	out := make([]map[string]any, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, map[string]any{"account_id": acc.ID, "currency": acc.Currency, "type": acc.Type})
	}
	return printJSON(c, out)
}

func statsAction(c *cli.Context, a *app.App) error {
	userID, err := uuidFlag(c, fUser)
	if err != nil {
		return err
	}
	opts := ranksvc.StatsOptions{IncludeInactive: c.Bool(fIncludeInactive), MaxDepth: c.Int(fDepth)}
	if from := c.Timestamp(fFrom); from != nil {
		opts.Window.From = from.UTC()
	}
	if to := c.Timestamp(fTo); to != nil {
		opts.Window.To = to.UTC()
	}
	if opts.Window.From.IsZero() != opts.Window.To.IsZero() {
		def := a.RankService.DefaultWindow()
		if opts.Window.From.IsZero() {
			opts.Window.From = opts.Window.To.Add(-def.To.Sub(def.From))
		} else {
			opts.Window.To = def.To
		}
	}
	stats, err := a.RankService.GetUserNetworkStats(c.Context, userID, opts)
	if err != nil {
		return err
	}
	return printJSON(c, stats)
}

func distributeAction(c *cli.Context, a *app.App) error {
	orderID, err := uuidFlag(c, fOrder)
	if err != nil {
		return err
	}
	res, err := a.CommissionService.DistributeOrderCommission(c.Context, orderID)
	if err != nil {
		return err
	}
	return printJSON(c, res)
}

func activateAction(c *cli.Context, a *app.App) error {
	userID, err := uuidFlag(c, fUser)
	if err != nil {
		return err
	}
	res, err := a.CommissionService.GrantActivationBonus(c.Context, userID)
	if err != nil {
		return err
	}
	return printJSON(c, res)
}

func reverseAction(c *cli.Context, a *app.App) error {
	txnID, err := uuidFlag(c, fTxn)
	if err != nil {
		return err
	}
	res, err := a.LedgerService.ReverseTransaction(c.Context, txnID, c.String(fReason), c.String(fOperator))
	if err != nil {
		return err
	}
	return printJSON(c, map[string]any{
		"txn_id":       res.Txn.ID,
		"operation_id": res.Txn.OperationID,
		"reverses":     res.Txn.ReversesTxnID,
		"postings":     len(res.Postings),
	})
}

func recomputeAction(c *cli.Context, a *app.App) error {
	sum, err := a.RankService.RecomputeAll(c.Context, a.RankService.DefaultWindow(), c.Int(fWorkers))
	if err != nil {
		return err
	}
	return printJSON(c, sum)
}

func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := initializer.SetupLogger(cfg.Log)
	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close() //nolint:errcheck
	if steps := c.Int(fSteps); steps > 0 {
		return infra.MigrateDown(sqlDB, steps, logger)
	}
	return infra.Migrate(sqlDB, logger)
}

func tokenAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	token, err := common.GenerateToken(cfg.Auth.Jwt, c.String(fSubject))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}
