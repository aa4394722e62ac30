// Package ledger exposes the double-entry ledger over HTTP.
package ledger

import (
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/ledger"
	"github.com/amirasaad/mlmcore/pkg/money"
	ledgersvc "github.com/amirasaad/mlmcore/pkg/service/ledger"
	"github.com/amirasaad/mlmcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Routes registers the ledger endpoints. Mutations require a bearer token.
//
// Routes:
//   - POST /ledger/accounts                   : ensure an account exists
//   - GET  /ledger/accounts/:id               : account details
//   - GET  /ledger/accounts/:id/balance       : derived balance
//   - GET  /ledger/accounts/:id/postings      : statement, newest first
//   - GET  /ledger/users/:id/accounts         : every account of a user
//   - POST /ledger/transactions               : write an idempotent transaction
//   - GET  /ledger/transactions/:id           : transaction with postings
//   - POST /ledger/transactions/:id/reverse   : reverse a transaction
//   - GET  /ledger/transactions/:id/audit     : zero-sum report
func Routes(app *fiber.App, svc *ledgersvc.Service, cfg *config.App) {
	protected := common.JwtProtected(authJwt(cfg))
	g := app.Group("/ledger")
	g.Post("/accounts", protected, EnsureAccount(svc))
	g.Get("/accounts/:id", GetAccount(svc))
	g.Get("/accounts/:id/balance", GetBalance(svc))
	g.Get("/accounts/:id/postings", ListPostings(svc))
	g.Get("/users/:id/accounts", ListUserAccounts(svc))
	g.Post("/transactions", protected, CreateTransaction(svc))
	g.Get("/transactions/:id", GetTransaction(svc))
	g.Post("/transactions/:id/reverse", protected, ReverseTransaction(svc))
	g.Get("/transactions/:id/audit", AuditTransaction(svc))
}

func authJwt(cfg *config.App) *config.Jwt {
	if cfg == nil || cfg.Auth == nil {
		return nil
	}
	return cfg.Auth.Jwt
}

// EnsureAccount returns the account for the owner, currency and type, creating it on first use.
func EnsureAccount(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[EnsureAccountRequest](c)
		if input == nil {
			return err
		}
		acc, err := svc.EnsureAccount(c.UserContext(), input.owner(), money.Code(input.Currency), ledger.AccountType(input.Type))
		if err != nil {
			log.Errorf("Failed to ensure account: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to ensure account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account ready", toAccountDTO(acc))
	}
}

func GetAccount(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		acc, err := svc.GetAccount(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account fetched", toAccountDTO(acc))
	}
}

// GetBalance returns Σdebit − Σcredit of the account.
func GetBalance(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		acc, err := svc.GetAccount(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get balance", err)
		}
		balance, err := svc.GetBalance(c.UserContext(), id)
		if err != nil {
			log.Errorf("Failed to get balance for %s: %v", id, err)
			return common.ProblemDetailsJSON(c, "Failed to get balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance fetched", BalanceDTO{
			AccountID: id,
			Currency:  acc.Currency.String(),
			Balance:   balance,
		})
	}
}

func ListUserAccounts(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		accounts, err := svc.ListAccounts(c.UserContext(), ledger.UserOwner(id))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list accounts", err)
		}
		out := make([]AccountDTO, 0, len(accounts))
		for i := range accounts {
			out = append(out, toAccountDTO(&accounts[i]))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Accounts fetched", out)
	}
}

func ListPostings(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		limit, err := common.QueryInt(c, "limit", 0)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid limit", err)
		}
		postings, err := svc.ListAccountPostings(c.UserContext(), id, limit)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list postings", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Postings fetched", toPostingDTOs(postings))
	}
}

// CreateTransaction writes a transaction. A replayed operation id answers 200 with existing=true.
func CreateTransaction(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[CreateTransactionRequest](c)
		if input == nil {
			return err
		}
		res, err := svc.CreateTransaction(c.UserContext(), input.toDomain())
		if err != nil {
			log.Errorf("Failed to create transaction: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to create transaction", err)
		}
		if res.Existing {
			return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction already recorded", ToTransactionDTO(res))
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction created", ToTransactionDTO(res))
	}
}

func GetTransaction(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		res, err := svc.GetTransaction(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction fetched", ToTransactionDTO(res))
	}
}

func ReverseTransaction(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		var input ReverseRequest
		if len(c.Body()) > 0 {
			in, err := common.BindAndValidate[ReverseRequest](c)
			if in == nil {
				return err
			}
			input = *in
		}
		res, err := svc.ReverseTransaction(c.UserContext(), id, input.Reason, common.Subject(c))
		if err != nil {
			log.Errorf("Failed to reverse transaction %s: %v", id, err)
			return common.ProblemDetailsJSON(c, "Failed to reverse transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction reversed", ToTransactionDTO(res))
	}
}

// AuditTransaction re-checks the stored postings of a transaction.
func AuditTransaction(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		report, err := svc.ValidateTransactionZeroSum(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to audit transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction audited", report)
	}
}
