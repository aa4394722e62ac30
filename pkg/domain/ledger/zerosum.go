package ledger

import (
	"fmt"
	"sort"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// CurrencyTotals is the debit and credit sum of one currency inside a transaction.
type CurrencyTotals struct {
	Currency money.Code   `json:"currency"`
	Debit    money.Amount `json:"debit"`
	Credit   money.Amount `json:"credit"`
}

// ZeroSumReport summarizes the balance check of a transaction.
type ZeroSumReport struct {
	TxnID    uuid.UUID        `json:"txn_id"`
	Totals   []CurrencyTotals `json:"totals"`
	Balanced bool             `json:"balanced"`
	Problems []string         `json:"problems,omitempty"`
}

// CheckZeroSum verifies postings against the accounts they touch.
// A posting whose accounts are missing or denominated in another currency is a problem,
// and so is any currency whose debit and credit totals differ. Totals are
// keyed by account currency, not posting currency.
func CheckZeroSum(txnID uuid.UUID, postings []Posting, accounts map[uuid.UUID]Account) ZeroSumReport {
	report := ZeroSumReport{TxnID: txnID, Balanced: true}
	totals := make(map[money.Code]*CurrencyTotals)

	problem := func(format string, args ...any) {
		report.Balanced = false
		report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
	}

	side := func(c money.Code) *CurrencyTotals {
		t, ok := totals[c]
		if !ok {
			t = &CurrencyTotals{Currency: c}
			totals[c] = t
		}
		return t
	}

	for _, p := range postings {
		if !p.Amount.IsPositive() {
			problem("posting %s has non-positive amount %s", p.ID, p.Amount)
		}
		if p.DebitAccountID == p.CreditAccountID {
			problem("posting %s debits and credits the same account", p.ID)
		}
		for _, id := range []uuid.UUID{p.DebitAccountID, p.CreditAccountID} {
			acc, ok := accounts[id]
			if !ok {
				problem("posting %s references unknown account %s", p.ID, id)
				continue
			}
			if acc.Currency != p.Currency {
				problem("posting %s in %s touches %s account %s", p.ID, p.Currency, acc.Currency, id)
			}
		}

		// Each side counts in the currency of the account it lands on, so a
		// cross-currency posting leaves both currencies off balance.
		if acc, ok := accounts[p.DebitAccountID]; ok {
			side(acc.Currency).Debit += p.Amount
		}
		if acc, ok := accounts[p.CreditAccountID]; ok {
			side(acc.Currency).Credit += p.Amount
		}
	}

	for _, t := range totals {
		report.Totals = append(report.Totals, *t)
		if t.Debit != t.Credit {
			problem("currency %s debit %s != credit %s", t.Currency, t.Debit, t.Credit)
		}
	}
	sort.Slice(report.Totals, func(i, j int) bool {
		return report.Totals[i].Currency < report.Totals[j].Currency
	})
	return report
}

// Err returns ErrUnbalanced wrapped with the first problem, or nil.
func (r ZeroSumReport) Err() error {
	if r.Balanced {
		return nil
	}
	if len(r.Problems) == 0 {
		return fmt.Errorf("%w: txn %s", ErrUnbalanced, r.TxnID)
	}
	return fmt.Errorf("%w: txn %s: %s", ErrUnbalanced, r.TxnID, r.Problems[0])
}
