package network

import (
	"fmt"
	"sort"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// RankRule is one rung of the rank ladder. All thresholds are inclusive.
type RankRule struct {
	Level            int          `json:"level"`
	Name             string       `json:"name"`
	MinActiveDirects int          `json:"min_active_directs"`
	MinPersonalPV    money.Amount `json:"min_personal_pv"`
	MinGroupPV       money.Amount `json:"min_group_pv"`
}

// Satisfied reports whether the volumes meet every threshold of the rule.
func (r RankRule) Satisfied(personal, group money.Amount, activeDirects int) bool {
	return activeDirects >= r.MinActiveDirects &&
		personal >= r.MinPersonalPV &&
		group >= r.MinGroupPV
}

// Rank is the derived qualification of a user.
type Rank struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// NoRank is returned when no rule is satisfied.
var NoRank = Rank{Level: 0, Name: "none"}

// RankFor returns the highest-level rule fully satisfied by the given volumes.
func RankFor(rules []RankRule, personal, group money.Amount, activeDirects int) Rank {
	sorted := make([]RankRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level > sorted[j].Level })

	for _, r := range sorted {
		if r.Satisfied(personal, group, activeDirects) {
			return Rank{Level: r.Level, Name: r.Name}
		}
	}
	return NoRank
}

// Window is a half-open time interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: window bounds are required", domain.ErrValidation)
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: window start must be before end", domain.ErrValidation)
	}
	return nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// DirectStat is the window volume of a first-line partner.
type DirectStat struct {
	UserID uuid.UUID    `json:"user_id"`
	PV     money.Amount `json:"pv"`
	Active bool         `json:"active"`
}

// Stats aggregates a user's volumes over a window.
type Stats struct {
	UserID         uuid.UUID    `json:"user_id"`
	Window         Window       `json:"-"`
	PersonalPV     money.Amount `json:"personal_pv"`
	GroupPV        money.Amount `json:"group_pv"`
	ActiveDirects  int          `json:"active_directs"`
	FirstLineCount int          `json:"first_line_count"`
	DownlineSize   int          `json:"downline_size"`
	Directs        []DirectStat `json:"directs"`
	Rank           Rank         `json:"rank"`
}
