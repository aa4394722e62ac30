// Package rank aggregates personal and group volume over a window and derives ranks.
// It never writes to the ledger; the only side effect is storing a recomputed rank on the user.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/metrics"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	networksvc "github.com/amirasaad/mlmcore/pkg/service/network"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultWindowDays = 30

// StatsOptions narrows a stats query.
// A zero Window selects the trailing window ending now.
type StatsOptions struct {
	Window          network.Window
	IncludeInactive bool
	MaxDepth        int
}

// Service is the volume and rank aggregator.
type Service struct {
	uow         repository.UnitOfWork
	network     *networksvc.Service
	logger      *slog.Logger
	minActive   money.Amount
	includeSelf bool
	windowDays  int
	now         func() time.Time
}

// New creates a rank Service. It fails when RANK_MIN_ACTIVE_PV is not a valid amount.
func New(deps config.Deps, net *networksvc.Service) (*Service, error) {
	s := &Service{
		uow:         deps.Uow,
		network:     net,
		logger:      deps.Logger,
		includeSelf: true,
		windowDays:  defaultWindowDays,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Rank != nil {
		r := deps.Config.Rank
		minActive, err := r.MinActive()
		if err != nil {
			return nil, fmt.Errorf("RANK_MIN_ACTIVE_PV: %w", err)
		}
		s.minActive = minActive
		s.includeSelf = r.IncludeSelfInGroup
		if r.WindowDays > 0 {
			s.windowDays = r.WindowDays
		}
	}
	return s, nil
}

// DefaultWindow is the trailing window of the configured number of days ending now.
func (s *Service) DefaultWindow() network.Window {
	to := s.now()
	return network.Window{From: to.AddDate(0, 0, -s.windowDays), To: to}
}

// GetUserNetworkStats aggregates the user's personal and group PV and derives the rank.
func (s *Service) GetUserNetworkStats(ctx context.Context, userID uuid.UUID, opts StatsOptions) (*network.Stats, error) {
	window := opts.Window
	if window.From.IsZero() && window.To.IsZero() {
		window = s.DefaultWindow()
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.network.Member(ctx, userID); err != nil {
		return nil, err
	}

	firstLine, err := s.network.ListFirstLine(ctx, userID)
	if err != nil {
		return nil, err
	}
	downline, err := s.network.GetDownline(ctx, userID, opts.MaxDepth)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(downline)+1)
	ids = append(ids, userID)
	for _, n := range downline {
		ids = append(ids, n.UserID)
	}
	orders, err := s.uow.OrderRepository()
	if err != nil {
		return nil, err
	}
	pv, err := orders.SumDeliveredPV(ctx, ids, window)
	if err != nil {
		return nil, err
	}

	stats := &network.Stats{
		UserID:         userID,
		Window:         window,
		PersonalPV:     pv[userID],
		FirstLineCount: len(firstLine),
		DownlineSize:   len(downline),
		Directs:        []network.DirectStat{},
	}
	group := make([]money.Amount, 0, len(downline)+1)
	if s.includeSelf {
		group = append(group, stats.PersonalPV)
	}
	for _, n := range downline {
		group = append(group, pv[n.UserID])
	}
	if stats.GroupPV, err = money.Sum(group...); err != nil {
		return nil, err
	}

	for _, e := range firstLine {
		d := network.DirectStat{UserID: e.ChildID, PV: pv[e.ChildID]}
		d.Active = d.PV > s.minActive
		if d.Active {
			stats.ActiveDirects++
		}
		if d.Active || opts.IncludeInactive {
			stats.Directs = append(stats.Directs, d)
		}
	}

	rules, err := s.rules(ctx)
	if err != nil {
		return nil, err
	}
	stats.Rank = network.RankFor(rules, stats.PersonalPV, stats.GroupPV, stats.ActiveDirects)
	return stats, nil
}

func (s *Service) rules(ctx context.Context) ([]network.RankRule, error) {
	repo, err := s.uow.RankRuleRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

// RecomputeRank derives the user's rank over window and stores its level on the user.
func (s *Service) RecomputeRank(ctx context.Context, userID uuid.UUID, window network.Window) (old, updated network.Rank, err error) {
	member, err := s.network.Member(ctx, userID)
	if err != nil {
		return network.NoRank, network.NoRank, err
	}
	stats, err := s.GetUserNetworkStats(ctx, userID, StatsOptions{Window: window})
	if err != nil {
		return network.NoRank, network.NoRank, err
	}
	rules, err := s.rules(ctx)
	if err != nil {
		return network.NoRank, network.NoRank, err
	}
	old = rankByLevel(rules, member.RankLevel)
	updated = stats.Rank
	if old.Level == updated.Level {
		return old, updated, nil
	}

	users, err := s.uow.UserRepository()
	if err != nil {
		return old, updated, err
	}
	if err := users.UpdateRankLevel(ctx, userID, updated.Level); err != nil {
		return old, updated, err
	}
	metrics.RankChanges.WithLabelValues(strconv.Itoa(updated.Level)).Inc()
	s.logger.Info("Rank changed", "user_id", userID, "from", old.Name, "to", updated.Name)
	return old, updated, nil
}

// RecomputeSummary counts the outcome of a batch recompute.
type RecomputeSummary struct {
	Processed int64 `json:"processed"`
	Changed   int64 `json:"changed"`
	Failed    int64 `json:"failed"`
}

// RecomputeAll recomputes the rank of every active user with at most workers in flight.
// A failure for one user is logged and counted without stopping the others.
func (s *Service) RecomputeAll(ctx context.Context, window network.Window, workers int) (RecomputeSummary, error) {
	var sum RecomputeSummary
	users, err := s.uow.UserRepository()
	if err != nil {
		return sum, err
	}
	ids, err := users.ListActiveIDs(ctx)
	if err != nil {
		return sum, err
	}
	if workers <= 0 {
		workers = 4
	}

	var processed, changed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			old, updated, err := s.RecomputeRank(gctx, id, window)
			processed.Add(1)
			if err != nil {
				failed.Add(1)
				s.logger.Error("Rank recompute failed", "user_id", id, "error", err)
				return nil
			}
			if old.Level != updated.Level {
				changed.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sum = RecomputeSummary{Processed: processed.Load(), Changed: changed.Load(), Failed: failed.Load()}
	s.logger.Info("Rank recompute finished", "processed", sum.Processed, "changed", sum.Changed, "failed", sum.Failed)
	return sum, err
}

func rankByLevel(rules []network.RankRule, level int) network.Rank {
	for _, r := range rules {
		if r.Level == level {
			return network.Rank{Level: r.Level, Name: r.Name}
		}
	}
	return network.NoRank
}
