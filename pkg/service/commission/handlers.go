package commission

import (
	"context"
	"fmt"

	"github.com/amirasaad/mlmcore/pkg/domain/commission"
	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
)

// RegisterHandlers subscribes the distributor to order completion and partner activation events.
// Redeliveries already handled by this process are skipped before touching the database.
func (s *Service) RegisterHandlers(bus eventbus.Bus) {
	tracker := eventbus.NewIdempotencyTracker()
	bus.Register(events.EventTypeOrderCompleted, eventbus.WithIdempotency(
		s.handleOrderCompleted, tracker, eventKey, "commission.order_completed", s.logger))
	bus.Register(events.EventTypePartnerActivated, eventbus.WithIdempotency(
		s.handlePartnerActivated, tracker, eventKey, "commission.partner_activated", s.logger))
}

// eventKey reuses the ledger operation id so both layers agree on what a duplicate is.
func eventKey(e events.Event) string {
	switch evt := e.(type) {
	case *events.OrderCompleted:
		return commission.OrderOperationID(evt.OrderID)
	case *events.PartnerActivated:
		return commission.ActivationOperationID(evt.UserID)
	}
	return ""
}

func (s *Service) handleOrderCompleted(ctx context.Context, e events.Event) error {
	evt, ok := e.(*events.OrderCompleted)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", e, events.EventTypeOrderCompleted)
	}
	res, err := s.DistributeOrderCommission(ctx, evt.OrderID)
	if err != nil {
		return fmt.Errorf("distribute order %s: %w", evt.OrderID, err)
	}
	s.logger.Debug("order.completed handled", "order_id", evt.OrderID, "outcome", res.Outcome, "reason", res.Reason)
	return settled(res)
}

func (s *Service) handlePartnerActivated(ctx context.Context, e events.Event) error {
	evt, ok := e.(*events.PartnerActivated)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", e, events.EventTypePartnerActivated)
	}
	res, err := s.GrantActivationBonus(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("activation bonus for %s: %w", evt.UserID, err)
	}
	s.logger.Debug("partner.activated handled", "user_id", evt.UserID, "outcome", res.Outcome, "reason", res.Reason)
	return settled(res)
}

// settled keeps skipped outcomes out of the idempotency tracker: the order may
// complete or the sponsor record may be repaired before the next delivery.
func settled(res commission.Result) error {
	if res.Outcome == commission.OutcomeSkipped {
		return fmt.Errorf("%w: %s", eventbus.ErrUnsettled, res.Reason)
	}
	return nil
}
