// Package network maintains the sponsor tree and answers bounded traversal queries.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
)

// Service is the network graph store.
type Service struct {
	uow          repository.UnitOfWork
	logger       *slog.Logger
	policy       network.Policy
	defaultDepth int
	hardCap      int
	now          func() time.Time
}

// New creates a network Service from the shared dependencies.
func New(deps config.Deps) *Service {
	s := &Service{
		uow:          deps.Uow,
		logger:       deps.Logger,
		policy:       network.Policy{RequireActive: true},
		defaultDepth: network.DefaultMaxDepth,
		hardCap:      network.HardMaxDepth,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Network != nil {
		n := deps.Config.Network
		s.policy.RequireActive = n.RequireActive
		if n.DefaultDepth > 0 {
			s.defaultDepth = n.DefaultDepth
		}
		if n.HardDepthCap > 0 {
			s.hardCap = n.HardDepthCap
		}
	}
	return s
}

// AttachChildToParent makes parentID the sponsor of childID, moving the child
// with its whole subtree when it already had another sponsor.
func (s *Service) AttachChildToParent(ctx context.Context, parentID, childID uuid.UUID) (edge *network.Edge, err error) {
	logger := s.logger.With("parent_id", parentID, "child_id", childID)
	if parentID == childID {
		return nil, network.ErrSelfLoop
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		users, err := uow.UserRepository()
		if err != nil {
			return err
		}
		edges, err := uow.NetworkRepository()
		if err != nil {
			return err
		}
		if err := edges.LockGraph(ctx); err != nil {
			return err
		}

		parent, err := loadMember(ctx, users, parentID, "parent")
		if err != nil {
			return err
		}
		child, err := loadMember(ctx, users, childID, "child")
		if err != nil {
			return err
		}
		if s.policy.RequireActive && (!parent.Active || !child.Active) {
			return network.ErrInactiveUser
		}

		current, err := edges.GetParent(ctx, childID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if current != nil && current.ParentID == parentID {
			edge = current
			return nil
		}
		if child.ReferrerLocked {
			return network.ErrReferrerLocked
		}
		if err := s.checkNoCycle(ctx, edges, parentID, childID); err != nil {
			return err
		}

		if current != nil {
			if _, err := edges.DeleteByChild(ctx, childID); err != nil {
				return err
			}
		}
		edge = &network.Edge{ParentID: parentID, ChildID: childID, AttachedAt: s.now()}
		return edges.Create(ctx, edge)
	})
	if err != nil {
		logger.Warn("AttachChildToParent rejected", "error", err)
		return nil, err
	}
	logger.Info("Child attached", "edge_id", edge.ID)
	return edge, nil
}

// checkNoCycle walks the ancestors of parentID and fails if childID is among them.
func (s *Service) checkNoCycle(ctx context.Context, edges repository.NetworkRepository, parentID, childID uuid.UUID) error {
	seen := map[uuid.UUID]struct{}{parentID: {}}
	for cur := parentID; ; {
		if cur == childID {
			return network.ErrCycle
		}
		e, err := edges.GetParent(ctx, cur)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := seen[e.ParentID]; ok {
			s.logger.Error("Existing cycle detected in sponsor tree", "user_id", e.ParentID)
			return network.ErrCycle
		}
		seen[e.ParentID] = struct{}{}
		cur = e.ParentID
	}
}

// DetachChild removes the child's sponsor edge. The child's own subtree stays attached to it.
func (s *Service) DetachChild(ctx context.Context, childID uuid.UUID) error {
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		users, err := uow.UserRepository()
		if err != nil {
			return err
		}
		edges, err := uow.NetworkRepository()
		if err != nil {
			return err
		}
		if err := edges.LockGraph(ctx); err != nil {
			return err
		}
		child, err := loadMember(ctx, users, childID, "child")
		if err != nil {
			return err
		}
		if child.ReferrerLocked {
			return network.ErrReferrerLocked
		}
		deleted, err := edges.DeleteByChild(ctx, childID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: user %s has no sponsor", domain.ErrNotFound, childID)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("DetachChild rejected", "child_id", childID, "error", err)
		return err
	}
	s.logger.Info("Child detached", "child_id", childID)
	return nil
}

// GetParent returns the sponsor edge of childID.
func (s *Service) GetParent(ctx context.Context, childID uuid.UUID) (*network.Edge, error) {
	edges, err := s.uow.NetworkRepository()
	if err != nil {
		return nil, err
	}
	return edges.GetParent(ctx, childID)
}

// GetUpline returns ancestors nearest first, at most maxLevels of them.
func (s *Service) GetUpline(ctx context.Context, childID uuid.UUID, maxLevels int) ([]network.UplineNode, error) {
	edges, err := s.uow.NetworkRepository()
	if err != nil {
		return nil, err
	}
	return upline(ctx, edges, childID, network.ClampDepth(maxLevels, s.defaultDepth, s.hardCap))
}

func upline(ctx context.Context, edges repository.NetworkRepository, childID uuid.UUID, levels int) ([]network.UplineNode, error) {
	out := make([]network.UplineNode, 0, levels)
	seen := map[uuid.UUID]struct{}{childID: {}}
	cur := childID
	for level := 1; level <= levels; level++ {
		e, err := edges.GetParent(ctx, cur)
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, ok := seen[e.ParentID]; ok {
			break
		}
		seen[e.ParentID] = struct{}{}
		out = append(out, network.UplineNode{Level: level, UserID: e.ParentID})
		cur = e.ParentID
	}
	return out, nil
}

// GetDownline walks descendants breadth-first. Within a level nodes come in attach order.
// maxDepth <= 0 selects the default depth; values above the hard cap are clamped.
func (s *Service) GetDownline(ctx context.Context, parentID uuid.UUID, maxDepth int) ([]network.DownlineNode, error) {
	edges, err := s.uow.NetworkRepository()
	if err != nil {
		return nil, err
	}
	depth := network.ClampDepth(maxDepth, s.defaultDepth, s.hardCap)

	var out []network.DownlineNode
	seen := map[uuid.UUID]struct{}{parentID: {}}
	frontier := []uuid.UUID{parentID}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		children, err := edges.ListChildren(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uuid.UUID, 0, len(children))
		for _, e := range children {
			if _, ok := seen[e.ChildID]; ok {
				continue
			}
			seen[e.ChildID] = struct{}{}
			out = append(out, network.DownlineNode{Level: level, UserID: e.ChildID, ParentID: e.ParentID})
			next = append(next, e.ChildID)
		}
		frontier = next
	}
	return out, nil
}

// ListFirstLine returns the direct children of parentID, oldest first.
func (s *Service) ListFirstLine(ctx context.Context, parentID uuid.UUID) ([]network.Edge, error) {
	edges, err := s.uow.NetworkRepository()
	if err != nil {
		return nil, err
	}
	return edges.ListChildren(ctx, []uuid.UUID{parentID})
}

// Member loads the network view of a user.
func (s *Service) Member(ctx context.Context, userID uuid.UUID) (*network.Member, error) {
	users, err := s.uow.UserRepository()
	if err != nil {
		return nil, err
	}
	return loadMember(ctx, users, userID, "user")
}

func loadMember(ctx context.Context, users repository.UserRepository, id uuid.UUID, role string) (*network.Member, error) {
	m, err := users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, role, id)
		}
		return nil, err
	}
	return m, nil
}
