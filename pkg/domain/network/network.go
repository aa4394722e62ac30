// Package network holds the MLM sponsor tree domain types.
//
// Invariants:
//   - Every user has at most one parent.
//   - The parent relation is acyclic; a user is never its own ancestor.
//   - Traversals are bounded by depth and guarded by a seen-set.
package network

import (
	"fmt"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/google/uuid"
)

var (
	// ErrSelfLoop is returned when a user is attached to itself.
	ErrSelfLoop = fmt.Errorf("%w: user cannot be its own parent", domain.ErrValidation)
	// ErrInactiveUser is returned when an edge endpoint is not active.
	ErrInactiveUser = fmt.Errorf("%w: user is not active", domain.ErrValidation)
	// ErrReferrerLocked is returned when the child's referrer can no longer change.
	ErrReferrerLocked = fmt.Errorf("%w: referrer is locked", domain.ErrIntegrity)
	// ErrCycle is returned when an attach would make a user its own ancestor.
	ErrCycle = fmt.Errorf("%w: attach would create a cycle", domain.ErrIntegrity)
	// ErrDuplicateParent is returned when a second parent edge is written for a child.
	ErrDuplicateParent = fmt.Errorf("%w: child already has a parent", domain.ErrIntegrity)
)

// Traversal bounds.
const (
	DefaultMaxDepth = 16
	HardMaxDepth    = 64
)

// ClampDepth maps a requested depth onto [1, hardCap]; depth <= 0 selects def.
func ClampDepth(depth, def, hardCap int) int {
	if hardCap <= 0 {
		hardCap = HardMaxDepth
	}
	if def <= 0 {
		def = DefaultMaxDepth
	}
	if depth <= 0 {
		depth = def
	}
	if depth > hardCap {
		depth = hardCap
	}
	return depth
}

// Edge is a parent/child link in the sponsor tree.
// ID is monotonic and orders siblings by attach time.
type Edge struct {
	ID         uint
	ParentID   uuid.UUID
	ChildID    uuid.UUID
	AttachedAt time.Time
}

// UplineNode is an ancestor at a given distance. Level 1 is the direct parent.
type UplineNode struct {
	Level  int       `json:"level"`
	UserID uuid.UUID `json:"user_id"`
}

// DownlineNode is a descendant at a given distance from the root of the walk.
type DownlineNode struct {
	Level    int       `json:"level"`
	UserID   uuid.UUID `json:"user_id"`
	ParentID uuid.UUID `json:"parent_id"`
}

// Member is the slice of a user record the network needs.
type Member struct {
	ID             uuid.UUID
	Active         bool
	ReferrerLocked bool
	IsPartner      bool
	RankLevel      int
}

// Policy controls attach validation.
type Policy struct {
	RequireActive bool
}
