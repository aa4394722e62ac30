package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// inBatchSize bounds the number of ids bound into a single IN clause.
const inBatchSize = 500

// graphLockKey is the transaction-scoped advisory lock taken by every edge mutation.
const graphLockKey int64 = 0x6d6c6d5f65646765

type networkRepository struct {
	db *gorm.DB
}

// NewNetworkRepository creates a sponsor tree repository on the given session.
func NewNetworkRepository(db *gorm.DB) repository.NetworkRepository {
	return &networkRepository{db: db}
}

// LockGraph takes pg_advisory_xact_lock so that concurrent attaches see each
// other's edges before walking ancestors. Other dialects serialize writers already.
func (r *networkRepository) LockGraph(ctx context.Context) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", graphLockKey).Error
	})
}

func (r *networkRepository) GetParent(ctx context.Context, childID uuid.UUID) (*network.Edge, error) {
	var row NetworkEdge
	if err := r.db.WithContext(ctx).First(&row, "child_id = ?", childID).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapEdgeModelToDomain(&row), nil
}

func (r *networkRepository) ListChildren(ctx context.Context, parentIDs []uuid.UUID) ([]network.Edge, error) {
	var out []network.Edge
	for start := 0; start < len(parentIDs); start += inBatchSize {
		end := min(start+inBatchSize, len(parentIDs))
		var rows []NetworkEdge
		err := r.db.WithContext(ctx).
			Where("parent_id IN ?", parentIDs[start:end]).
			Order("attached_at, id").
			Find(&rows).Error
		if err != nil {
			return nil, MapGormErrorToDomain(err)
		}
		for i := range rows {
			out = append(out, *mapEdgeModelToDomain(&rows[i]))
		}
	}
	if len(parentIDs) > inBatchSize {
		sortEdgesByAttachOrder(out)
	}
	return out, nil
}

func (r *networkRepository) Create(ctx context.Context, edge *network.Edge) error {
	if edge.AttachedAt.IsZero() {
		edge.AttachedAt = time.Now().UTC()
	}
	row := NetworkEdge{
		ParentID:   edge.ParentID,
		ChildID:    edge.ChildID,
		AttachedAt: edge.AttachedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		mapped := MapGormErrorToDomain(err)
		if errors.Is(mapped, domain.ErrAlreadyExists) {
			return fmt.Errorf("%w: child %s", network.ErrDuplicateParent, edge.ChildID)
		}
		return mapped
	}
	edge.ID = row.ID
	return nil
}

func (r *networkRepository) DeleteByChild(ctx context.Context, childID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("child_id = ?", childID).Delete(&NetworkEdge{})
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func mapEdgeModelToDomain(row *NetworkEdge) *network.Edge {
	return &network.Edge{
		ID:         row.ID,
		ParentID:   row.ParentID,
		ChildID:    row.ChildID,
		AttachedAt: row.AttachedAt,
	}
}

func sortEdgesByAttachOrder(edges []network.Edge) {
	slices.SortStableFunc(edges, func(a, b network.Edge) int {
		if c := a.AttachedAt.Compare(b.AttachedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

type rankRuleRepository struct {
	db *gorm.DB
}

// NewRankRuleRepository creates a rank ladder repository on the given session.
func NewRankRuleRepository(db *gorm.DB) repository.RankRuleRepository {
	return &rankRuleRepository{db: db}
}

func (r *rankRuleRepository) List(ctx context.Context) ([]network.RankRule, error) {
	var rows []RankRule
	if err := r.db.WithContext(ctx).Order("level").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]network.RankRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, network.RankRule{
			Level:            row.Level,
			Name:             row.Name,
			MinActiveDirects: row.MinActiveDirects,
			MinPersonalPV:    money.Amount(row.MinPersonalPV),
			MinGroupPV:       money.Amount(row.MinGroupPV),
		})
	}
	return out, nil
}
