package repository

import (
	"context"
	"fmt"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a users adapter on the given session.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*network.Member, error) {
	var row User
	err := r.db.WithContext(ctx).
		Select("id", "active", "referrer_locked", "is_partner", "rank_level").
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &network.Member{
		ID:             row.ID,
		Active:         row.Active,
		ReferrerLocked: row.ReferrerLocked,
		IsPartner:      row.IsPartner,
		RankLevel:      row.RankLevel,
	}, nil
}

func (r *userRepository) UpdateRankLevel(ctx context.Context, id uuid.UUID, level int) error {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Update("rank_level", level)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *userRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&User{}).
		Where("active = ?", true).
		Order("created_at, id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return ids, nil
}
