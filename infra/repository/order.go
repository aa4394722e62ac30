package repository

import (
	"context"

	"github.com/amirasaad/mlmcore/pkg/domain/network"
	"github.com/amirasaad/mlmcore/pkg/domain/order"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/amirasaad/mlmcore/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an orders adapter on the given session.
func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var row Order
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &order.Order{
		ID:          row.ID,
		BuyerID:     row.BuyerID,
		BaseAmount:  money.Amount(row.BaseAmount),
		PV:          money.Amount(row.PV),
		Status:      order.Status(row.Status),
		DeliveredAt: row.DeliveredAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

type buyerPV struct {
	BuyerID uuid.UUID
	Total   int64
}

func (r *orderRepository) SumDeliveredPV(
	ctx context.Context,
	buyerIDs []uuid.UUID,
	window network.Window,
) (map[uuid.UUID]money.Amount, error) {
	out := make(map[uuid.UUID]money.Amount, len(buyerIDs))
	for start := 0; start < len(buyerIDs); start += inBatchSize {
		end := min(start+inBatchSize, len(buyerIDs))
		var rows []buyerPV
		err := r.db.WithContext(ctx).
			Model(&Order{}).
			Select("buyer_id, CAST(SUM(pv) AS BIGINT) AS total").
			Where("buyer_id IN ?", buyerIDs[start:end]).
			Where("status = ?", string(order.StatusDelivered)).
			Where("delivered_at >= ? AND delivered_at < ?", window.From, window.To).
			Group("buyer_id").
			Scan(&rows).Error
		if err != nil {
			return nil, MapGormErrorToDomain(err)
		}
		for _, row := range rows {
			out[row.BuyerID] += money.Amount(row.Total)
		}
	}
	return out, nil
}
