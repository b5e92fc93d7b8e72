package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const orderColumns = `id, order_id, seller_id, store_owner_id, products, total_sum, status, payment_method,
	accepted_at, accepted_by, cancelled_at, cancelled_by, cancel_reason, completed_at, created_at`

func scanOrder(row pgx.Row) (*model.OrderHistory, error) {
	var o model.OrderHistory
	var status, method string
	if err := row.Scan(&o.ID, &o.OrderID, &o.SellerID, &o.StoreOwnerID, &o.Products, &o.TotalSum, &status, &method,
		&o.AcceptedAt, &o.AcceptedBy, &o.CancelledAt, &o.CancelledBy, &o.CancelReason, &o.CompletedAt, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(method)
	return &o, nil
}

// GetOrderHistory возвращает завершённый заказ по идентификатору.
func (r *PostgresRepository) GetOrderHistory(ctx context.Context, id uuid.UUID) (*model.OrderHistory, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM order_history WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "order")
	}
	return o, nil
}

// ListOrderHistory возвращает заказы по фильтру, новые первыми.
func (r *PostgresRepository) ListOrderHistory(ctx context.Context, f model.OrderFilter) ([]model.OrderHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM order_history
		 WHERE ($1::uuid IS NULL OR seller_id = $1)
		   AND ($2::uuid IS NULL OR store_owner_id = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY created_at DESC`,
		f.SellerID, f.StoreOwnerID, f.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.OrderHistory
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
