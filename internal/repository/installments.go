package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const planColumns = `id, order_id, seller_id, seller_role, shop_id, store_owner_id, products, total_sum,
	customer_full_name, customer_birth_date, customer_passport_series, customer_primary_phone,
	customer_secondary_phone, customer_image,
	duration, start_date, end_date, monthly_payment, interest_rate, interest_amount, total_with_interest,
	status, cancelled_at, cancelled_by, cancel_reason, completed_at, created_at, updated_at`

func scanPlan(row pgx.Row) (*model.InstallmentPayment, error) {
	var p model.InstallmentPayment
	var role, status string
	c := &p.Customer
	t := &p.Installment
	if err := row.Scan(&p.ID, &p.OrderID, &p.SellerID, &role, &p.ShopID, &p.StoreOwnerID, &p.Products, &p.TotalSum,
		&c.FullName, &c.BirthDate, &c.PassportSeries, &c.PrimaryPhone, &c.SecondaryPhone, &c.Image,
		&t.Duration, &t.StartDate, &t.EndDate, &t.MonthlyPayment, &t.InterestRate, &t.InterestAmount, &t.TotalWithInterest,
		&status, &p.CancelledAt, &p.CancelledBy, &p.CancelReason, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.SellerRole = model.Role(role)
	p.Status = model.InstallmentStatus(status)
	return &p, nil
}

func loadSchedule(ctx context.Context, q querier, plans ...*model.InstallmentPayment) error {
	if len(plans) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(plans))
	byID := make(map[uuid.UUID]*model.InstallmentPayment, len(plans))
	for _, p := range plans {
		ids = append(ids, p.ID)
		byID[p.ID] = p
		p.Payments = p.Payments[:0]
	}

	rows, err := q.Query(ctx,
		`SELECT installment_id, month, amount, due_date, status, paid_at, paid_by, payment_method, notes
		 FROM installment_schedule WHERE installment_id = ANY($1)
		 ORDER BY installment_id, month`, ids)
	if err != nil {
		return fmt.Errorf("select installment schedule: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			planID uuid.UUID
			sp     model.ScheduledPayment
			status string
		)
		if err := rows.Scan(&planID, &sp.Month, &sp.Amount, &sp.DueDate, &status, &sp.PaidAt, &sp.PaidBy, &sp.PaymentMethod, &sp.Notes); err != nil {
			return fmt.Errorf("scan scheduled payment: %w", err)
		}
		sp.Status = model.PaymentStatus(status)
		if p, ok := byID[planID]; ok {
			p.Payments = append(p.Payments, sp)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// GetInstallment возвращает план рассрочки вместе с графиком платежей.
func (r *PostgresRepository) GetInstallment(ctx context.Context, id uuid.UUID) (*model.InstallmentPayment, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM installment_payments WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "installment payment")
	}
	if err := loadSchedule(ctx, r.pool, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListInstallments возвращает планы рассрочки по фильтру, новые первыми.
func (r *PostgresRepository) ListInstallments(ctx context.Context, f model.OrderFilter) ([]model.InstallmentPayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+planColumns+` FROM installment_payments
		 WHERE ($1::uuid IS NULL OR seller_id = $1)
		   AND ($2::uuid IS NULL OR store_owner_id = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY created_at DESC`,
		f.SellerID, f.StoreOwnerID, f.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("select installment payments: %w", err)
	}
	defer rows.Close()

	var plans []*model.InstallmentPayment
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment payment: %w", err)
		}
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := loadSchedule(ctx, r.pool, plans...); err != nil {
		return nil, err
	}

	res := make([]model.InstallmentPayment, 0, len(plans))
	for _, p := range plans {
		res = append(res, *p)
	}
	return res, nil
}

// UpdateInstallment блокирует план (SELECT ... FOR UPDATE), передаёт его в fn и сохраняет изменения.
// Если fn перевела план в статус cancelled, остатки товаров возвращаются в исходный пул
// в той же транзакции.
func (r *PostgresRepository) UpdateInstallment(ctx context.Context, id uuid.UUID, fn func(p *model.InstallmentPayment) error) (*model.InstallmentPayment, error) {
	var updated *model.InstallmentPayment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := scanPlan(tx.QueryRow(ctx,
			`SELECT `+planColumns+` FROM installment_payments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, "installment payment")
		}
		if err := loadSchedule(ctx, tx, p); err != nil {
			return err
		}
		before := p.Status

		if err := fn(p); err != nil {
			return err
		}

		if before != model.InstallmentStatusCancelled && p.Status == model.InstallmentStatusCancelled {
			if err := restoreItems(ctx, tx, p.SellerRole, p.SellerID, p.Products); err != nil {
				return err
			}
		}

		if err := savePlan(ctx, tx, p); err != nil {
			return err
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func savePlan(ctx context.Context, tx pgx.Tx, p *model.InstallmentPayment) error {
	err := tx.QueryRow(ctx,
		`UPDATE installment_payments
		 SET status = $2, cancelled_at = $3, cancelled_by = $4, cancel_reason = $5, completed_at = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		p.ID, string(p.Status), p.CancelledAt, p.CancelledBy, p.CancelReason, p.CompletedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapError(err, "installment payment")
	}

	batch := &pgx.Batch{}
	for _, sp := range p.Payments {
		batch.Queue(
			`UPDATE installment_schedule
			 SET status = $3, paid_at = $4, paid_by = $5, payment_method = $6, notes = $7
			 WHERE installment_id = $1 AND month = $2`,
			p.ID, sp.Month, string(sp.Status), sp.PaidAt, sp.PaidBy, sp.PaymentMethod, sp.Notes,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "installment schedule")
	}
	return nil
}

// ListOverdueCandidates возвращает по возрастанию id планы с id больше after,
// у которых есть неоплаченный платёж со сроком раньше before.
func (r *PostgresRepository) ListOverdueCandidates(ctx context.Context, before time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id
		 FROM installment_payments p
		 WHERE p.status IN ('active', 'overdue') AND p.id > $2
		   AND EXISTS (
		     SELECT 1 FROM installment_schedule s
		     WHERE s.installment_id = p.id AND s.status = 'pending' AND s.due_date < $1
		   )
		 ORDER BY p.id
		 LIMIT $3`,
		before, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select overdue candidates: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect overdue candidates: %w", err)
	}
	return ids, nil
}
