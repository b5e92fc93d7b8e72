package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// consumeDraft удаляет черновик, только если он не менялся с момента чтения.
func consumeDraft(ctx context.Context, tx pgx.Tx, d *model.DraftOrder) error {
	tag, err := tx.Exec(ctx,
		`DELETE FROM draft_orders WHERE id = $1 AND updated_at = $2`, d.ID, d.UpdatedAt)
	if err != nil {
		return mapError(err, "draft order")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindConflict, "draft order %s was changed or already confirmed", d.ID)
	}
	return nil
}

// ConfirmInstallment удаляет черновик и создаёт план рассрочки с графиком в одной транзакции.
func (r *PostgresRepository) ConfirmInstallment(ctx context.Context, d *model.DraftOrder, p *model.InstallmentPayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := consumeDraft(ctx, tx, d); err != nil {
			return err
		}

		c := p.Customer
		t := p.Installment
		err := tx.QueryRow(ctx,
			`INSERT INTO installment_payments (
				id, order_id, seller_id, seller_role, shop_id, store_owner_id, products, total_sum,
				customer_full_name, customer_birth_date, customer_passport_series, customer_primary_phone,
				customer_secondary_phone, customer_image,
				duration, start_date, end_date, monthly_payment, interest_rate, interest_amount, total_with_interest,
				status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
			 RETURNING created_at, updated_at`,
			p.ID, p.OrderID, p.SellerID, string(p.SellerRole), p.ShopID, p.StoreOwnerID, p.Products, p.TotalSum,
			c.FullName, c.BirthDate, c.PassportSeries, c.PrimaryPhone, c.SecondaryPhone, c.Image,
			t.Duration, t.StartDate, t.EndDate, t.MonthlyPayment, t.InterestRate, t.InterestAmount, t.TotalWithInterest,
			string(p.Status),
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapError(err, "installment payment")
		}

		batch := &pgx.Batch{}
		for _, sp := range p.Payments {
			batch.Queue(
				`INSERT INTO installment_schedule (installment_id, month, amount, due_date, status, paid_at, paid_by, payment_method, notes)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				p.ID, sp.Month, sp.Amount, sp.DueDate, string(sp.Status), sp.PaidAt, sp.PaidBy, sp.PaymentMethod, sp.Notes,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapError(err, "installment schedule")
		}
		return nil
	})
}

// ConfirmOrder удаляет черновик и создаёт запись истории заказов в одной транзакции.
func (r *PostgresRepository) ConfirmOrder(ctx context.Context, d *model.DraftOrder, o *model.OrderHistory) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := consumeDraft(ctx, tx, d); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO order_history (id, order_id, seller_id, store_owner_id, products, total_sum, status, payment_method, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING created_at`,
			o.ID, o.OrderID, o.SellerID, o.StoreOwnerID, o.Products, o.TotalSum, string(o.Status), string(o.PaymentMethod), o.CompletedAt,
		).Scan(&o.CreatedAt)
		return mapError(err, "order history")
	})
}
