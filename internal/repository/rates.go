package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const rateColumns = `id, duration, interest_rate, is_active, created_at, updated_at`

func scanRate(row pgx.Row) (*model.InterestRate, error) {
	var ir model.InterestRate
	if err := row.Scan(&ir.ID, &ir.Duration, &ir.Rate, &ir.IsActive, &ir.CreatedAt, &ir.UpdatedAt); err != nil {
		return nil, err
	}
	return &ir, nil
}

// UpsertInterestRate создаёт или обновляет ставку для срока и делает её активной.
func (r *PostgresRepository) UpsertInterestRate(ctx context.Context, duration int, rate decimal.Decimal) (*model.InterestRate, error) {
	ir, err := scanRate(r.pool.QueryRow(ctx,
		`INSERT INTO interest_rates (id, duration, interest_rate, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (duration) DO UPDATE
		 SET interest_rate = EXCLUDED.interest_rate, is_active = TRUE, updated_at = NOW()
		 RETURNING `+rateColumns,
		uuid.New(), duration, rate))
	if err != nil {
		return nil, mapError(err, "interest rate")
	}
	return ir, nil
}

// DeactivateInterestRate выключает ставку для срока.
func (r *PostgresRepository) DeactivateInterestRate(ctx context.Context, duration int) error {
	_, err := scanRate(r.pool.QueryRow(ctx,
		`UPDATE interest_rates SET is_active = FALSE, updated_at = NOW()
		 WHERE duration = $1 RETURNING `+rateColumns, duration))
	return mapError(err, "interest rate")
}

// ActiveInterestRate возвращает действующую ставку для срока.
func (r *PostgresRepository) ActiveInterestRate(ctx context.Context, duration int) (*model.InterestRate, error) {
	ir, err := scanRate(r.pool.QueryRow(ctx,
		`SELECT `+rateColumns+` FROM interest_rates
		 WHERE duration = $1 AND is_active
		 ORDER BY updated_at DESC LIMIT 1`, duration))
	if err != nil {
		return nil, mapError(err, "interest rate")
	}
	return ir, nil
}

// ListInterestRates возвращает все ставки.
func (r *PostgresRepository) ListInterestRates(ctx context.Context) ([]model.InterestRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rateColumns+` FROM interest_rates ORDER BY duration`)
	if err != nil {
		return nil, fmt.Errorf("select interest rates: %w", err)
	}
	defer rows.Close()

	var res []model.InterestRate
	for rows.Next() {
		ir, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest rate: %w", err)
		}
		res = append(res, *ir)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
