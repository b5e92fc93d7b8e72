package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const accountColumns = `id, role, full_name, phone, password_hash, permissions, is_active, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var role string
	if err := row.Scan(&a.ID, &role, &a.FullName, &a.Phone, &a.PasswordHash, &a.Permissions, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}

// CreateAccount создаёт учётную запись.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Permissions == nil {
		a.Permissions = []string{}
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, role, full_name, phone, password_hash, permissions, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		a.ID, string(a.Role), a.FullName, a.Phone, a.PasswordHash, a.Permissions, a.IsActive,
	).Scan(&a.CreatedAt)
	return mapError(err, "account")
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "account")
	}
	return a, nil
}

// GetAccountByPhone возвращает учётную запись по номеру телефона.
func (r *PostgresRepository) GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone))
	if err != nil {
		return nil, mapError(err, "account")
	}
	return a, nil
}

// ListAccounts возвращает учётные записи; пустая роль означает все роли.
func (r *PostgresRepository) ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE ($1 = '' OR role = $1)
		 ORDER BY created_at DESC`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var res []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AssignSellerShop закрепляет магазин за продавцом.
func (r *PostgresRepository) AssignSellerShop(ctx context.Context, sellerID, shopID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO seller_shops (seller_id, shop_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		sellerID, shopID,
	)
	return mapError(err, "seller shop")
}

// AssignSellerShopOwner закрепляет продавца за владельцем магазинов с зоной обслуживания.
func (r *PostgresRepository) AssignSellerShopOwner(ctx context.Context, sellerID uuid.UUID, a model.SellerShopOwner) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO seller_shop_owners (seller_id, shop_owner_id, region_id, district_id, mfy_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (seller_id, shop_owner_id)
		 DO UPDATE SET region_id = EXCLUDED.region_id, district_id = EXCLUDED.district_id, mfy_id = EXCLUDED.mfy_id`,
		sellerID, a.ShopOwnerID, a.Area.RegionID, a.Area.DistrictID, a.Area.MfyID,
	)
	return mapError(err, "seller shop owner")
}

// GetSellerAssignments возвращает магазины и владельцев, закреплённых за продавцом, в порядке назначения.
func (r *PostgresRepository) GetSellerAssignments(ctx context.Context, sellerID uuid.UUID) (*model.SellerAssignments, error) {
	res := &model.SellerAssignments{}

	rows, err := r.pool.Query(ctx,
		`SELECT shop_id FROM seller_shops WHERE seller_id = $1 ORDER BY created_at`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("select seller shops: %w", err)
	}
	res.ShopIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect seller shops: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT shop_owner_id, region_id, district_id, mfy_id
		 FROM seller_shop_owners WHERE seller_id = $1 ORDER BY created_at`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("select seller shop owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.SellerShopOwner
		if err := rows.Scan(&a.ShopOwnerID, &a.Area.RegionID, &a.Area.DistrictID, &a.Area.MfyID); err != nil {
			return nil, fmt.Errorf("scan seller shop owner: %w", err)
		}
		res.ShopOwners = append(res.ShopOwners, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AllocateAgentProduct переносит qty единиц товара со склада магазина в запас агента.
func (r *PostgresRepository) AllocateAgentProduct(ctx context.Context, agentID, productID uuid.UUID, qty decimal.Decimal) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`,
			productID, qty,
		)
		if err != nil {
			return mapError(err, "product")
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.KindInsufficientStock, "insufficient stock for product %s", productID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO agent_products (agent_id, product_id, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (agent_id, product_id) DO UPDATE SET quantity = agent_products.quantity + EXCLUDED.quantity`,
			agentID, productID, qty,
		)
		return mapError(err, "agent product")
	})
}
