package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const draftColumns = `id, order_id, seller_id, seller_role, shop_id, store_owner_id, products, total_sum, payment_method, created_at, updated_at`

func scanDraft(row pgx.Row) (*model.DraftOrder, error) {
	var d model.DraftOrder
	var role, method string
	if err := row.Scan(&d.ID, &d.OrderID, &d.SellerID, &role, &d.ShopID, &d.StoreOwnerID,
		&d.Products, &d.TotalSum, &method, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.SellerRole = model.Role(role)
	d.PaymentMethod = model.PaymentMethod(method)
	return &d, nil
}

// CreateDraft резервирует остатки по всем позициям и сохраняет черновик в одной транзакции.
// Если хотя бы одна позиция не проходит проверку, ничего не списывается.
func (r *PostgresRepository) CreateDraft(ctx context.Context, d *model.DraftOrder) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := reserveItems(ctx, tx, d, d.Products); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO draft_orders (id, seller_id, seller_role, shop_id, store_owner_id, products, total_sum, payment_method)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING order_id, created_at, updated_at`,
			d.ID, d.SellerID, string(d.SellerRole), d.ShopID, d.StoreOwnerID, d.Products, d.TotalSum, string(d.PaymentMethod),
		).Scan(&d.OrderID, &d.CreatedAt, &d.UpdatedAt)
		return mapError(err, "draft order")
	})
}

// GetDraft возвращает черновик по идентификатору.
func (r *PostgresRepository) GetDraft(ctx context.Context, id uuid.UUID) (*model.DraftOrder, error) {
	d, err := scanDraft(r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM draft_orders WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "draft order")
	}
	return d, nil
}

// ListDrafts возвращает черновики продавца; nil sellerID означает все черновики.
func (r *PostgresRepository) ListDrafts(ctx context.Context, sellerID *uuid.UUID) ([]model.DraftOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+draftColumns+` FROM draft_orders
		 WHERE ($1::uuid IS NULL OR seller_id = $1)
		 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("select draft orders: %w", err)
	}
	defer rows.Close()

	var res []model.DraftOrder
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft order: %w", err)
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateDraft блокирует черновик, передаёт его в fn и сохраняет результат.
// Остатки по прежним позициям возвращаются, по новым резервируются заново.
func (r *PostgresRepository) UpdateDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) (*model.DraftOrder, error) {
	var updated *model.DraftOrder

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		d, err := lockDraft(ctx, tx, id)
		if err != nil {
			return err
		}
		previous := d.Products

		if err := fn(d); err != nil {
			return err
		}

		if err := restoreItems(ctx, tx, d.SellerRole, d.SellerID, previous); err != nil {
			return err
		}
		if err := reserveItems(ctx, tx, d, d.Products); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`UPDATE draft_orders SET products = $2, total_sum = $3, payment_method = $4, updated_at = NOW()
			 WHERE id = $1 RETURNING updated_at`,
			d.ID, d.Products, d.TotalSum, string(d.PaymentMethod),
		).Scan(&d.UpdatedAt)
		if err != nil {
			return mapError(err, "draft order")
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteDraft блокирует черновик, проверяет его через fn, возвращает остатки и удаляет запись.
func (r *PostgresRepository) DeleteDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		d, err := lockDraft(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := fn(d); err != nil {
			return err
		}

		if err := restoreItems(ctx, tx, d.SellerRole, d.SellerID, d.Products); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `DELETE FROM draft_orders WHERE id = $1`, d.ID)
		return mapError(err, "draft order")
	})
}

func lockDraft(ctx context.Context, q querier, id uuid.UUID) (*model.DraftOrder, error) {
	d, err := scanDraft(q.QueryRow(ctx, `SELECT `+draftColumns+` FROM draft_orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err, "draft order")
	}
	return d, nil
}

// sortedItems упорядочивает позиции по товару, чтобы блокировки строк брались в одном порядке.
func sortedItems(items []model.LineItem) []model.LineItem {
	res := make([]model.LineItem, len(items))
	copy(res, items)
	sort.Slice(res, func(i, j int) bool {
		return res[i].ProductID.String() < res[j].ProductID.String()
	})
	return res
}

// reserveItems списывает остатки из пула, которому принадлежит продавец:
// агенты работают с выделенным им запасом, продавцы со складом магазина.
func reserveItems(ctx context.Context, q querier, d *model.DraftOrder, items []model.LineItem) error {
	for _, it := range sortedItems(items) {
		var err error
		if d.SellerRole == model.RoleAgent {
			err = reserveAgentItem(ctx, q, d.SellerID, it)
		} else {
			err = reserveShopItem(ctx, q, d.StoreOwnerID, it)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func reserveShopItem(ctx context.Context, q querier, ownerID uuid.UUID, it model.LineItem) error {
	tag, err := q.Exec(ctx,
		`UPDATE products p SET quantity = p.quantity - $2
		 FROM shops s
		 WHERE p.id = $1 AND s.id = p.shop_id AND s.owner_id = $3 AND p.quantity >= $2`,
		it.ProductID, it.Quantity, ownerID,
	)
	if err != nil {
		return mapError(err, "product")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var (
		name      string
		available decimal.Decimal
		shopOwner *uuid.UUID
	)
	err = q.QueryRow(ctx,
		`SELECT p.name, p.quantity, s.owner_id FROM products p JOIN shops s ON s.id = p.shop_id WHERE p.id = $1`,
		it.ProductID,
	).Scan(&name, &available, &shopOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("product %s not found", it.ProductID)
	}
	if err != nil {
		return fmt.Errorf("select product: %w", err)
	}
	if shopOwner == nil || *shopOwner != ownerID {
		return apperr.Forbidden("product %q does not belong to the store", name)
	}
	return apperr.New(apperr.KindInsufficientStock,
		"insufficient stock for %q: available %s, requested %s", name, available.String(), it.Quantity.String())
}

func reserveAgentItem(ctx context.Context, q querier, agentID uuid.UUID, it model.LineItem) error {
	tag, err := q.Exec(ctx,
		`UPDATE agent_products SET quantity = quantity - $3
		 WHERE agent_id = $1 AND product_id = $2 AND quantity >= $3`,
		agentID, it.ProductID, it.Quantity,
	)
	if err != nil {
		return mapError(err, "agent product")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	available := decimal.Zero
	err = q.QueryRow(ctx,
		`SELECT quantity FROM agent_products WHERE agent_id = $1 AND product_id = $2`,
		agentID, it.ProductID,
	).Scan(&available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("select agent product: %w", err)
	}
	return apperr.New(apperr.KindInsufficientStock,
		"insufficient stock for %q: available %s, requested %s", it.Name, available.String(), it.Quantity.String())
}

// restoreItems возвращает остатки в тот пул, из которого они были списаны.
func restoreItems(ctx context.Context, q querier, role model.Role, sellerID uuid.UUID, items []model.LineItem) error {
	for _, it := range sortedItems(items) {
		var err error
		if role == model.RoleAgent {
			_, err = q.Exec(ctx,
				`INSERT INTO agent_products (agent_id, product_id, quantity) VALUES ($1, $2, $3)
				 ON CONFLICT (agent_id, product_id) DO UPDATE SET quantity = agent_products.quantity + EXCLUDED.quantity`,
				sellerID, it.ProductID, it.Quantity,
			)
		} else {
			_, err = q.Exec(ctx, `UPDATE products SET quantity = quantity + $2 WHERE id = $1`, it.ProductID, it.Quantity)
		}
		if err != nil {
			return mapError(err, "product")
		}
	}
	return nil
}
