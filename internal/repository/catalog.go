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

// CreateShop создаёт магазин.
func (r *PostgresRepository) CreateShop(ctx context.Context, s *model.Shop) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shops (id, owner_id, name, region_id) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		s.ID, s.OwnerID, s.Name, s.RegionID,
	).Scan(&s.CreatedAt)
	return mapError(err, "shop")
}

func scanShop(row pgx.Row) (*model.Shop, error) {
	var s model.Shop
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.RegionID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShop возвращает магазин по идентификатору.
func (r *PostgresRepository) GetShop(ctx context.Context, id uuid.UUID) (*model.Shop, error) {
	s, err := scanShop(r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, region_id, created_at FROM shops WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "shop")
	}
	return s, nil
}

// FindShopByOwner возвращает самый ранний магазин владельца.
func (r *PostgresRepository) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Shop, error) {
	s, err := scanShop(r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, region_id, created_at FROM shops
		 WHERE owner_id = $1 ORDER BY created_at LIMIT 1`, ownerID))
	if err != nil {
		return nil, mapError(err, "shop")
	}
	return s, nil
}

// ListShops возвращает магазины; nil ownerID означает все магазины.
func (r *PostgresRepository) ListShops(ctx context.Context, ownerID *uuid.UUID) ([]model.Shop, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, region_id, created_at FROM shops
		 WHERE ($1::uuid IS NULL OR owner_id = $1)
		 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select shops: %w", err)
	}
	defer rows.Close()

	var res []model.Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCategory создаёт категорию каталога.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *model.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (id, parent_id, name) VALUES ($1, $2, $3) RETURNING created_at`,
		c.ID, c.ParentID, c.Name,
	).Scan(&c.CreatedAt)
	return mapError(err, "category")
}

// ListCategories возвращает все категории.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, parent_id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const productColumns = `id, shop_id, category_id, name, price, unit, unit_size, quantity, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.ShopID, &p.CategoryID, &p.Name, &p.Price, &p.Unit, &p.UnitSize, &p.Quantity, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct создаёт товар.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, shop_id, category_id, name, price, unit, unit_size, quantity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		p.ID, p.ShopID, p.CategoryID, p.Name, p.Price, p.Unit, p.UnitSize, p.Quantity,
	).Scan(&p.CreatedAt)
	return mapError(err, "product")
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "product")
	}
	return p, nil
}

// ListProducts возвращает товары; nil shopID означает все магазины.
func (r *PostgresRepository) ListProducts(ctx context.Context, shopID *uuid.UUID) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE ($1::uuid IS NULL OR shop_id = $1)
		 ORDER BY name`, shopID)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AdjustProductStock изменяет остаток на delta. Уход в минус отклоняется.
func (r *PostgresRepository) AdjustProductStock(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`UPDATE products SET quantity = quantity + $2
		 WHERE id = $1 AND quantity + $2 >= 0
		 RETURNING `+productColumns, id, delta))
	if err == nil {
		return p, nil
	}
	if _, getErr := r.GetProduct(ctx, id); getErr != nil {
		return nil, getErr
	}
	if err == pgx.ErrNoRows {
		return nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock for product %s", id)
	}
	return nil, mapError(err, "product")
}
