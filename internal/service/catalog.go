package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/installment"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/validation"
)

// ShopInput — данные для создания магазина.
type ShopInput struct {
	Name     string     `json:"name" validate:"required"`
	OwnerID  *uuid.UUID `json:"ownerId"`
	RegionID *uuid.UUID `json:"regionId"`
}

// CategoryInput — данные для создания категории.
type CategoryInput struct {
	Name     string     `json:"name" validate:"required"`
	ParentID *uuid.UUID `json:"parentId"`
}

// ProductInput — данные для создания товара.
type ProductInput struct {
	ShopID     uuid.UUID       `json:"shopId" validate:"required"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	Name       string          `json:"name" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	Unit       string          `json:"unit"`
	UnitSize   decimal.Decimal `json:"unitSize"`
	Quantity   decimal.Decimal `json:"quantity"`
}

func nameRequired(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(field, "%s is required", field)
	}
	return name, nil
}

// CreateRegion создаёт регион.
func (s *Service) CreateRegion(ctx context.Context, actor authz.Actor, name string) (*model.Region, error) {
	if err := authz.Require(actor, authz.ActionRegionManage, authz.Resource{}); err != nil {
		return nil, err
	}
	name, err := nameRequired("name", name)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateRegion(ctx, name)
}

// CreateDistrict создаёт район.
func (s *Service) CreateDistrict(ctx context.Context, actor authz.Actor, regionID uuid.UUID, name string) (*model.District, error) {
	if err := authz.Require(actor, authz.ActionRegionManage, authz.Resource{}); err != nil {
		return nil, err
	}
	name, err := nameRequired("name", name)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateDistrict(ctx, regionID, name)
}

// CreateMfy создаёт махаллю.
func (s *Service) CreateMfy(ctx context.Context, actor authz.Actor, districtID uuid.UUID, name string) (*model.Mfy, error) {
	if err := authz.Require(actor, authz.ActionRegionManage, authz.Resource{}); err != nil {
		return nil, err
	}
	name, err := nameRequired("name", name)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateMfy(ctx, districtID, name)
}

// RegionTree возвращает дерево регионов.
func (s *Service) RegionTree(ctx context.Context) ([]model.Region, error) {
	return s.repo.ListRegionTree(ctx)
}

// CreateShop создаёт магазин. Владелец магазина создаёт магазин только на себя.
func (s *Service) CreateShop(ctx context.Context, actor authz.Actor, in ShopInput) (*model.Shop, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	owner := in.OwnerID
	if actor.Role == model.RoleShopOwner {
		id := actor.ID
		owner = &id
	}

	res := authz.Resource{}
	if owner != nil {
		res.StoreOwnerID = *owner
	}
	if err := authz.Require(actor, authz.ActionCatalogManage, res); err != nil {
		return nil, err
	}
	if owner != nil && actor.Role == model.RoleAdmin {
		if _, err := s.accountWithRole(ctx, *owner, model.RoleShopOwner); err != nil {
			return nil, err
		}
	}

	shop := &model.Shop{OwnerID: owner, Name: in.Name, RegionID: in.RegionID}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return nil, err
	}
	return shop, nil
}

// ListShops возвращает магазины. Владелец видит только свои.
func (s *Service) ListShops(ctx context.Context, actor authz.Actor) ([]model.Shop, error) {
	if actor.Role == model.RoleShopOwner {
		id := actor.ID
		return s.repo.ListShops(ctx, &id)
	}
	return s.repo.ListShops(ctx, nil)
}

// CreateCategory создаёт категорию каталога.
func (s *Service) CreateCategory(ctx context.Context, actor authz.Actor, in CategoryInput) (*model.Category, error) {
	if !authz.IsAdmin(actor, authz.ActionCatalogManage) {
		return nil, apperr.Forbidden("not allowed to %s", authz.ActionCatalogManage)
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	c := &model.Category{Name: in.Name, ParentID: in.ParentID}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories возвращает категории.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) requireShopOwner(ctx context.Context, actor authz.Actor, shopID uuid.UUID) (*model.Shop, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	res := authz.Resource{}
	if shop.OwnerID != nil {
		res.StoreOwnerID = *shop.OwnerID
	}
	if err := authz.Require(actor, authz.ActionCatalogManage, res); err != nil {
		return nil, err
	}
	return shop, nil
}

func (s *Service) requireProductOwner(ctx context.Context, actor authz.Actor, productID uuid.UUID) error {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	_, err = s.requireShopOwner(ctx, actor, p.ShopID)
	return err
}

// CreateProduct создаёт товар в магазине.
func (s *Service) CreateProduct(ctx context.Context, actor authz.Actor, in ProductInput) (*model.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, apperr.Validation("price", "price must not be negative")
	}
	if in.Quantity.IsNegative() {
		return nil, apperr.Validation("quantity", "quantity must not be negative")
	}
	if err := validation.Places("price", in.Price, model.MoneyPlaces); err != nil {
		return nil, err
	}
	if err := validation.Places("quantity", in.Quantity, model.QuantityPlaces); err != nil {
		return nil, err
	}
	if in.UnitSize.IsZero() {
		in.UnitSize = decimal.NewFromInt(1)
	}
	if !in.UnitSize.IsPositive() {
		return nil, apperr.Validation("unitSize", "unitSize must be greater than 0")
	}

	if _, err := s.requireShopOwner(ctx, actor, in.ShopID); err != nil {
		return nil, err
	}

	p := &model.Product{
		ShopID:     in.ShopID,
		CategoryID: in.CategoryID,
		Name:       in.Name,
		Price:      in.Price,
		Unit:       strings.TrimSpace(in.Unit),
		UnitSize:   in.UnitSize,
		Quantity:   in.Quantity,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts возвращает товары магазина или все товары.
func (s *Service) ListProducts(ctx context.Context, shopID *uuid.UUID) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, shopID)
}

// AdjustStock изменяет остаток товара на delta.
func (s *Service) AdjustStock(ctx context.Context, actor authz.Actor, productID uuid.UUID, delta decimal.Decimal) (*model.Product, error) {
	if delta.IsZero() {
		return nil, apperr.Validation("delta", "delta must not be zero")
	}
	if err := validation.Places("delta", delta, model.QuantityPlaces); err != nil {
		return nil, err
	}
	if err := s.requireProductOwner(ctx, actor, productID); err != nil {
		return nil, err
	}
	return s.repo.AdjustProductStock(ctx, productID, delta)
}

// UpsertInterestRate задаёт ставку для срока рассрочки.
// Изменение не затрагивает уже созданные планы.
func (s *Service) UpsertInterestRate(ctx context.Context, actor authz.Actor, duration int, rate decimal.Decimal) (*model.InterestRate, error) {
	if err := authz.Require(actor, authz.ActionRateManage, authz.Resource{}); err != nil {
		return nil, err
	}
	if !installment.ValidDuration(duration) {
		return nil, apperr.Validation("duration", "duration must be one of %v", installment.Durations)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperr.Validation("interestRate", "interestRate must be between 0 and 100")
	}
	return s.repo.UpsertInterestRate(ctx, duration, rate)
}

// DeactivateInterestRate выключает ставку для срока.
func (s *Service) DeactivateInterestRate(ctx context.Context, actor authz.Actor, duration int) error {
	if err := authz.Require(actor, authz.ActionRateManage, authz.Resource{}); err != nil {
		return err
	}
	return s.repo.DeactivateInterestRate(ctx, duration)
}

// ListInterestRates возвращает все ставки.
func (s *Service) ListInterestRates(ctx context.Context) ([]model.InterestRate, error) {
	return s.repo.ListInterestRates(ctx)
}
