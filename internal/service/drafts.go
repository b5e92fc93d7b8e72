package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/validation"
)

// LineItemInput — позиция черновика от клиента.
type LineItemInput struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Unit      string          `json:"unit"`
	UnitSize  decimal.Decimal `json:"unitSize"`
}

// DraftInput — данные для создания черновика.
type DraftInput struct {
	StoreOwner    *uuid.UUID      `json:"storeOwner"`
	Products      []LineItemInput `json:"products"`
	PaymentMethod string          `json:"paymentMethod"`
}

// DraftUpdateInput — новые позиции и, при необходимости, способ оплаты.
type DraftUpdateInput struct {
	Products      []LineItemInput `json:"products"`
	PaymentMethod string          `json:"paymentMethod"`
}

func parseMethod(raw string, fallback model.PaymentMethod) (model.PaymentMethod, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	m := model.PaymentMethod(raw)
	if !m.IsValid() {
		return "", apperr.Validation("paymentMethod", "paymentMethod must be one of cash, card, installment")
	}
	return m, nil
}

// buildItems проверяет позиции и дополняет пустые поля данными каталога.
func (s *Service) buildItems(ctx context.Context, in []LineItemInput) ([]model.LineItem, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("products", "products are required")
	}

	items := make([]model.LineItem, 0, len(in))
	for i, it := range in {
		field := fmt.Sprintf("products[%d]", i)
		if it.ProductID == uuid.Nil {
			return nil, apperr.Validation(field+".productId", "productId is required")
		}
		if !it.Quantity.IsPositive() {
			return nil, apperr.Validation(field+".quantity", "quantity must be greater than 0")
		}
		if it.Price.IsNegative() {
			return nil, apperr.Validation(field+".price", "price must not be negative")
		}
		if err := validation.Places(field+".quantity", it.Quantity, model.QuantityPlaces); err != nil {
			return nil, err
		}
		if err := validation.Places(field+".price", it.Price, model.MoneyPlaces); err != nil {
			return nil, err
		}

		item := model.LineItem{
			ProductID: it.ProductID,
			Name:      strings.TrimSpace(it.Name),
			Quantity:  it.Quantity,
			Price:     it.Price,
			Unit:      strings.TrimSpace(it.Unit),
			UnitSize:  it.UnitSize,
		}
		if item.Name == "" || item.Unit == "" || item.UnitSize.IsZero() {
			p, err := s.repo.GetProduct(ctx, it.ProductID)
			if err != nil {
				return nil, err
			}
			if item.Name == "" {
				item.Name = p.Name
			}
			if item.Unit == "" {
				item.Unit = p.Unit
			}
			if item.UnitSize.IsZero() {
				item.UnitSize = p.UnitSize
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateDraft создаёт черновик и резервирует остатки.
// Магазин определяется по storeOwner; если он не указан, продавцу подбирается первый
// закреплённый магазин с владельцем, агенту магазин первой позиции.
func (s *Service) CreateDraft(ctx context.Context, actor authz.Actor, in DraftInput) (*model.DraftOrder, error) {
	if err := authz.Require(actor, authz.ActionDraftCreate, authz.Resource{SellerID: actor.ID}); err != nil {
		return nil, err
	}

	method, err := parseMethod(in.PaymentMethod, model.PaymentMethodCash)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, in.Products)
	if err != nil {
		return nil, err
	}

	ref := uuid.Nil
	if in.StoreOwner != nil {
		ref = *in.StoreOwner
	}
	sellerCtx := uuid.Nil
	switch actor.Role {
	case model.RoleSeller:
		sellerCtx = actor.ID
	case model.RoleAgent:
		if ref == uuid.Nil {
			p, err := s.repo.GetProduct(ctx, items[0].ProductID)
			if err != nil {
				return nil, err
			}
			ref = p.ShopID
		}
	}

	shop, err := s.resolveStoreOwner(ctx, ref, sellerCtx)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("storeOwner", "store owner could not be resolved")
		}
		return nil, err
	}

	if actor.Role == model.RoleSeller && ref != uuid.Nil {
		ok, err := s.sellerServesOwner(ctx, actor.ID, *shop.OwnerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("seller is not assigned to this store")
		}
	}

	d := &model.DraftOrder{
		SellerID:      actor.ID,
		SellerRole:    actor.Role,
		ShopID:        shop.ID,
		StoreOwnerID:  *shop.OwnerID,
		Products:      items,
		TotalSum:      model.SumLineItems(items),
		PaymentMethod: method,
	}
	if err := s.repo.CreateDraft(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDraft возвращает черновик владельцу или администратору.
func (s *Service) GetDraft(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.DraftOrder, error) {
	d, err := s.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionDraftManage, authz.Resource{SellerID: d.SellerID}); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDrafts возвращает черновики продавца; администратору все черновики.
func (s *Service) ListDrafts(ctx context.Context, actor authz.Actor) ([]model.DraftOrder, error) {
	if authz.IsAdmin(actor, authz.ActionDraftManage) {
		return s.repo.ListDrafts(ctx, nil)
	}
	if err := authz.Require(actor, authz.ActionDraftManage, authz.Resource{SellerID: actor.ID}); err != nil {
		return nil, err
	}
	id := actor.ID
	return s.repo.ListDrafts(ctx, &id)
}

// UpdateDraft заменяет позиции черновика. Прежние остатки возвращаются, новые
// резервируются в той же транзакции; при нехватке черновик не меняется.
func (s *Service) UpdateDraft(ctx context.Context, actor authz.Actor, id uuid.UUID, in DraftUpdateInput) (*model.DraftOrder, error) {
	items, err := s.buildItems(ctx, in.Products)
	if err != nil {
		return nil, err
	}

	return s.repo.UpdateDraft(ctx, id, func(d *model.DraftOrder) error {
		if err := authz.Require(actor, authz.ActionDraftManage, authz.Resource{SellerID: d.SellerID}); err != nil {
			return err
		}
		method, err := parseMethod(in.PaymentMethod, d.PaymentMethod)
		if err != nil {
			return err
		}

		d.Products = items
		d.TotalSum = model.SumLineItems(items)
		d.PaymentMethod = method
		return nil
	})
}

// DeleteDraft удаляет черновик и возвращает остатки.
func (s *Service) DeleteDraft(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	return s.repo.DeleteDraft(ctx, id, func(d *model.DraftOrder) error {
		return authz.Require(actor, authz.ActionDraftManage, authz.Resource{SellerID: d.SellerID})
	})
}
