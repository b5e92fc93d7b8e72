package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// ErrStoreOwnerNotFound возвращается, когда ни один путь разрешения не дал владельца магазина.
var ErrStoreOwnerNotFound = apperr.NotFound("store owner not found")

// resolveStoreOwner находит магазин с владельцем по ссылке, которая может быть
// идентификатором магазина или владельца. Порядок: магазин с таким id, первый магазин
// владельца с таким id, затем (если задан продавец) его магазины и магазины
// закреплённых за ним владельцев в порядке назначения.
func (s *Service) resolveStoreOwner(ctx context.Context, ref, sellerID uuid.UUID) (*model.Shop, error) {
	if ref != uuid.Nil {
		shop, err := s.repo.GetShop(ctx, ref)
		if err == nil && shop.OwnerID != nil {
			return shop, nil
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}

		shop, err = s.repo.FindShopByOwner(ctx, ref)
		if err == nil {
			return shop, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if sellerID == uuid.Nil {
		return nil, ErrStoreOwnerNotFound
	}

	assignments, err := s.repo.GetSellerAssignments(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	for _, shopID := range assignments.ShopIDs {
		shop, err := s.repo.GetShop(ctx, shopID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if shop.OwnerID != nil {
			return shop, nil
		}
	}

	for _, so := range assignments.ShopOwners {
		shop, err := s.repo.FindShopByOwner(ctx, so.ShopOwnerID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return shop, nil
	}

	return nil, ErrStoreOwnerNotFound
}

// sellerServesOwner сообщает, закреплён ли продавец за владельцем напрямую или через магазин.
func (s *Service) sellerServesOwner(ctx context.Context, sellerID, ownerID uuid.UUID) (bool, error) {
	assignments, err := s.repo.GetSellerAssignments(ctx, sellerID)
	if err != nil {
		return false, err
	}

	for _, so := range assignments.ShopOwners {
		if so.ShopOwnerID == ownerID {
			return true, nil
		}
	}
	for _, shopID := range assignments.ShopIDs {
		shop, err := s.repo.GetShop(ctx, shopID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return false, err
		}
		if shop.OwnerID != nil && *shop.OwnerID == ownerID {
			return true, nil
		}
	}
	return false, nil
}
