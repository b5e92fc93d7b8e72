package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// ListOrders возвращает завершённые заказы в пределах видимости участника.
func (s *Service) ListOrders(ctx context.Context, actor authz.Actor, f model.OrderFilter) ([]model.OrderHistory, error) {
	f, err := scopeFilter(actor, authz.ActionOrderView, f)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrderHistory(ctx, f)
}

// GetOrder возвращает завершённый заказ.
func (s *Service) GetOrder(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.OrderHistory, error) {
	o, err := s.repo.GetOrderHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionOrderView, authz.Resource{SellerID: o.SellerID, StoreOwnerID: o.StoreOwnerID}); err != nil {
		return nil, err
	}
	return o, nil
}
