// Package authz централизует проверку прав: кто (Actor) может выполнить действие над ресурсом.
package authz

import (
	"slices"

	"github.com/google/uuid"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// Actor — аутентифицированный участник запроса.
type Actor struct {
	ID          uuid.UUID
	Role        model.Role
	Permissions []string
}

// Action — проверяемое действие.
type Action string

const (
	ActionDraftCreate       Action = "draft.create"
	ActionDraftManage       Action = "draft.manage"
	ActionDraftConfirm      Action = "draft.confirm"
	ActionOrderView         Action = "order.view"
	ActionInstallmentView   Action = "installment.view"
	ActionInstallmentPay    Action = "installment.pay"
	ActionInstallmentCancel Action = "installment.cancel"
	ActionRateManage        Action = "interest_rate.manage"
	ActionCatalogManage     Action = "catalog.manage"
	ActionRegionManage      Action = "region.manage"
	ActionAccountManage     Action = "account.manage"
)

// Права администратора. PermissionAll открывает всё.
const (
	PermissionAll           = "*"
	PermissionOrders        = "orders"
	PermissionInstallments  = "installments"
	PermissionInterestRates = "interest_rates"
	PermissionCatalog       = "catalog"
	PermissionRegions       = "regions"
	PermissionAccounts      = "accounts"
)

var adminPermission = map[Action]string{
	ActionDraftCreate:       PermissionOrders,
	ActionDraftManage:       PermissionOrders,
	ActionDraftConfirm:      PermissionOrders,
	ActionOrderView:         PermissionOrders,
	ActionInstallmentView:   PermissionInstallments,
	ActionInstallmentPay:    PermissionInstallments,
	ActionInstallmentCancel: PermissionInstallments,
	ActionRateManage:        PermissionInterestRates,
	ActionCatalogManage:     PermissionCatalog,
	ActionRegionManage:      PermissionRegions,
	ActionAccountManage:     PermissionAccounts,
}

// Resource описывает владельцев объекта. Нулевые поля означают «не принадлежит никому».
type Resource struct {
	SellerID     uuid.UUID
	StoreOwnerID uuid.UUID
}

// Can сообщает, разрешено ли действие.
func Can(actor Actor, action Action, res Resource) bool {
	if actor.ID == uuid.Nil {
		return false
	}

	switch actor.Role {
	case model.RoleAdmin:
		perm, ok := adminPermission[action]
		if !ok {
			return false
		}
		return slices.Contains(actor.Permissions, PermissionAll) || slices.Contains(actor.Permissions, perm)

	case model.RoleSeller, model.RoleAgent:
		switch action {
		case ActionDraftCreate:
			return true
		case ActionDraftManage, ActionDraftConfirm, ActionOrderView, ActionInstallmentView:
			return res.SellerID == actor.ID
		case ActionInstallmentPay, ActionInstallmentCancel:
			return actor.Role == model.RoleSeller && res.SellerID == actor.ID
		}

	case model.RoleShopOwner:
		switch action {
		case ActionCatalogManage, ActionOrderView, ActionInstallmentView:
			return res.StoreOwnerID == actor.ID
		}
	}

	return false
}

// Require возвращает ошибку авторизации, если действие запрещено.
func Require(actor Actor, action Action, res Resource) error {
	if Can(actor, action, res) {
		return nil
	}
	return apperr.Forbidden("not allowed to %s", action)
}

// IsAdmin сообщает, что участник — администратор с правом на действие.
func IsAdmin(actor Actor, action Action) bool {
	return actor.Role == model.RoleAdmin && Can(actor, action, Resource{})
}
