package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/validation"
)

// ErrInvalidCredentials возвращается при неверном телефоне или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountInput — данные для создания учётной записи.
type AccountInput struct {
	Role        model.Role `json:"role" validate:"required,oneof=admin shop_owner seller agent"`
	FullName    string     `json:"fullName" validate:"required"`
	Phone       string     `json:"phone" validate:"required,phone"`
	Password    string     `json:"password" validate:"required,min=6"`
	Permissions []string   `json:"permissions"`
}

// Authenticate проверяет телефон и пароль и возвращает учётную запись.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (*model.Account, error) {
	a, err := s.repo.GetAccountByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !a.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return a, nil
}

// CreateAccount создаёт учётную запись. Права задаются только администраторам.
func (s *Service) CreateAccount(ctx context.Context, actor authz.Actor, in AccountInput) (*model.Account, error) {
	if !authz.IsAdmin(actor, authz.ActionAccountManage) {
		return nil, apperr.Forbidden("not allowed to %s", authz.ActionAccountManage)
	}

	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	a := &model.Account{
		Role:         in.Role,
		FullName:     in.FullName,
		Phone:        in.Phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if in.Role == model.RoleAdmin {
		a.Permissions = in.Permissions
	}

	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListAccounts возвращает учётные записи указанной роли.
func (s *Service) ListAccounts(ctx context.Context, actor authz.Actor, role model.Role) ([]model.Account, error) {
	if !authz.IsAdmin(actor, authz.ActionAccountManage) {
		return nil, apperr.Forbidden("not allowed to %s", authz.ActionAccountManage)
	}
	if role != "" && !role.IsValid() {
		return nil, apperr.Validation("role", "unknown role %q", role)
	}
	return s.repo.ListAccounts(ctx, role)
}

func (s *Service) accountWithRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.Account, error) {
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Role != role {
		return nil, apperr.Validation("", "account %s is not a %s", id, role)
	}
	return a, nil
}

// AssignSellerShop закрепляет магазин за продавцом.
func (s *Service) AssignSellerShop(ctx context.Context, actor authz.Actor, sellerID, shopID uuid.UUID) error {
	if !authz.IsAdmin(actor, authz.ActionAccountManage) {
		return apperr.Forbidden("not allowed to %s", authz.ActionAccountManage)
	}
	if _, err := s.accountWithRole(ctx, sellerID, model.RoleSeller); err != nil {
		return err
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return err
	}
	return s.repo.AssignSellerShop(ctx, sellerID, shopID)
}

// AssignSellerShopOwner закрепляет продавца за владельцем магазинов в пределах зоны обслуживания.
func (s *Service) AssignSellerShopOwner(ctx context.Context, actor authz.Actor, sellerID uuid.UUID, in model.SellerShopOwner) error {
	if !authz.IsAdmin(actor, authz.ActionAccountManage) {
		return apperr.Forbidden("not allowed to %s", authz.ActionAccountManage)
	}
	if in.Area.RegionID == uuid.Nil {
		return apperr.Validation("regionId", "regionId is required")
	}
	if in.Area.MfyID != nil && in.Area.DistrictID == nil {
		return apperr.Validation("districtId", "districtId is required when mfyId is set")
	}
	if _, err := s.accountWithRole(ctx, sellerID, model.RoleSeller); err != nil {
		return err
	}
	if _, err := s.accountWithRole(ctx, in.ShopOwnerID, model.RoleShopOwner); err != nil {
		return err
	}
	return s.repo.AssignSellerShopOwner(ctx, sellerID, in)
}

// AllocateAgentProduct переносит остаток товара в запас агента.
// Доступно администратору каталога и владельцу магазина, которому принадлежит товар.
func (s *Service) AllocateAgentProduct(ctx context.Context, actor authz.Actor, agentID, productID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return apperr.Validation("quantity", "quantity must be greater than 0")
	}
	if err := validation.Places("quantity", qty, model.QuantityPlaces); err != nil {
		return err
	}

	if err := s.requireProductOwner(ctx, actor, productID); err != nil {
		return err
	}
	if _, err := s.accountWithRole(ctx, agentID, model.RoleAgent); err != nil {
		return err
	}

	return s.repo.AllocateAgentProduct(ctx, agentID, productID, qty)
}
