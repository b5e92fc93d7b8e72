// Package model содержит доменные сущности маркетплейса с рассрочкой.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role описывает роль учётной записи.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleShopOwner Role = "shop_owner"
	RoleSeller    Role = "seller"
	RoleAgent     Role = "agent"
)

// IsValid сообщает, является ли роль одной из известных.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleShopOwner, RoleSeller, RoleAgent:
		return true
	}
	return false
}

// Account представляет учётную запись администратора, владельца магазина, продавца или агента.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Role         Role      `json:"role"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone"`
	PasswordHash []byte    `json:"-"`
	Permissions  []string  `json:"permissions,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ServiceArea ограничивает территорию работы продавца.
type ServiceArea struct {
	RegionID   uuid.UUID  `json:"regionId"`
	DistrictID *uuid.UUID `json:"districtId,omitempty"`
	MfyID      *uuid.UUID `json:"mfyId,omitempty"`
}

// SellerShopOwner описывает привязку продавца к владельцу магазинов.
type SellerShopOwner struct {
	ShopOwnerID uuid.UUID   `json:"shopOwnerId"`
	Area        ServiceArea `json:"serviceArea"`
}

// SellerAssignments содержит магазины, закреплённые за продавцом напрямую и через владельцев.
type SellerAssignments struct {
	ShopIDs    []uuid.UUID       `json:"shopIds"`
	ShopOwners []SellerShopOwner `json:"shopOwners"`
}

// Region — верхний уровень территориальной иерархии.
type Region struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Districts []District `json:"districts,omitempty"`
}

// District — район внутри региона.
type District struct {
	ID       uuid.UUID `json:"id"`
	RegionID uuid.UUID `json:"regionId"`
	Name     string    `json:"name"`
	Mfys     []Mfy     `json:"mfys,omitempty"`
}

// Mfy — махалля, наименьшая территориальная единица.
type Mfy struct {
	ID         uuid.UUID `json:"id"`
	DistrictID uuid.UUID `json:"districtId"`
	Name       string    `json:"name"`
}
