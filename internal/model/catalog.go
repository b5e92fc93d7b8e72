package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shop — магазин. Владелец может отсутствовать у магазинов, созданных администратором.
type Shop struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   *uuid.UUID `json:"ownerId,omitempty"`
	Name      string     `json:"name"`
	RegionID  *uuid.UUID `json:"regionId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Category — узел иерархического каталога.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	ParentID  *uuid.UUID `json:"parentId,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Product — товар магазина с остатком на складе.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	ShopID     uuid.UUID       `json:"shopId"`
	CategoryID *uuid.UUID      `json:"categoryId,omitempty"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Unit       string          `json:"unit"`
	UnitSize   decimal.Decimal `json:"unitSize"`
	Quantity   decimal.Decimal `json:"quantity"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// InterestRate задаёт процент наценки для срока рассрочки.
type InterestRate struct {
	ID        uuid.UUID       `json:"id"`
	Duration  int             `json:"duration"`
	Rate      decimal.Decimal `json:"interestRate"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
