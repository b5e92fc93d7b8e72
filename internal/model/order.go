package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodInstallment PaymentMethod = "installment"
)

// IsValid сообщает, поддерживается ли способ оплаты.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodInstallment:
		return true
	}
	return false
}

// LineItem — позиция заказа, снимок товара на момент оформления.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Unit      string          `json:"unit,omitempty"`
	UnitSize  decimal.Decimal `json:"unitSize"`
}

// Число знаков после запятой в денежных и количественных колонках.
const (
	MoneyPlaces    int32 = 2
	QuantityPlaces int32 = 3
)

// RoundMoney округляет сумму до точности хранения.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// LineTotal возвращает price×quantity, округлённое до точности хранения.
func (it LineItem) LineTotal() decimal.Decimal {
	return RoundMoney(it.Price.Mul(it.Quantity))
}

// SumLineItems возвращает Σ price×quantity по округлённым суммам позиций.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// DraftOrder — черновик заказа продавца до подтверждения.
// ShopID и StoreOwnerID заполняются однозначно при создании.
type DraftOrder struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       int64           `json:"orderId"`
	SellerID      uuid.UUID       `json:"seller"`
	SellerRole    Role            `json:"sellerRole"`
	ShopID        uuid.UUID       `json:"shopId"`
	StoreOwnerID  uuid.UUID       `json:"storeOwner"`
	Products      []LineItem      `json:"products"`
	TotalSum      decimal.Decimal `json:"totalSum"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// OrderStatus описывает статус завершённого заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderHistory — неизменяемая запись о заказе, оплаченном наличными или картой.
type OrderHistory struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       int64           `json:"orderId"`
	SellerID      uuid.UUID       `json:"seller"`
	StoreOwnerID  uuid.UUID       `json:"storeOwner"`
	Products      []LineItem      `json:"products"`
	TotalSum      decimal.Decimal `json:"totalSum"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	AcceptedAt    *time.Time      `json:"acceptedAt,omitempty"`
	AcceptedBy    *uuid.UUID      `json:"acceptedBy,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	CancelledBy   *uuid.UUID      `json:"cancelledBy,omitempty"`
	CancelReason  string          `json:"cancelReason,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// OrderFilter ограничивает выборку заказов и рассрочек.
type OrderFilter struct {
	SellerID     *uuid.UUID
	StoreOwnerID *uuid.UUID
	Status       string
}
