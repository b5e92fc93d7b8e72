package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentStatus описывает состояние плана рассрочки.
type InstallmentStatus string

const (
	InstallmentStatusActive    InstallmentStatus = "active"
	InstallmentStatusCompleted InstallmentStatus = "completed"
	InstallmentStatusOverdue   InstallmentStatus = "overdue"
	InstallmentStatusCancelled InstallmentStatus = "cancelled"
)

// IsTerminal сообщает, что план больше не принимает изменений.
func (s InstallmentStatus) IsTerminal() bool {
	return s == InstallmentStatusCompleted || s == InstallmentStatusCancelled
}

// PaymentStatus описывает состояние отдельного ежемесячного платежа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Customer содержит паспортные и контактные данные покупателя.
type Customer struct {
	FullName       string    `json:"fullName"`
	BirthDate      time.Time `json:"birthDate"`
	PassportSeries string    `json:"passportSeries"`
	PrimaryPhone   string    `json:"primaryPhone"`
	SecondaryPhone string    `json:"secondaryPhone,omitempty"`
	Image          string    `json:"image,omitempty"`
}

// InstallmentTerms — условия рассрочки, зафиксированные при создании плана.
type InstallmentTerms struct {
	Duration          int             `json:"duration"`
	StartDate         time.Time       `json:"startDate"`
	EndDate           time.Time       `json:"endDate"`
	MonthlyPayment    decimal.Decimal `json:"monthlyPayment"`
	InterestRate      decimal.Decimal `json:"interestRate"`
	InterestAmount    decimal.Decimal `json:"interestAmount"`
	TotalWithInterest decimal.Decimal `json:"totalWithInterest"`
}

// ScheduledPayment — строка графика платежей.
type ScheduledPayment struct {
	Month         int             `json:"month"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Status        PaymentStatus   `json:"status"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	PaidBy        *uuid.UUID      `json:"paidBy,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// InstallmentPayment — план рассрочки по подтверждённому заказу.
type InstallmentPayment struct {
	ID           uuid.UUID          `json:"id"`
	OrderID      int64              `json:"orderId"`
	SellerID     uuid.UUID          `json:"seller"`
	SellerRole   Role               `json:"sellerRole"`
	ShopID       uuid.UUID          `json:"shopId"`
	StoreOwnerID uuid.UUID          `json:"storeOwner"`
	Products     []LineItem         `json:"products"`
	TotalSum     decimal.Decimal    `json:"totalSum"`
	Customer     Customer           `json:"customer"`
	Installment  InstallmentTerms   `json:"installment"`
	Status       InstallmentStatus  `json:"status"`
	Payments     []ScheduledPayment `json:"payments"`
	CancelledAt  *time.Time         `json:"cancelledAt,omitempty"`
	CancelledBy  *uuid.UUID         `json:"cancelledBy,omitempty"`
	CancelReason string             `json:"cancelReason,omitempty"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Payment возвращает строку графика за указанный месяц.
func (p *InstallmentPayment) Payment(month int) (*ScheduledPayment, bool) {
	for i := range p.Payments {
		if p.Payments[i].Month == month {
			return &p.Payments[i], true
		}
	}
	return nil, false
}
