package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/installment"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/validation"
)

const dateLayout = "2006-01-02"

// CustomerInput — данные покупателя для оформления рассрочки.
type CustomerInput struct {
	FullName       string `json:"fullName" validate:"required"`
	BirthDate      string `json:"birthDate" validate:"required"`
	PassportSeries string `json:"passportSeries" validate:"required,passport"`
	PrimaryPhone   string `json:"primaryPhone" validate:"required,phone"`
	SecondaryPhone string `json:"secondaryPhone" validate:"omitempty,phone"`
	Image          string `json:"image"`
}

// ConfirmInput — параметры подтверждения черновика.
type ConfirmInput struct {
	PaymentMethod       string         `json:"paymentMethod"`
	Customer            *CustomerInput `json:"customer"`
	InstallmentDuration *int           `json:"installmentDuration"`
	StartDate           string         `json:"startDate"`
}

// ConfirmResult содержит созданную запись: план рассрочки или завершённый заказ.
type ConfirmResult struct {
	Installment *model.InstallmentPayment
	Order       *model.OrderHistory
}

// Data возвращает созданную запись.
func (r *ConfirmResult) Data() any {
	if r.Installment != nil {
		return r.Installment
	}
	return r.Order
}

// effectiveMethod определяет способ оплаты. Если способ не указан, но переданы
// покупатель и срок, подтверждение оформляется как рассрочка.
func effectiveMethod(in ConfirmInput, draft model.PaymentMethod) (model.PaymentMethod, error) {
	if strings.TrimSpace(in.PaymentMethod) == "" && in.Customer != nil && in.InstallmentDuration != nil {
		return model.PaymentMethodInstallment, nil
	}
	fallback := draft
	if fallback == "" {
		fallback = model.PaymentMethodCash
	}
	return parseMethod(in.PaymentMethod, fallback)
}

func parseDate(field, raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, apperr.Validation(field, "%s must be a date in YYYY-MM-DD format", field)
}

func (s *Service) buildCustomer(in *CustomerInput) (model.Customer, error) {
	if in == nil {
		return model.Customer{}, apperr.Validation("customer", "customer is required for installment")
	}

	c := *in
	c.FullName = strings.TrimSpace(c.FullName)
	c.PassportSeries = strings.ToUpper(strings.TrimSpace(c.PassportSeries))
	c.PrimaryPhone = strings.TrimSpace(c.PrimaryPhone)
	c.SecondaryPhone = strings.TrimSpace(c.SecondaryPhone)
	if err := validation.Struct(c); err != nil {
		return model.Customer{}, err
	}

	birth, err := parseDate("birthDate", c.BirthDate, s.location)
	if err != nil {
		return model.Customer{}, err
	}
	if !birth.Before(s.today()) {
		return model.Customer{}, apperr.Validation("birthDate", "birthDate must be in the past")
	}

	return model.Customer{
		FullName:       c.FullName,
		BirthDate:      birth,
		PassportSeries: c.PassportSeries,
		PrimaryPhone:   c.PrimaryPhone,
		SecondaryPhone: c.SecondaryPhone,
		Image:          strings.TrimSpace(c.Image),
	}, nil
}

func (s *Service) activeRate(ctx context.Context, duration int) (decimal.Decimal, error) {
	rate, err := s.repo.ActiveInterestRate(ctx, duration)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return rate.Rate, nil
}

// ConfirmDraft превращает черновик в план рассрочки или завершённый заказ.
// Все проверки выполняются до записи; при ошибке черновик остаётся нетронутым.
// Остатки не трогаются: они списаны при создании черновика.
func (s *Service) ConfirmDraft(ctx context.Context, actor authz.Actor, id uuid.UUID, in ConfirmInput) (*ConfirmResult, error) {
	started := s.now()

	d, err := s.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionDraftConfirm, authz.Resource{SellerID: d.SellerID}); err != nil {
		return nil, err
	}

	method, err := effectiveMethod(in, d.PaymentMethod)
	if err != nil {
		return nil, err
	}

	sellerCtx := uuid.Nil
	if d.SellerRole == model.RoleSeller || d.SellerRole == model.RoleAgent {
		sellerCtx = d.SellerID
	}
	shop, err := s.resolveStoreOwner(ctx, d.ShopID, sellerCtx)
	if err != nil {
		return nil, err
	}
	ownerID := *shop.OwnerID

	var res *ConfirmResult
	if method == model.PaymentMethodInstallment {
		res, err = s.confirmInstallment(ctx, d, ownerID, in)
	} else {
		res, err = s.confirmOrder(ctx, d, ownerID, method)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveConfirmation(string(method), s.now().Sub(started))
	return res, nil
}

func (s *Service) confirmInstallment(ctx context.Context, d *model.DraftOrder, ownerID uuid.UUID, in ConfirmInput) (*ConfirmResult, error) {
	customer, err := s.buildCustomer(in.Customer)
	if err != nil {
		return nil, err
	}

	if in.InstallmentDuration == nil {
		return nil, apperr.Validation("installmentDuration", "installmentDuration is required for installment")
	}
	duration := *in.InstallmentDuration
	if !installment.ValidDuration(duration) {
		return nil, apperr.Validation("installmentDuration", "installmentDuration must be one of %v", installment.Durations)
	}

	if strings.TrimSpace(in.StartDate) == "" {
		return nil, apperr.Validation("startDate", "startDate is required for installment")
	}
	start, err := parseDate("startDate", in.StartDate, s.location)
	if err != nil {
		return nil, err
	}
	if start.Before(s.today()) {
		return nil, apperr.Validation("startDate", "startDate must not be in the past")
	}

	rate, err := s.activeRate(ctx, duration)
	if err != nil {
		return nil, err
	}

	plan := &model.InstallmentPayment{
		OrderID:      d.OrderID,
		SellerID:     d.SellerID,
		SellerRole:   d.SellerRole,
		ShopID:       d.ShopID,
		StoreOwnerID: ownerID,
		Products:     d.Products,
		TotalSum:     d.TotalSum,
		Customer:     customer,
		Installment: model.InstallmentTerms{
			Duration:     duration,
			StartDate:    start,
			InterestRate: rate,
		},
		Status: model.InstallmentStatusActive,
	}
	installment.GenerateSchedule(plan, s.now())
	if err := installment.ValidateSchedule(plan); err != nil {
		return nil, err
	}

	if err := s.repo.ConfirmInstallment(ctx, d, plan); err != nil {
		return nil, err
	}

	s.logger.Info("installment created",
		zap.String("installment_id", plan.ID.String()),
		zap.Int64("order_id", plan.OrderID),
		zap.Int("duration", duration),
		zap.String("total_with_interest", plan.Installment.TotalWithInterest.String()),
	)
	s.publish(ctx, s.planEvent(events.TypeInstallmentCreated, plan))
	s.sms(ctx, customer.PrimaryPhone, planCreatedText(plan))

	return &ConfirmResult{Installment: plan}, nil
}

func (s *Service) confirmOrder(ctx context.Context, d *model.DraftOrder, ownerID uuid.UUID, method model.PaymentMethod) (*ConfirmResult, error) {
	now := s.now()
	o := &model.OrderHistory{
		OrderID:       d.OrderID,
		SellerID:      d.SellerID,
		StoreOwnerID:  ownerID,
		Products:      d.Products,
		TotalSum:      d.TotalSum,
		Status:        model.OrderStatusCompleted,
		PaymentMethod: method,
		CompletedAt:   &now,
	}

	if err := s.repo.ConfirmOrder(ctx, d, o); err != nil {
		return nil, err
	}

	s.logger.Info("order completed",
		zap.String("order_history_id", o.ID.String()),
		zap.Int64("order_id", o.OrderID),
		zap.String("payment_method", string(method)),
	)
	s.publish(ctx, events.Event{
		Type:       events.TypeOrderCompleted,
		Key:        ownerID.String(),
		OccurredAt: now,
		Payload:    o,
	})

	return &ConfirmResult{Order: o}, nil
}
