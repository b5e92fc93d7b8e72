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
)

const sweepBatch = 100

// PaymentInput — платёж за месяц графика.
type PaymentInput struct {
	Month         int             `json:"month"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes"`
}

func planResource(p *model.InstallmentPayment) authz.Resource {
	return authz.Resource{SellerID: p.SellerID, StoreOwnerID: p.StoreOwnerID}
}

// scopeFilter ограничивает выборку тем, что участник вправе видеть.
func scopeFilter(actor authz.Actor, action authz.Action, f model.OrderFilter) (model.OrderFilter, error) {
	id := actor.ID
	switch {
	case authz.IsAdmin(actor, action):
		return f, nil
	case actor.Role == model.RoleSeller || actor.Role == model.RoleAgent:
		f.SellerID = &id
	case actor.Role == model.RoleShopOwner:
		f.StoreOwnerID = &id
	default:
		return f, apperr.Forbidden("not allowed to %s", action)
	}
	if err := authz.Require(actor, action, authz.Resource{SellerID: derefID(f.SellerID), StoreOwnerID: derefID(f.StoreOwnerID)}); err != nil {
		return f, err
	}
	return f, nil
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// RecordPayment регистрирует платёж за месяц. Один и тот же порядок проверок действует
// для администратора и продавца: сумма обязана совпадать с запланированной.
func (s *Service) RecordPayment(ctx context.Context, actor authz.Actor, id uuid.UUID, in PaymentInput) (*model.InstallmentPayment, error) {
	if in.Month <= 0 {
		return nil, apperr.Validation("month", "month must be greater than 0")
	}
	if in.Amount.IsNegative() {
		return nil, apperr.Validation("amount", "amount must not be negative")
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method != "" && method != string(model.PaymentMethodCash) && method != string(model.PaymentMethodCard) {
		return nil, apperr.Validation("paymentMethod", "paymentMethod must be one of cash, card")
	}

	plan, err := s.repo.UpdateInstallment(ctx, id, func(p *model.InstallmentPayment) error {
		if err := authz.Require(actor, authz.ActionInstallmentPay, planResource(p)); err != nil {
			return err
		}
		return installment.RecordPayment(p, installment.Payment{
			Month:         in.Month,
			Amount:        in.Amount,
			PaidBy:        actor.ID,
			PaymentMethod: method,
			Notes:         strings.TrimSpace(in.Notes),
		}, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayment()
	s.logger.Info("installment payment recorded",
		zap.String("installment_id", plan.ID.String()),
		zap.Int("month", in.Month),
		zap.String("status", string(plan.Status)),
	)

	evs := []events.Event{s.planEvent(events.TypeInstallmentPayment, plan)}
	if plan.Status == model.InstallmentStatusCompleted {
		evs = append(evs, s.planEvent(events.TypeInstallmentCompleted, plan))
	}
	s.publish(ctx, evs...)
	s.sms(ctx, plan.Customer.PrimaryPhone, paymentReceiptText(plan, in.Month))

	return plan, nil
}

// CancelInstallment отменяет план из active или overdue. Остатки возвращаются
// в пул, из которого были списаны, в той же транзакции.
func (s *Service) CancelInstallment(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (*model.InstallmentPayment, error) {
	plan, err := s.repo.UpdateInstallment(ctx, id, func(p *model.InstallmentPayment) error {
		if err := authz.Require(actor, authz.ActionInstallmentCancel, planResource(p)); err != nil {
			return err
		}
		return installment.Cancel(p, actor.ID, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCancellation()
	s.logger.Info("installment cancelled",
		zap.String("installment_id", plan.ID.String()),
		zap.String("cancelled_by", actor.ID.String()),
	)
	s.publish(ctx, s.planEvent(events.TypeInstallmentCancelled, plan))

	return plan, nil
}

// GetInstallment возвращает план. Если статус устарел, он пересчитывается и сохраняется.
func (s *Service) GetInstallment(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.InstallmentPayment, error) {
	plan, err := s.repo.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionInstallmentView, planResource(plan)); err != nil {
		return nil, err
	}

	if !installment.CheckOverdue(plan, s.now()) {
		return plan, nil
	}
	plan, _, err = s.refreshStatus(ctx, id, s.now())
	return plan, err
}

// CheckOverdue пересчитывает статус плана по запросу.
func (s *Service) CheckOverdue(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.InstallmentPayment, error) {
	plan, err := s.repo.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionInstallmentView, planResource(plan)); err != nil {
		return nil, err
	}
	plan, _, err = s.refreshStatus(ctx, id, s.now())
	return plan, err
}

// refreshStatus пересчитывает статус под блокировкой и сообщает, изменился ли статус плана.
func (s *Service) refreshStatus(ctx context.Context, id uuid.UUID, now time.Time) (*model.InstallmentPayment, bool, error) {
	var before model.InstallmentStatus
	plan, err := s.repo.UpdateInstallment(ctx, id, func(p *model.InstallmentPayment) error {
		before = p.Status
		installment.CheckOverdue(p, now)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if before != plan.Status {
		typ := events.TypeInstallmentOverdue
		if plan.Status == model.InstallmentStatusCompleted {
			typ = events.TypeInstallmentCompleted
		}
		s.publish(ctx, s.planEvent(typ, plan))
	}
	return plan, before != plan.Status, nil
}

// ListInstallments возвращает планы в пределах видимости участника.
func (s *Service) ListInstallments(ctx context.Context, actor authz.Actor, f model.OrderFilter) ([]model.InstallmentPayment, error) {
	f, err := scopeFilter(actor, authz.ActionInstallmentView, f)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInstallments(ctx, f)
}

// SweepOverdue пересчитывает статусы планов, у которых день срока неоплаченного
// платежа уже прошёл, и возвращает число изменённых планов. Кандидаты читаются
// пачками по id, пока выборка не опустеет.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	today := s.today()
	updated := 0

	var (
		errs  []error
		after uuid.UUID
	)
	for {
		ids, err := s.repo.ListOverdueCandidates(ctx, today, after, sweepBatch)
		if err != nil {
			errs = append(errs, err)
			break
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			_, changed, err := s.refreshStatus(ctx, id, now)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if changed {
				updated++
			}
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if len(ids) < sweepBatch {
			break
		}
		after = ids[len(ids)-1]
	}

	err := errors.Join(errs...)
	s.metrics.ObserveSweep(updated, err)
	return updated, err
}
