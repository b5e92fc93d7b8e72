package installment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// Payment описывает поступивший платёж по месяцу графика.
type Payment struct {
	Month         int
	Amount        decimal.Decimal
	PaidBy        uuid.UUID
	PaymentMethod string
	Notes         string
}

// RecordPayment отмечает месяц графика оплаченным и пересчитывает статус плана.
// Сумма должна совпадать с запланированной.
func RecordPayment(plan *model.InstallmentPayment, p Payment, now time.Time) error {
	if plan.Status.IsTerminal() {
		return apperr.InvalidState("installment is %s, payments are not accepted", plan.Status)
	}

	entry, ok := plan.Payment(p.Month)
	if !ok {
		return apperr.Validation("month", "payment for month %d not found", p.Month)
	}
	if entry.Status == model.PaymentStatusPaid {
		return apperr.InvalidState("payment for month %d is already paid", p.Month)
	}
	if !p.Amount.Equal(entry.Amount) {
		return apperr.Validation("amount", "amount %s does not match scheduled amount %s", p.Amount, entry.Amount)
	}

	method := strings.TrimSpace(p.PaymentMethod)
	if method == "" {
		method = string(model.PaymentMethodCash)
	}

	paidAt := now
	paidBy := p.PaidBy
	entry.Status = model.PaymentStatusPaid
	entry.PaidAt = &paidAt
	entry.PaidBy = &paidBy
	entry.PaymentMethod = method
	entry.Notes = p.Notes

	CheckOverdue(plan, now)
	return nil
}

// StartOfDay возвращает полночь дня t в часовом поясе t.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CheckOverdue пересчитывает производный статус плана и возвращает признак изменения.
// Неоплаченная строка становится overdue, когда день её срока закончился в часовом
// поясе now; в сам день срока платёж ещё не просрочен. План становится overdue,
// если такие строки есть, иначе completed, если оплачено всё. Завершённые планы не меняются.
// Повторный вызов без изменения данных ничего не меняет.
func CheckOverdue(plan *model.InstallmentPayment, now time.Time) bool {
	if plan.Status.IsTerminal() {
		return false
	}
	today := StartOfDay(now)

	changed := false
	hasOverdue := false
	allPaid := len(plan.Payments) > 0

	for i := range plan.Payments {
		p := &plan.Payments[i]
		if p.Status == model.PaymentStatusPaid {
			continue
		}
		allPaid = false
		if StartOfDay(p.DueDate.In(now.Location())).Before(today) {
			hasOverdue = true
			if p.Status != model.PaymentStatusOverdue {
				p.Status = model.PaymentStatusOverdue
				changed = true
			}
		}
	}

	switch {
	case hasOverdue:
		if plan.Status != model.InstallmentStatusOverdue {
			plan.Status = model.InstallmentStatusOverdue
			changed = true
		}
	case allPaid:
		completedAt := now
		plan.Status = model.InstallmentStatusCompleted
		plan.CompletedAt = &completedAt
		changed = true
	}

	return changed
}

// Cancel переводит план в cancelled. Допустимо только из active и overdue.
func Cancel(plan *model.InstallmentPayment, by uuid.UUID, reason string, now time.Time) error {
	switch plan.Status {
	case model.InstallmentStatusActive, model.InstallmentStatusOverdue:
	default:
		return apperr.InvalidState("installment is %s and cannot be cancelled", plan.Status)
	}

	cancelledAt := now
	cancelledBy := by
	plan.Status = model.InstallmentStatusCancelled
	plan.CancelledAt = &cancelledAt
	plan.CancelledBy = &cancelledBy
	plan.CancelReason = strings.TrimSpace(reason)
	return nil
}
