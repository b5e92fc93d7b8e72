package installment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// AddMonths сдвигает дату на n календарных месяцев.
// Переполнение дня (31 января + 1 месяц) переносится вперёд, как в time.AddDate.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// GenerateSchedule заполняет даты и график платежей нового плана.
// Дата начала берётся из плана, now используется только если она не задана.
// Условия пересчитываются из TotalSum и зафиксированной ставки, последний платёж
// поглощает остаток округления, так что Σ payments = totalWithInterest.
func GenerateSchedule(plan *model.InstallmentPayment, now time.Time) {
	start := plan.Installment.StartDate
	if start.IsZero() {
		start = now
	}

	plan.TotalSum = model.RoundMoney(plan.TotalSum)
	terms := ComputeTerms(plan.TotalSum, plan.Installment.InterestRate, plan.Installment.Duration)
	terms.StartDate = start
	terms.EndDate = AddMonths(start, terms.Duration)
	plan.Installment = terms

	payments := make([]model.ScheduledPayment, 0, terms.Duration)
	scheduled := decimal.Zero
	for month := 1; month <= terms.Duration; month++ {
		payments = append(payments, model.ScheduledPayment{
			Month:   month,
			Amount:  terms.MonthlyPayment,
			DueDate: AddMonths(start, month),
			Status:  model.PaymentStatusPending,
		})
		scheduled = scheduled.Add(terms.MonthlyPayment)
	}

	if n := len(payments); n > 0 {
		last := &payments[n-1]
		last.Amount = last.Amount.Add(terms.TotalWithInterest.Sub(scheduled))
	}

	plan.Payments = payments
	if plan.Status == "" {
		plan.Status = model.InstallmentStatusActive
	}
}

// ValidateSchedule отклоняет график, в котором есть платёж не больше нуля.
// Так бывает, когда сумма слишком мала для выбранного срока: ceil(total/duration)
// месяцев съедают всю сумму раньше последнего платежа.
func ValidateSchedule(plan *model.InstallmentPayment) error {
	for _, p := range plan.Payments {
		if !p.Amount.IsPositive() {
			return apperr.Validation("installmentDuration",
				"total %s is too small for %d monthly payments", plan.Installment.TotalWithInterest, plan.Installment.Duration)
		}
	}
	return nil
}

// ScheduleTotal возвращает сумму всех строк графика.
func ScheduleTotal(payments []model.ScheduledPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
