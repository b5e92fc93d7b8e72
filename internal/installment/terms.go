// Package installment реализует расчёт условий рассрочки, генерацию графика платежей
// и переходы состояний плана.
package installment

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// Durations — допустимые сроки рассрочки в месяцах.
var Durations = []int{2, 3, 4, 5, 6, 10, 12}

var hundred = decimal.NewFromInt(100)

// ValidDuration сообщает, входит ли срок в допустимый набор.
func ValidDuration(months int) bool {
	return slices.Contains(Durations, months)
}

// ComputeTerms рассчитывает наценку и ежемесячный платёж:
// interestAmount = round(totalSum × rate / 100), monthlyPayment = ceil(totalWithInterest / duration).
// Даты не заполняются.
func ComputeTerms(totalSum, rate decimal.Decimal, duration int) model.InstallmentTerms {
	totalSum = model.RoundMoney(totalSum)
	interest := decimal.Zero
	if rate.IsPositive() {
		interest = totalSum.Mul(rate).Div(hundred).Round(0)
	}
	total := totalSum.Add(interest)

	monthly := decimal.Zero
	if duration > 0 {
		monthly = total.Div(decimal.NewFromInt(int64(duration))).Ceil()
	}

	return model.InstallmentTerms{
		Duration:          duration,
		MonthlyPayment:    monthly,
		InterestRate:      rate,
		InterestAmount:    interest,
		TotalWithInterest: total,
	}
}
