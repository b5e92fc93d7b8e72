// Package metrics содержит Prometheus-метрики жизненного цикла заказов и рассрочек.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счётчики подтверждений, платежей и фоновой проверки просрочек.
// Нулевой указатель допустим: все методы становятся пустыми.
type Metrics struct {
	confirmations   *prometheus.CounterVec
	confirmDuration prometheus.Histogram
	payments        prometheus.Counter
	cancellations   prometheus.Counter
	sweepRuns       *prometheus.CounterVec
	overdueMarked   prometheus.Counter
}

// New регистрирует метрики в reg. При nil reg возвращает nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_draft_confirmations_total",
			Help: "Подтверждённые черновики по способу оплаты.",
		}, []string{"payment_method"}),
		confirmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketplace_draft_confirmation_duration_seconds",
			Help:    "Время подтверждения черновика.",
			Buckets: prometheus.DefBuckets,
		}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_installment_payments_total",
			Help: "Зарегистрированные ежемесячные платежи.",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_installment_cancellations_total",
			Help: "Отменённые планы рассрочки.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_overdue_sweep_runs_total",
			Help: "Запуски фоновой проверки просрочек.",
		}, []string{"result"}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_overdue_plans_updated_total",
			Help: "Планы, статус которых изменила проверка просрочек.",
		}),
	}
	reg.MustRegister(m.confirmations, m.confirmDuration, m.payments, m.cancellations, m.sweepRuns, m.overdueMarked)
	return m
}

// ObserveConfirmation учитывает подтверждение черновика.
func (m *Metrics) ObserveConfirmation(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(method).Inc()
	m.confirmDuration.Observe(d.Seconds())
}

// IncPayment учитывает зарегистрированный платёж.
func (m *Metrics) IncPayment() {
	if m == nil {
		return
	}
	m.payments.Inc()
}

// IncCancellation учитывает отмену плана.
func (m *Metrics) IncCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

// ObserveSweep учитывает запуск проверки просрочек и число изменённых планов.
func (m *Metrics) ObserveSweep(updated int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.overdueMarked.Add(float64(updated))
}
