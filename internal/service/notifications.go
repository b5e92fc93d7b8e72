package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

const notifyTimeout = 5 * time.Second

// publish отправляет события после фиксации транзакции. Ошибка только логируется.
func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if s.publisher == nil || len(evs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.logger.Warn("publish events", zap.String("type", evs[0].Type), zap.Error(err))
	}
}

// sms отправляет сообщение покупателю. Ошибка только логируется.
func (s *Service) sms(ctx context.Context, phone, text string) {
	if s.notifier == nil || phone == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.SendSMS(ctx, phone, text); err != nil {
		s.logger.Warn("send sms", zap.String("phone", phone), zap.Error(err))
	}
}

func (s *Service) planEvent(typ string, p *model.InstallmentPayment) events.Event {
	return events.Event{
		Type:       typ,
		Key:        p.StoreOwnerID.String(),
		OccurredAt: s.now(),
		Payload: map[string]any{
			"installmentId": p.ID,
			"orderId":       p.OrderID,
			"seller":        p.SellerID,
			"storeOwner":    p.StoreOwnerID,
			"status":        p.Status,
			"totalSum":      p.TotalSum,
		},
	}
}

func planCreatedText(p *model.InstallmentPayment) string {
	t := p.Installment
	return fmt.Sprintf("Заказ №%d оформлен в рассрочку на %d мес. Ежемесячный платёж %s сум, первый платёж до %s. Итого %s сум.",
		p.OrderID, t.Duration, t.MonthlyPayment.StringFixed(0), p.Payments[0].DueDate.Format("02.01.2006"), t.TotalWithInterest.StringFixed(0))
}

func paymentReceiptText(p *model.InstallmentPayment, month int) string {
	entry, _ := p.Payment(month)
	text := fmt.Sprintf("Заказ №%d: платёж за %d-й месяц на сумму %s сум принят.", p.OrderID, month, entry.Amount.StringFixed(0))
	if p.Status == model.InstallmentStatusCompleted {
		text += " Рассрочка полностью погашена."
	}
	return text
}
