package handler

import (
	"net/http"

	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/service"
)

func orderFilter(r *http.Request) (model.OrderFilter, error) {
	f := model.OrderFilter{Status: r.URL.Query().Get("status")}

	seller, err := optionalUUID(r, "seller")
	if err != nil {
		return f, err
	}
	owner, err := optionalUUID(r, "storeOwner")
	if err != nil {
		return f, err
	}
	f.SellerID = seller
	f.StoreOwnerID = owner
	return f, nil
}

// ListOrders возвращает завершённые заказы.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := orderFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.OrderHistory{}
	}
	h.respond(w, http.StatusOK, "orders retrieved", orders)
}

// GetOrder возвращает завершённый заказ.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "order retrieved", order)
}

// ListInstallments возвращает планы рассрочки.
func (h *Handler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := orderFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	plans, err := h.service.ListInstallments(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if plans == nil {
		plans = []model.InstallmentPayment{}
	}
	h.respond(w, http.StatusOK, "installment payments retrieved", plans)
}

// GetInstallment возвращает план рассрочки с актуальным статусом.
func (h *Handler) GetInstallment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	plan, err := h.service.GetInstallment(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "installment payment retrieved", plan)
}

// RecordPayment принимает платёж за месяц графика. Используется и администратором,
// и продавцом; различаются только маршруты.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.PaymentInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	plan, err := h.service.RecordPayment(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "payment recorded", plan)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelInstallment отменяет план рассрочки.
func (h *Handler) CancelInstallment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req cancelRequest
	if err := decode(r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	plan, err := h.service.CancelInstallment(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "installment payment cancelled", plan)
}

// CheckOverdue пересчитывает статус плана.
func (h *Handler) CheckOverdue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	plan, err := h.service.CheckOverdue(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "installment status checked", plan)
}
