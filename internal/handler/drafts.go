package handler

import (
	"net/http"

	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/service"
)

// CreateDraft создаёт черновик заказа и резервирует остатки.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.DraftInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	draft, err := h.service.CreateDraft(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "draft order created", draft)
}

// ListDrafts возвращает черновики текущего продавца.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	drafts, err := h.service.ListDrafts(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []model.DraftOrder{}
	}
	h.respond(w, http.StatusOK, "draft orders retrieved", drafts)
}

// GetDraft возвращает черновик.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
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

	draft, err := h.service.GetDraft(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "draft order retrieved", draft)
}

// UpdateDraft заменяет позиции черновика.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
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

	var in service.DraftUpdateInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	draft, err := h.service.UpdateDraft(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "draft order updated", draft)
}

// DeleteDraft удаляет черновик и возвращает остатки.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeleteDraft(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "draft order deleted", nil)
}

// ConfirmDraft подтверждает черновик: создаёт план рассрочки или завершённый заказ.
func (h *Handler) ConfirmDraft(w http.ResponseWriter, r *http.Request) {
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

	var in service.ConfirmInput
	if err := decode(r, &in, true); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.service.ConfirmDraft(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	message := "order confirmed"
	if res.Installment != nil {
		message = "installment payment created"
	}
	h.respond(w, http.StatusCreated, message, res.Data())
}
