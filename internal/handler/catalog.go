package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/service"
)

// CreateShop создаёт магазин.
func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.ShopInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	shop, err := h.service.CreateShop(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "shop created", shop)
}

// ListShops возвращает магазины, доступные участнику.
func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	shops, err := h.service.ListShops(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "shops retrieved", shops)
}

// CreateCategory создаёт категорию каталога.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.CategoryInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	category, err := h.service.CreateCategory(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "category created", category)
}

// ListCategories возвращает категории.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "categories retrieved", categories)
}

// CreateProduct добавляет товар в магазин.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.ProductInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "product created", product)
}

// ListProducts возвращает товары, при необходимости одного магазина.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shopID, err := optionalUUID(r, "shop_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	products, err := h.service.ListProducts(r.Context(), shopID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "products retrieved", products)
}

type stockRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// AdjustStock изменяет остаток товара на delta.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
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

	var req stockRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	product, err := h.service.AdjustStock(r.Context(), actor, id, req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "stock updated", product)
}
