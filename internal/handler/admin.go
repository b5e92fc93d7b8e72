package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/service"
)

// CreateAccount создаёт учётную запись.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.AccountInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "account created", account)
}

// ListAccounts возвращает учётные записи, при необходимости с фильтром по роли.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), actor, model.Role(r.URL.Query().Get("role")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "accounts retrieved", accounts)
}

type assignShopRequest struct {
	ShopID uuid.UUID `json:"shopId"`
}

// AssignSellerShop закрепляет магазин за продавцом.
func (h *Handler) AssignSellerShop(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sellerID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req assignShopRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.AssignSellerShop(r.Context(), actor, sellerID, req.ShopID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "shop assigned", nil)
}

// AssignSellerShopOwner закрепляет продавца за владельцем магазинов.
func (h *Handler) AssignSellerShopOwner(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sellerID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req model.SellerShopOwner
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.AssignSellerShopOwner(r.Context(), actor, sellerID, req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "shop owner assigned", nil)
}

type allocateRequest struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// AllocateAgentProduct передаёт агенту часть остатка товара.
func (h *Handler) AllocateAgentProduct(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agentID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req allocateRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.AllocateAgentProduct(r.Context(), actor, agentID, req.ProductID, req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "product allocated", nil)
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreateRegion создаёт регион.
func (h *Handler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req nameRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	region, err := h.service.CreateRegion(r.Context(), actor, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "region created", region)
}

// CreateDistrict создаёт район в регионе.
func (h *Handler) CreateDistrict(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	regionID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req nameRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	district, err := h.service.CreateDistrict(r.Context(), actor, regionID, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "district created", district)
}

// CreateMfy создаёт махаллю в районе.
func (h *Handler) CreateMfy(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	districtID, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req nameRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	mfy, err := h.service.CreateMfy(r.Context(), actor, districtID, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "mfy created", mfy)
}

// RegionTree возвращает дерево регионов.
func (h *Handler) RegionTree(w http.ResponseWriter, r *http.Request) {
	regions, err := h.service.RegionTree(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "regions retrieved", regions)
}

type interestRateRequest struct {
	Duration     int             `json:"duration"`
	InterestRate decimal.Decimal `json:"interestRate"`
}

// UpsertInterestRate задаёт ставку для срока рассрочки.
func (h *Handler) UpsertInterestRate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req interestRateRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	rate, err := h.service.UpsertInterestRate(r.Context(), actor, req.Duration, req.InterestRate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "interest rate saved", rate)
}

// DeactivateInterestRate отключает ставку для срока.
func (h *Handler) DeactivateInterestRate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	duration, err := strconv.Atoi(chi.URLParam(r, "duration"))
	if err != nil {
		h.fail(w, r, apperr.Validation("duration", "duration must be a number"))
		return
	}

	if err := h.service.DeactivateInterestRate(r.Context(), actor, duration); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "interest rate deactivated", nil)
}

// ListInterestRates возвращает все ставки.
func (h *Handler) ListInterestRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListInterestRates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "interest rates retrieved", rates)
}
