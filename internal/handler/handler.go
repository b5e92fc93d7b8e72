// Package handler содержит HTTP-обработчики API маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/middleware"
	"github.com/mmeshcher/marketplace-installments/internal/model"
	"github.com/mmeshcher/marketplace-installments/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	Authenticate(ctx context.Context, phone, password string) (*model.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	CreateAccount(ctx context.Context, actor authz.Actor, in service.AccountInput) (*model.Account, error)
	ListAccounts(ctx context.Context, actor authz.Actor, role model.Role) ([]model.Account, error)
	AssignSellerShop(ctx context.Context, actor authz.Actor, sellerID, shopID uuid.UUID) error
	AssignSellerShopOwner(ctx context.Context, actor authz.Actor, sellerID uuid.UUID, in model.SellerShopOwner) error
	AllocateAgentProduct(ctx context.Context, actor authz.Actor, agentID, productID uuid.UUID, qty decimal.Decimal) error

	CreateRegion(ctx context.Context, actor authz.Actor, name string) (*model.Region, error)
	CreateDistrict(ctx context.Context, actor authz.Actor, regionID uuid.UUID, name string) (*model.District, error)
	CreateMfy(ctx context.Context, actor authz.Actor, districtID uuid.UUID, name string) (*model.Mfy, error)
	RegionTree(ctx context.Context) ([]model.Region, error)

	CreateShop(ctx context.Context, actor authz.Actor, in service.ShopInput) (*model.Shop, error)
	ListShops(ctx context.Context, actor authz.Actor) ([]model.Shop, error)
	CreateCategory(ctx context.Context, actor authz.Actor, in service.CategoryInput) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateProduct(ctx context.Context, actor authz.Actor, in service.ProductInput) (*model.Product, error)
	ListProducts(ctx context.Context, shopID *uuid.UUID) ([]model.Product, error)
	AdjustStock(ctx context.Context, actor authz.Actor, productID uuid.UUID, delta decimal.Decimal) (*model.Product, error)

	UpsertInterestRate(ctx context.Context, actor authz.Actor, duration int, rate decimal.Decimal) (*model.InterestRate, error)
	DeactivateInterestRate(ctx context.Context, actor authz.Actor, duration int) error
	ListInterestRates(ctx context.Context) ([]model.InterestRate, error)

	CreateDraft(ctx context.Context, actor authz.Actor, in service.DraftInput) (*model.DraftOrder, error)
	GetDraft(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.DraftOrder, error)
	ListDrafts(ctx context.Context, actor authz.Actor) ([]model.DraftOrder, error)
	UpdateDraft(ctx context.Context, actor authz.Actor, id uuid.UUID, in service.DraftUpdateInput) (*model.DraftOrder, error)
	DeleteDraft(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	ConfirmDraft(ctx context.Context, actor authz.Actor, id uuid.UUID, in service.ConfirmInput) (*service.ConfirmResult, error)

	ListOrders(ctx context.Context, actor authz.Actor, f model.OrderFilter) ([]model.OrderHistory, error)
	GetOrder(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.OrderHistory, error)

	ListInstallments(ctx context.Context, actor authz.Actor, f model.OrderFilter) ([]model.InstallmentPayment, error)
	GetInstallment(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.InstallmentPayment, error)
	RecordPayment(ctx context.Context, actor authz.Actor, id uuid.UUID, in service.PaymentInput) (*model.InstallmentPayment, error)
	CancelInstallment(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (*model.InstallmentPayment, error)
	CheckOverdue(ctx context.Context, actor authz.Actor, id uuid.UUID) (*model.InstallmentPayment, error)
}

// Handler реализует HTTP-обработчики API маркетплейса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	loginLimiter   *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, loginLimiter *middleware.RateLimiter) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		loginLimiter:   loginLimiter,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data}); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := envelope{Message: apperr.PublicMessage(err)}
	status := apperr.HTTPStatus(err)

	var ae *apperr.Error
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		resp.Message = err.Error()
	case errors.As(err, &ae):
		resp.Field = ae.Field
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// decode читает JSON-тело запроса. Пустое тело допустимо, если allowEmpty.
func decode(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperr.Validation("", "invalid request body")
}

func actorFrom(r *http.Request) (authz.Actor, error) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		return authz.Actor{}, apperr.Forbidden("authentication required")
	}
	return actor, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation(name, "%s must be a valid id", name)
	}
	return id, nil
}

func optionalUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation(name, "%s must be a valid id", name)
	}
	return &id, nil
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Account   *model.Account `json:"account"`
}

// Login проверяет телефон и пароль и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Phone == "" || req.Password == "" {
		h.fail(w, r, apperr.Validation("phone", "phone and password are required"))
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, expiresAt, err := h.authMiddleware.IssueToken(account)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, "login successful", loginResponse{Token: token, ExpiresAt: expiresAt, Account: account})
}

// Me возвращает учётную запись текущего участника.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "account retrieved", account)
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(envelope{Message: "database unavailable"})
		return
	}
	h.respond(w, http.StatusOK, "ok", nil)
}

func (h *Handler) respondStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Message: http.StatusText(status)})
}
