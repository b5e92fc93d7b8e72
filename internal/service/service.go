// Package service реализует бизнес-логику маркетплейса: черновики заказов, их подтверждение
// и жизненный цикл рассрочки.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/installment"
	"github.com/mmeshcher/marketplace-installments/internal/metrics"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error)
	ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error)
	AssignSellerShop(ctx context.Context, sellerID, shopID uuid.UUID) error
	AssignSellerShopOwner(ctx context.Context, sellerID uuid.UUID, a model.SellerShopOwner) error
	GetSellerAssignments(ctx context.Context, sellerID uuid.UUID) (*model.SellerAssignments, error)
	AllocateAgentProduct(ctx context.Context, agentID, productID uuid.UUID, qty decimal.Decimal) error

	CreateRegion(ctx context.Context, name string) (*model.Region, error)
	CreateDistrict(ctx context.Context, regionID uuid.UUID, name string) (*model.District, error)
	CreateMfy(ctx context.Context, districtID uuid.UUID, name string) (*model.Mfy, error)
	ListRegionTree(ctx context.Context) ([]model.Region, error)

	CreateShop(ctx context.Context, s *model.Shop) error
	GetShop(ctx context.Context, id uuid.UUID) (*model.Shop, error)
	FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Shop, error)
	ListShops(ctx context.Context, ownerID *uuid.UUID) ([]model.Shop, error)
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, shopID *uuid.UUID) ([]model.Product, error)
	AdjustProductStock(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*model.Product, error)

	UpsertInterestRate(ctx context.Context, duration int, rate decimal.Decimal) (*model.InterestRate, error)
	DeactivateInterestRate(ctx context.Context, duration int) error
	ActiveInterestRate(ctx context.Context, duration int) (*model.InterestRate, error)
	ListInterestRates(ctx context.Context) ([]model.InterestRate, error)

	CreateDraft(ctx context.Context, d *model.DraftOrder) error
	GetDraft(ctx context.Context, id uuid.UUID) (*model.DraftOrder, error)
	ListDrafts(ctx context.Context, sellerID *uuid.UUID) ([]model.DraftOrder, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) (*model.DraftOrder, error)
	DeleteDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) error

	ConfirmInstallment(ctx context.Context, d *model.DraftOrder, p *model.InstallmentPayment) error
	ConfirmOrder(ctx context.Context, d *model.DraftOrder, o *model.OrderHistory) error

	GetInstallment(ctx context.Context, id uuid.UUID) (*model.InstallmentPayment, error)
	ListInstallments(ctx context.Context, f model.OrderFilter) ([]model.InstallmentPayment, error)
	UpdateInstallment(ctx context.Context, id uuid.UUID, fn func(p *model.InstallmentPayment) error) (*model.InstallmentPayment, error)
	ListOverdueCandidates(ctx context.Context, before time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error)

	GetOrderHistory(ctx context.Context, id uuid.UUID) (*model.OrderHistory, error)
	ListOrderHistory(ctx context.Context, f model.OrderFilter) ([]model.OrderHistory, error)
}

// Notifier отправляет SMS покупателю.
type Notifier interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, evs ...events.Event) error
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo      Repository
	notifier  Notifier
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithNotifier подключает отправку SMS.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher подключает публикацию событий.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLocation задаёт часовой пояс для сравнения дат без времени.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		logger:   zap.NewNop(),
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	clock := s.now
	s.now = func() time.Time { return clock().In(s.location) }
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// today возвращает начало текущих суток в настроенном часовом поясе.
func (s *Service) today() time.Time {
	return installment.StartOfDay(s.now())
}
