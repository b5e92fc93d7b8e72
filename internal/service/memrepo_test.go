package service

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// memRepo — хранилище в памяти. Методы, не нужные тестам, не реализованы
// и паникуют через встроенный nil-интерфейс.
type memRepo struct {
	Repository

	mu          sync.Mutex
	accounts    map[uuid.UUID]*model.Account
	shops       []*model.Shop
	products    map[uuid.UUID]*model.Product
	agentStock  map[[2]uuid.UUID]decimal.Decimal
	assignments map[uuid.UUID]*model.SellerAssignments
	rates       map[int]decimal.Decimal
	drafts      map[uuid.UUID]*model.DraftOrder
	plans       map[uuid.UUID]*model.InstallmentPayment
	orders      map[uuid.UUID]*model.OrderHistory
	nextOrder   int64
	tick        time.Time

	candidateCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:    map[uuid.UUID]*model.Account{},
		products:    map[uuid.UUID]*model.Product{},
		agentStock:  map[[2]uuid.UUID]decimal.Decimal{},
		assignments: map[uuid.UUID]*model.SellerAssignments{},
		rates:       map[int]decimal.Decimal{},
		drafts:      map[uuid.UUID]*model.DraftOrder{},
		plans:       map[uuid.UUID]*model.InstallmentPayment{},
		orders:      map[uuid.UUID]*model.OrderHistory{},
		nextOrder:   100001,
		tick:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) stamp() time.Time {
	r.tick = r.tick.Add(time.Millisecond)
	return r.tick
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) addAccount(role model.Role) *model.Account {
	a := &model.Account{ID: uuid.New(), Role: role, FullName: string(role), IsActive: true}
	r.accounts[a.ID] = a
	return a
}

func (r *memRepo) addShop(owner *uuid.UUID) *model.Shop {
	s := &model.Shop{ID: uuid.New(), OwnerID: owner, Name: "shop"}
	r.shops = append(r.shops, s)
	return s
}

func (r *memRepo) addProduct(shopID uuid.UUID, price, qty string) *model.Product {
	p := &model.Product{
		ID:       uuid.New(),
		ShopID:   shopID,
		Name:     "product",
		Price:    decimal.RequireFromString(price),
		Unit:     "pcs",
		UnitSize: decimal.NewFromInt(1),
		Quantity: decimal.RequireFromString(qty),
	}
	r.products[p.ID] = p
	return p
}

func (r *memRepo) assign(sellerID uuid.UUID) *model.SellerAssignments {
	a, ok := r.assignments[sellerID]
	if !ok {
		a = &model.SellerAssignments{}
		r.assignments[sellerID] = a
	}
	return a
}

func (r *memRepo) stock(productID uuid.UUID) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Quantity
}

func (r *memRepo) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account not found")
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Phone == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("account not found")
}

func (r *memRepo) CreateAccount(ctx context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Phone == a.Phone {
			return apperr.New(apperr.KindConflict, "account already exists")
		}
	}
	a.ID = uuid.New()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *memRepo) GetShop(ctx context.Context, id uuid.UUID) (*model.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shops {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("shop not found")
}

func (r *memRepo) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shops {
		if s.OwnerID != nil && *s.OwnerID == ownerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("shop not found")
}

func (r *memRepo) GetSellerAssignments(ctx context.Context, sellerID uuid.UUID) (*model.SellerAssignments, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[sellerID]
	if !ok {
		return &model.SellerAssignments{}, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ownerOf(shopID uuid.UUID) *uuid.UUID {
	for _, s := range r.shops {
		if s.ID == shopID {
			return s.OwnerID
		}
	}
	return nil
}

// reserve проверяет все позиции и только потом списывает.
func (r *memRepo) reserve(role model.Role, sellerID, ownerID uuid.UUID, items []model.LineItem) error {
	need := map[uuid.UUID]decimal.Decimal{}
	for _, it := range items {
		need[it.ProductID] = need[it.ProductID].Add(it.Quantity)
	}

	for id, qty := range need {
		if role == model.RoleAgent {
			if r.agentStock[[2]uuid.UUID{sellerID, id}].LessThan(qty) {
				return apperr.New(apperr.KindInsufficientStock, "insufficient stock")
			}
			continue
		}
		p, ok := r.products[id]
		if !ok {
			return apperr.NotFound("product not found")
		}
		if owner := r.ownerOf(p.ShopID); owner == nil || *owner != ownerID {
			return apperr.Forbidden("product does not belong to the store")
		}
		if p.Quantity.LessThan(qty) {
			return apperr.New(apperr.KindInsufficientStock, "insufficient stock for %q", p.Name)
		}
	}

	for id, qty := range need {
		if role == model.RoleAgent {
			key := [2]uuid.UUID{sellerID, id}
			r.agentStock[key] = r.agentStock[key].Sub(qty)
			continue
		}
		r.products[id].Quantity = r.products[id].Quantity.Sub(qty)
	}
	return nil
}

func (r *memRepo) restore(role model.Role, sellerID uuid.UUID, items []model.LineItem) {
	for _, it := range items {
		if role == model.RoleAgent {
			key := [2]uuid.UUID{sellerID, it.ProductID}
			r.agentStock[key] = r.agentStock[key].Add(it.Quantity)
			continue
		}
		if p, ok := r.products[it.ProductID]; ok {
			p.Quantity = p.Quantity.Add(it.Quantity)
		}
	}
}

func (r *memRepo) CreateDraft(ctx context.Context, d *model.DraftOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reserve(d.SellerRole, d.SellerID, d.StoreOwnerID, d.Products); err != nil {
		return err
	}
	d.ID = uuid.New()
	d.OrderID = r.nextOrder
	r.nextOrder++
	d.CreatedAt = r.stamp()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r *memRepo) GetDraft(ctx context.Context, id uuid.UUID) (*model.DraftOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, apperr.NotFound("draft order not found")
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) UpdateDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) (*model.DraftOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[id]
	if !ok {
		return nil, apperr.NotFound("draft order not found")
	}
	d := *stored
	previous := d.Products
	if err := fn(&d); err != nil {
		return nil, err
	}

	r.restore(d.SellerRole, d.SellerID, previous)
	if err := r.reserve(d.SellerRole, d.SellerID, d.StoreOwnerID, d.Products); err != nil {
		_ = r.reserve(d.SellerRole, d.SellerID, d.StoreOwnerID, previous)
		return nil, err
	}
	d.UpdatedAt = r.stamp()
	cp := d
	r.drafts[id] = &cp
	return &d, nil
}

func (r *memRepo) DeleteDraft(ctx context.Context, id uuid.UUID, fn func(d *model.DraftOrder) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[id]
	if !ok {
		return apperr.NotFound("draft order not found")
	}
	d := *stored
	if err := fn(&d); err != nil {
		return err
	}
	r.restore(d.SellerRole, d.SellerID, d.Products)
	delete(r.drafts, id)
	return nil
}

func (r *memRepo) ActiveInterestRate(ctx context.Context, duration int) (*model.InterestRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate, ok := r.rates[duration]
	if !ok {
		return nil, apperr.NotFound("interest rate not found")
	}
	return &model.InterestRate{Duration: duration, Rate: rate, IsActive: true}, nil
}

func (r *memRepo) consumeDraft(d *model.DraftOrder) error {
	stored, ok := r.drafts[d.ID]
	if !ok || !stored.UpdatedAt.Equal(d.UpdatedAt) {
		return apperr.New(apperr.KindConflict, "draft order was changed or already confirmed")
	}
	delete(r.drafts, d.ID)
	return nil
}

func copyPlan(p *model.InstallmentPayment) *model.InstallmentPayment {
	cp := *p
	cp.Payments = append([]model.ScheduledPayment(nil), p.Payments...)
	return &cp
}

func (r *memRepo) ConfirmInstallment(ctx context.Context, d *model.DraftOrder, p *model.InstallmentPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.consumeDraft(d); err != nil {
		return err
	}
	p.ID = uuid.New()
	p.CreatedAt = r.stamp()
	p.UpdatedAt = p.CreatedAt
	r.plans[p.ID] = copyPlan(p)
	return nil
}

func (r *memRepo) ConfirmOrder(ctx context.Context, d *model.DraftOrder, o *model.OrderHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.consumeDraft(d); err != nil {
		return err
	}
	o.ID = uuid.New()
	o.CreatedAt = r.stamp()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) GetInstallment(ctx context.Context, id uuid.UUID) (*model.InstallmentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, apperr.NotFound("installment payment not found")
	}
	return copyPlan(p), nil
}

func (r *memRepo) ListInstallments(ctx context.Context, f model.OrderFilter) ([]model.InstallmentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.InstallmentPayment
	for _, p := range r.plans {
		if f.SellerID != nil && p.SellerID != *f.SellerID {
			continue
		}
		if f.StoreOwnerID != nil && p.StoreOwnerID != *f.StoreOwnerID {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		res = append(res, *copyPlan(p))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memRepo) UpdateInstallment(ctx context.Context, id uuid.UUID, fn func(p *model.InstallmentPayment) error) (*model.InstallmentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.plans[id]
	if !ok {
		return nil, apperr.NotFound("installment payment not found")
	}
	p := copyPlan(stored)
	before := p.Status
	if err := fn(p); err != nil {
		return nil, err
	}
	if before != model.InstallmentStatusCancelled && p.Status == model.InstallmentStatusCancelled {
		r.restore(p.SellerRole, p.SellerID, p.Products)
	}
	p.UpdatedAt = r.stamp()
	r.plans[id] = copyPlan(p)
	return p, nil
}

func (r *memRepo) ListOverdueCandidates(ctx context.Context, before time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidateCalls++
	var ids []uuid.UUID
	for id, p := range r.plans {
		if p.Status != model.InstallmentStatusActive && p.Status != model.InstallmentStatusOverdue {
			continue
		}
		if bytes.Compare(id[:], after[:]) <= 0 {
			continue
		}
		for _, sp := range p.Payments {
			if sp.Status == model.PaymentStatusPending && sp.DueDate.Before(before) {
				ids = append(ids, id)
				break
			}
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) GetOrderHistory(ctx context.Context, id uuid.UUID) (*model.OrderHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	cp := *o
	return &cp, nil
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *stubNotifier) SendSMS(ctx context.Context, phone, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, phone+": "+text)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *stubPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *stubPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]string, 0, len(p.events))
	for _, e := range p.events {
		res = append(res, e.Type)
	}
	return res
}
