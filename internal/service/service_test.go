package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

type fixture struct {
	repo      *memRepo
	svc       *Service
	clock     *testClock
	notifier  *stubNotifier
	publisher *stubPublisher

	owner   *model.Account
	seller  *model.Account
	shop    *model.Shop
	product *model.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	owner := repo.addAccount(model.RoleShopOwner)
	seller := repo.addAccount(model.RoleSeller)
	shop := repo.addShop(&owner.ID)
	product := repo.addProduct(shop.ID, "1000000", "10")
	repo.assign(seller.ID).ShopIDs = []uuid.UUID{shop.ID}

	f := &fixture{
		repo:      repo,
		clock:     &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		notifier:  &stubNotifier{},
		publisher: &stubPublisher{},
		owner:     owner,
		seller:    seller,
		shop:      shop,
		product:   product,
	}
	f.svc = NewService(repo,
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithNotifier(f.notifier),
		WithPublisher(f.publisher),
	)
	return f
}

func (f *fixture) sellerActor() authz.Actor {
	return authz.Actor{ID: f.seller.ID, Role: model.RoleSeller}
}

func (f *fixture) createDraft(t *testing.T, qty string) *model.DraftOrder {
	t.Helper()
	d, err := f.svc.CreateDraft(context.Background(), f.sellerActor(), DraftInput{
		Products: []LineItemInput{{
			ProductID: f.product.ID,
			Quantity:  decimal.RequireFromString(qty),
			Price:     decimal.RequireFromString("1000000"),
		}},
	})
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }

func validCustomer() *CustomerInput {
	return &CustomerInput{
		FullName:       "Aziz Karimov",
		BirthDate:      "1990-05-01",
		PassportSeries: "AA1234567",
		PrimaryPhone:   "+998901234567",
	}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func fieldOf(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Field
	}
	return ""
}

func TestCreateDraft_ResolvesSellerShopAndReservesStock(t *testing.T) {
	f := newFixture(t)

	d := f.createDraft(t, "2")

	assert.Equal(t, f.shop.ID, d.ShopID)
	assert.Equal(t, f.owner.ID, d.StoreOwnerID)
	assert.Equal(t, model.PaymentMethodCash, d.PaymentMethod)
	assert.Equal(t, "product", d.Products[0].Name, "name is filled from the catalog")
	assert.True(t, d.TotalSum.Equal(decimal.RequireFromString("2000000")))
	assert.Equal(t, int64(100001), d.OrderID)
	assert.Equal(t, "8", f.repo.stock(f.product.ID).String())
}

func TestCreateDraft_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{})
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{
		Products: []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.Zero, Price: decimal.NewFromInt(1)}},
	})
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{
		Products:      []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(1)}},
		PaymentMethod: "barter",
	})
	assertKind(t, err, apperr.KindValidation)
}

func TestCreateDraft_InsufficientStockLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	second := f.repo.addProduct(f.shop.ID, "500", "1")

	_, err := f.svc.CreateDraft(context.Background(), f.sellerActor(), DraftInput{
		Products: []LineItemInput{
			{ProductID: f.product.ID, Quantity: decimal.NewFromInt(3), Price: decimal.NewFromInt(1000000)},
			{ProductID: second.ID, Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(500)},
		},
	})

	assertKind(t, err, apperr.KindInsufficientStock)
	assert.Equal(t, "10", f.repo.stock(f.product.ID).String())
	assert.Equal(t, "1", f.repo.stock(second.ID).String())
}

func TestCreateDraft_UnresolvableStoreOwner(t *testing.T) {
	f := newFixture(t)
	loner := f.repo.addAccount(model.RoleSeller)

	_, err := f.svc.CreateDraft(context.Background(), authz.Actor{ID: loner.ID, Role: model.RoleSeller}, DraftInput{
		Products: []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}},
	})

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, "storeOwner", ae.Field)
}

func TestCreateDraft_SellerNotAssignedToExplicitStore(t *testing.T) {
	f := newFixture(t)
	otherOwner := f.repo.addAccount(model.RoleShopOwner)
	f.repo.addShop(&otherOwner.ID)

	_, err := f.svc.CreateDraft(context.Background(), f.sellerActor(), DraftInput{
		StoreOwner: &otherOwner.ID,
		Products:   []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}},
	})
	assertKind(t, err, apperr.KindAuthorization)
}

func TestCreateDraft_AgentUsesAllocatedStock(t *testing.T) {
	f := newFixture(t)
	agent := f.repo.addAccount(model.RoleAgent)
	f.repo.agentStock[[2]uuid.UUID{agent.ID, f.product.ID}] = decimal.NewFromInt(3)

	d, err := f.svc.CreateDraft(context.Background(), authz.Actor{ID: agent.ID, Role: model.RoleAgent}, DraftInput{
		Products: []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	assert.Equal(t, f.owner.ID, d.StoreOwnerID)
	assert.Equal(t, "1", f.repo.agentStock[[2]uuid.UUID{agent.ID, f.product.ID}].String())
	assert.Equal(t, "10", f.repo.stock(f.product.ID).String(), "shop stock is not touched")
}

func TestUpdateDraft_RestoresThenReserves(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "4")
	require.Equal(t, "6", f.repo.stock(f.product.ID).String())

	updated, err := f.svc.UpdateDraft(context.Background(), f.sellerActor(), d.ID, DraftUpdateInput{
		Products:      []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(9), Price: decimal.NewFromInt(100)}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", f.repo.stock(f.product.ID).String())
	assert.Equal(t, model.PaymentMethodCard, updated.PaymentMethod)
	assert.True(t, updated.TotalSum.Equal(decimal.NewFromInt(900)))

	_, err = f.svc.UpdateDraft(context.Background(), f.sellerActor(), d.ID, DraftUpdateInput{
		Products: []LineItemInput{{ProductID: f.product.ID, Quantity: decimal.NewFromInt(11), Price: decimal.NewFromInt(100)}},
	})
	assertKind(t, err, apperr.KindInsufficientStock)
	assert.Equal(t, "1", f.repo.stock(f.product.ID).String(), "failed update keeps the previous reservation")
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "3")

	other := authz.Actor{ID: uuid.New(), Role: model.RoleSeller}
	assertKind(t, f.svc.DeleteDraft(context.Background(), other, d.ID), apperr.KindAuthorization)
	assert.Equal(t, "7", f.repo.stock(f.product.ID).String())

	require.NoError(t, f.svc.DeleteDraft(context.Background(), f.sellerActor(), d.ID))
	assert.Equal(t, "10", f.repo.stock(f.product.ID).String())

	_, err := f.svc.GetDraft(context.Background(), f.sellerActor(), d.ID)
	assertKind(t, err, apperr.KindNotFound)
}

func TestConfirmDraft_Installment(t *testing.T) {
	f := newFixture(t)
	f.repo.rates[3] = decimal.NewFromInt(10)
	d := f.createDraft(t, "1")

	res, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{
		PaymentMethod:       "installment",
		Customer:            validCustomer(),
		InstallmentDuration: intPtr(3),
		StartDate:           "2026-03-10",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Installment)
	assert.Nil(t, res.Order)

	plan := res.Installment
	assert.Equal(t, model.InstallmentStatusActive, plan.Status)
	assert.Equal(t, d.OrderID, plan.OrderID)
	assert.Equal(t, f.owner.ID, plan.StoreOwnerID)
	assert.Equal(t, "100000", plan.Installment.InterestAmount.String())
	assert.Equal(t, "1100000", plan.Installment.TotalWithInterest.String())
	assert.Equal(t, "366667", plan.Installment.MonthlyPayment.String())
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), plan.Installment.StartDate)
	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), plan.Installment.EndDate)

	require.Len(t, plan.Payments, 3)
	amounts := []string{plan.Payments[0].Amount.String(), plan.Payments[1].Amount.String(), plan.Payments[2].Amount.String()}
	assert.Equal(t, []string{"366667", "366667", "366666"}, amounts)
	assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), plan.Payments[0].DueDate)

	_, err = f.svc.GetDraft(context.Background(), f.sellerActor(), d.ID)
	assertKind(t, err, apperr.KindNotFound)
	assert.Equal(t, "9", f.repo.stock(f.product.ID).String(), "confirmation does not touch stock")

	assert.Equal(t, []string{events.TypeInstallmentCreated}, f.publisher.types())
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "+998901234567")
}

func TestConfirmDraft_ImplicitInstallment(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "1")

	res, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{
		Customer:            validCustomer(),
		InstallmentDuration: intPtr(2),
		StartDate:           "2026-03-20",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Installment)
	assert.True(t, res.Installment.Installment.InterestRate.IsZero(), "no active rate means zero interest")
	assert.Equal(t, "500000", res.Installment.Installment.MonthlyPayment.String())
}

func TestConfirmDraft_CashCreatesOrderHistory(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "1")

	res, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{PaymentMethod: "cash"})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Nil(t, res.Installment)

	o := res.Order
	assert.Equal(t, model.OrderStatusCompleted, o.Status)
	assert.Equal(t, model.PaymentMethodCash, o.PaymentMethod)
	assert.Equal(t, f.owner.ID, o.StoreOwnerID)
	require.NotNil(t, o.CompletedAt)
	assert.Empty(t, f.repo.plans)
	assert.Len(t, f.repo.orders, 1)
	assert.Equal(t, []string{events.TypeOrderCompleted}, f.publisher.types())

	_, err = f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{PaymentMethod: "cash"})
	assertKind(t, err, apperr.KindNotFound)
}

func TestConfirmDraft_ValidationLeavesDraftIntact(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ConfirmInput)
		field  string
	}{
		{
			name:   "missing customer",
			mutate: func(in *ConfirmInput) { in.Customer = nil },
			field:  "customer",
		},
		{
			name:   "missing full name",
			mutate: func(in *ConfirmInput) { in.Customer.FullName = "  " },
			field:  "fullName",
		},
		{
			name:   "bad passport",
			mutate: func(in *ConfirmInput) { in.Customer.PassportSeries = "A1234567" },
			field:  "passportSeries",
		},
		{
			name:   "bad phone",
			mutate: func(in *ConfirmInput) { in.Customer.PrimaryPhone = "901234567" },
			field:  "primaryPhone",
		},
		{
			name:   "bad birth date",
			mutate: func(in *ConfirmInput) { in.Customer.BirthDate = "01.05.1990" },
			field:  "birthDate",
		},
		{
			name:   "missing duration",
			mutate: func(in *ConfirmInput) { in.InstallmentDuration = nil },
			field:  "installmentDuration",
		},
		{
			name:   "unsupported duration",
			mutate: func(in *ConfirmInput) { in.InstallmentDuration = intPtr(7) },
			field:  "installmentDuration",
		},
		{
			name:   "missing start date",
			mutate: func(in *ConfirmInput) { in.StartDate = "" },
			field:  "startDate",
		},
		{
			name:   "unparseable start date",
			mutate: func(in *ConfirmInput) { in.StartDate = "tomorrow" },
			field:  "startDate",
		},
		{
			name:   "start date in the past",
			mutate: func(in *ConfirmInput) { in.StartDate = "2026-03-09" },
			field:  "startDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.createDraft(t, "1")

			in := ConfirmInput{
				PaymentMethod:       "installment",
				Customer:            validCustomer(),
				InstallmentDuration: intPtr(3),
				StartDate:           "2026-03-10",
			}
			tt.mutate(&in)

			_, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, in)

			var ae *apperr.Error
			require.True(t, errors.As(err, &ae), "unexpected error: %v", err)
			assert.Equal(t, apperr.KindValidation, ae.Kind)
			assert.Equal(t, tt.field, ae.Field)

			_, err = f.svc.GetDraft(context.Background(), f.sellerActor(), d.ID)
			assert.NoError(t, err, "draft must survive a failed confirmation")
			assert.Empty(t, f.repo.plans)
			assert.Empty(t, f.publisher.types())
		})
	}
}

func TestConfirmDraft_TotalTooSmallForDuration(t *testing.T) {
	tests := []struct {
		name  string
		price string
	}{
		{name: "last payment would be negative", price: "10"},
		{name: "free product", price: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cheap := f.repo.addProduct(f.shop.ID, tt.price, "5")
			d, err := f.svc.CreateDraft(context.Background(), f.sellerActor(), DraftInput{
				Products: []LineItemInput{{ProductID: cheap.ID, Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString(tt.price)}},
			})
			require.NoError(t, err)

			_, err = f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{
				PaymentMethod:       "installment",
				Customer:            validCustomer(),
				InstallmentDuration: intPtr(12),
				StartDate:           "2026-03-10",
			})
			assertKind(t, err, apperr.KindValidation)
			assert.Equal(t, "installmentDuration", fieldOf(err))
			assert.Len(t, f.repo.drafts, 1)
			assert.Empty(t, f.repo.plans)
		})
	}
}

func TestConfirmDraft_AmountsKeepStoredPrecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bulk := f.repo.addProduct(f.shop.ID, "1000.01", "10")

	_, err := f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{
		Products: []LineItemInput{{ProductID: bulk.ID, Quantity: decimal.RequireFromString("1.5"), Price: decimal.RequireFromString("1000.015")}},
	})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "products[0].price", fieldOf(err))

	_, err = f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{
		Products: []LineItemInput{{ProductID: bulk.ID, Quantity: decimal.RequireFromString("1.0005"), Price: decimal.RequireFromString("1000.01")}},
	})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "products[0].quantity", fieldOf(err))

	d, err := f.svc.CreateDraft(ctx, f.sellerActor(), DraftInput{
		Products: []LineItemInput{{ProductID: bulk.ID, Quantity: decimal.RequireFromString("1.5"), Price: decimal.RequireFromString("1000.01")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.02", d.TotalSum.String())

	res, err := f.svc.ConfirmDraft(ctx, f.sellerActor(), d.ID, ConfirmInput{
		PaymentMethod:       "installment",
		Customer:            validCustomer(),
		InstallmentDuration: intPtr(2),
		StartDate:           "2026-03-10",
	})
	require.NoError(t, err)
	plan := res.Installment
	assert.Equal(t, "749.02", plan.Payments[1].Amount.String())

	for _, sp := range plan.Payments {
		_, err := f.svc.RecordPayment(ctx, f.sellerActor(), plan.ID, PaymentInput{Month: sp.Month, Amount: sp.Amount})
		require.NoError(t, err)
	}
	assert.Equal(t, model.InstallmentStatusCompleted, f.repo.plans[plan.ID].Status)
}

func TestConfirmDraft_OnlyOwningSellerOrAdmin(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "1")

	stranger := authz.Actor{ID: uuid.New(), Role: model.RoleSeller}
	_, err := f.svc.ConfirmDraft(context.Background(), stranger, d.ID, ConfirmInput{PaymentMethod: "cash"})
	assertKind(t, err, apperr.KindAuthorization)

	admin := authz.Actor{ID: uuid.New(), Role: model.RoleAdmin, Permissions: []string{authz.PermissionOrders}}
	res, err := f.svc.ConfirmDraft(context.Background(), admin, d.ID, ConfirmInput{PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMethodCard, res.Order.PaymentMethod)
}

func TestConfirmDraft_StoreOwnerNotFound(t *testing.T) {
	f := newFixture(t)
	d := f.createDraft(t, "1")

	// магазин потерял владельца, а за продавцом больше ничего не закреплено
	f.repo.shops[0].OwnerID = nil
	f.repo.assignments[f.seller.ID] = &model.SellerAssignments{}

	_, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, ErrStoreOwnerNotFound)
	assert.Len(t, f.repo.drafts, 1)
}

func (f *fixture) confirmInstallment(t *testing.T) *model.InstallmentPayment {
	t.Helper()
	d := f.createDraft(t, "1")
	res, err := f.svc.ConfirmDraft(context.Background(), f.sellerActor(), d.ID, ConfirmInput{
		PaymentMethod:       "installment",
		Customer:            validCustomer(),
		InstallmentDuration: intPtr(3),
		StartDate:           "2026-03-10",
	})
	require.NoError(t, err)
	return res.Installment
}

func TestRecordPayment_CompletesPlan(t *testing.T) {
	f := newFixture(t)
	plan := f.confirmInstallment(t)
	ctx := context.Background()

	for _, sp := range plan.Payments {
		updated, err := f.svc.RecordPayment(ctx, f.sellerActor(), plan.ID, PaymentInput{Month: sp.Month, Amount: sp.Amount})
		require.NoError(t, err)
		paid, ok := updated.Payment(sp.Month)
		require.True(t, ok)
		assert.Equal(t, model.PaymentStatusPaid, paid.Status)
		assert.Equal(t, "cash", paid.PaymentMethod)
		require.NotNil(t, paid.PaidBy)
		assert.Equal(t, f.seller.ID, *paid.PaidBy)
	}

	stored, err := f.svc.GetInstallment(ctx, f.sellerActor(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Contains(t, f.publisher.types(), events.TypeInstallmentCompleted)

	_, err = f.svc.RecordPayment(ctx, f.sellerActor(), plan.ID, PaymentInput{Month: 1, Amount: plan.Payments[0].Amount})
	assertKind(t, err, apperr.KindInvalidState)
}

func TestRecordPayment_Errors(t *testing.T) {
	f := newFixture(t)
	plan := f.confirmInstallment(t)
	ctx := context.Background()
	admin := authz.Actor{ID: uuid.New(), Role: model.RoleAdmin, Permissions: []string{authz.PermissionInstallments}}

	_, err := f.svc.RecordPayment(ctx, admin, plan.ID, PaymentInput{Month: 1, Amount: decimal.NewFromInt(1)})
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.RecordPayment(ctx, admin, plan.ID, PaymentInput{Month: 9, Amount: decimal.NewFromInt(1)})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "month", fieldOf(err))

	_, err = f.svc.RecordPayment(ctx, admin, plan.ID, PaymentInput{Month: 1, Amount: decimal.NewFromInt(-1)})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "amount", fieldOf(err))

	_, err = f.svc.RecordPayment(ctx, admin, plan.ID, PaymentInput{Month: 0, Amount: decimal.NewFromInt(1)})
	assertKind(t, err, apperr.KindValidation)

	agent := authz.Actor{ID: f.seller.ID, Role: model.RoleAgent}
	_, err = f.svc.RecordPayment(ctx, agent, plan.ID, PaymentInput{Month: 1, Amount: plan.Payments[0].Amount})
	assertKind(t, err, apperr.KindAuthorization)

	updated, err := f.svc.RecordPayment(ctx, admin, plan.ID, PaymentInput{
		Month: 1, Amount: plan.Payments[0].Amount, PaymentMethod: "card", Notes: "terminal #2",
	})
	require.NoError(t, err)
	paid, _ := updated.Payment(1)
	assert.Equal(t, "card", paid.PaymentMethod)
	assert.Equal(t, "terminal #2", paid.Notes)
	assert.Equal(t, model.InstallmentStatusActive, updated.Status)
}

func TestCancelInstallment_RestoresStock(t *testing.T) {
	f := newFixture(t)
	plan := f.confirmInstallment(t)
	require.Equal(t, "9", f.repo.stock(f.product.ID).String())

	cancelled, err := f.svc.CancelInstallment(context.Background(), f.sellerActor(), plan.ID, " customer refused ")
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer refused", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, f.seller.ID, *cancelled.CancelledBy)
	assert.Equal(t, "10", f.repo.stock(f.product.ID).String())

	_, err = f.svc.CancelInstallment(context.Background(), f.sellerActor(), plan.ID, "")
	assertKind(t, err, apperr.KindInvalidState)
	assert.Equal(t, "10", f.repo.stock(f.product.ID).String(), "stock is restored once")
}

func TestGetInstallment_PersistsOverdue(t *testing.T) {
	f := newFixture(t)
	plan := f.confirmInstallment(t)

	f.clock.t = time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC)

	got, err := f.svc.GetInstallment(context.Background(), f.sellerActor(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusOverdue, got.Status)
	assert.Equal(t, model.PaymentStatusOverdue, got.Payments[0].Status)
	assert.Equal(t, model.PaymentStatusPending, got.Payments[1].Status)

	assert.Equal(t, model.InstallmentStatusOverdue, f.repo.plans[plan.ID].Status)
	assert.Contains(t, f.publisher.types(), events.TypeInstallmentOverdue)

	owner := authz.Actor{ID: f.owner.ID, Role: model.RoleShopOwner}
	_, err = f.svc.GetInstallment(context.Background(), owner, plan.ID)
	assert.NoError(t, err)

	stranger := authz.Actor{ID: uuid.New(), Role: model.RoleShopOwner}
	_, err = f.svc.GetInstallment(context.Background(), stranger, plan.ID)
	assertKind(t, err, apperr.KindAuthorization)
}

func TestGetInstallment_NotOverdueOnDueDate(t *testing.T) {
	f := newFixture(t)
	plan := f.confirmInstallment(t)

	f.clock.t = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	got, err := f.svc.GetInstallment(context.Background(), f.sellerActor(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusActive, got.Status)
	assert.Equal(t, model.PaymentStatusPending, got.Payments[0].Status)

	n, err := f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.InstallmentStatusActive, f.repo.plans[plan.ID].Status)
}

func TestSweepOverdue_DrainsAllBatches(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	total := 2*sweepBatch + 5
	for range total {
		p := &model.InstallmentPayment{
			ID:       uuid.New(),
			SellerID: f.seller.ID,
			Status:   model.InstallmentStatusActive,
			Payments: []model.ScheduledPayment{{Month: 1, Amount: decimal.NewFromInt(100), DueDate: due, Status: model.PaymentStatusPending}},
		}
		f.repo.plans[p.ID] = p
	}

	f.clock.t = time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC)

	n, err := f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, n)
	assert.Equal(t, 3, f.repo.candidateCalls)
	for _, p := range f.repo.plans {
		assert.Equal(t, model.InstallmentStatusOverdue, p.Status)
	}
}

func TestSweepOverdue(t *testing.T) {
	f := newFixture(t)
	first := f.confirmInstallment(t)
	second := f.confirmInstallment(t)

	f.clock.t = time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC)

	n, err := f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.InstallmentStatusOverdue, f.repo.plans[first.ID].Status)
	assert.Equal(t, model.InstallmentStatusOverdue, f.repo.plans[second.ID].Status)

	n, err = f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep finds nothing new")
}

func TestListInstallments_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	f.confirmInstallment(t)

	other := authz.Actor{ID: uuid.New(), Role: model.RoleSeller}
	list, err := f.svc.ListInstallments(context.Background(), other, model.OrderFilter{SellerID: &f.seller.ID})
	require.NoError(t, err)
	assert.Empty(t, list, "seller filter is overridden with the caller")

	list, err = f.svc.ListInstallments(context.Background(), f.sellerActor(), model.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListInstallments(context.Background(), authz.Actor{ID: uuid.New(), Role: model.RoleAdmin}, model.OrderFilter{})
	assertKind(t, err, apperr.KindAuthorization)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	a := repo.addAccount(model.RoleSeller)
	a.Phone = "+998901112233"
	a.PasswordHash = hash

	svc := NewService(repo)

	got, err := svc.Authenticate(context.Background(), "+998901112233", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "+998901112233", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "+998900000000", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	a.IsActive = false
	_, err = svc.Authenticate(context.Background(), "+998901112233", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateAccount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	admin := authz.Actor{ID: uuid.New(), Role: model.RoleAdmin, Permissions: []string{authz.PermissionAll}}

	a, err := svc.CreateAccount(context.Background(), admin, AccountInput{
		Role: model.RoleSeller, FullName: "Seller", Phone: "+998901234567", Password: "secret1",
		Permissions: []string{authz.PermissionAll},
	})
	require.NoError(t, err)
	assert.Empty(t, a.Permissions, "permissions are only kept for admins")
	assert.NoError(t, bcrypt.CompareHashAndPassword(a.PasswordHash, []byte("secret1")))

	_, err = svc.CreateAccount(context.Background(), admin, AccountInput{
		Role: model.RoleSeller, FullName: "Seller", Phone: "12345", Password: "secret1",
	})
	assertKind(t, err, apperr.KindValidation)

	seller := authz.Actor{ID: uuid.New(), Role: model.RoleSeller}
	_, err = svc.CreateAccount(context.Background(), seller, AccountInput{})
	assertKind(t, err, apperr.KindAuthorization)
}
