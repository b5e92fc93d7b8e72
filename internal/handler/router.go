package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/marketplace-installments/internal/middleware"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware API. metrics монтируется
// на /metrics, если задан.
func (h *Handler) SetupRouter(metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		if h.loginLimiter != nil {
			r.With(h.loginLimiter.Limit).Post("/auth/login", h.Login)
		} else {
			r.Post("/auth/login", h.Login)
		}

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)
			r.Get("/regions", h.RegionTree)
			r.Get("/interest-rates", h.ListInterestRates)

			r.Route("/admin", func(r chi.Router) {
				r.With(custommiddleware.RequireRole(model.RoleAdmin, model.RoleShopOwner)).
					Post("/agents/{id}/products", h.AllocateAgentProduct)

				r.Group(func(r chi.Router) {
					r.Use(custommiddleware.RequireRole(model.RoleAdmin))

					r.Post("/accounts", h.CreateAccount)
					r.Get("/accounts", h.ListAccounts)
					r.Post("/sellers/{id}/shops", h.AssignSellerShop)
					r.Post("/sellers/{id}/shop-owners", h.AssignSellerShopOwner)
					r.Post("/regions", h.CreateRegion)
					r.Post("/regions/{id}/districts", h.CreateDistrict)
					r.Post("/districts/{id}/mfys", h.CreateMfy)
					r.Put("/interest-rates", h.UpsertInterestRate)
					r.Delete("/interest-rates/{duration}", h.DeactivateInterestRate)
				})
			})

			r.Post("/shops", h.CreateShop)
			r.Get("/shops", h.ListShops)
			r.Post("/categories", h.CreateCategory)
			r.Get("/categories", h.ListCategories)
			r.Post("/products", h.CreateProduct)
			r.Get("/products", h.ListProducts)
			r.Patch("/products/{id}/stock", h.AdjustStock)

			r.Route("/drafts", func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleAdmin, model.RoleSeller, model.RoleAgent))

				r.Post("/", h.CreateDraft)
				r.Get("/", h.ListDrafts)
				r.Get("/{id}", h.GetDraft)
				r.Put("/{id}", h.UpdateDraft)
				r.Delete("/{id}", h.DeleteDraft)
				r.Post("/{id}/confirm", h.ConfirmDraft)
			})

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Route("/installment-payments", func(r chi.Router) {
				r.Get("/", h.ListInstallments)
				r.Get("/{id}", h.GetInstallment)
				r.Post("/{id}/check-overdue", h.CheckOverdue)

				r.Group(func(r chi.Router) {
					r.Use(custommiddleware.RequireRole(model.RoleAdmin))
					r.Patch("/{id}/process", h.RecordPayment)
					r.Patch("/{id}/cancel", h.CancelInstallment)
				})
			})

			r.Route("/seller/installments", func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleSeller))
				r.Post("/{id}/payments", h.RecordPayment)
				r.Patch("/{id}/cancel", h.CancelInstallment)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusMethodNotAllowed)
	})

	return r
}
