package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/registerhq/retailcore-backend/api/controllers"
	"github.com/registerhq/retailcore-backend/api/middleware"
	"github.com/registerhq/retailcore-backend/internal/cart"
	"github.com/registerhq/retailcore-backend/internal/inventory"
	"github.com/registerhq/retailcore-backend/internal/sales"
	"github.com/registerhq/retailcore-backend/internal/shifts"
	"github.com/registerhq/retailcore-backend/pkg/config"
	"github.com/registerhq/retailcore-backend/pkg/db"
	"github.com/registerhq/retailcore-backend/pkg/logger"
	"github.com/registerhq/retailcore-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	salesService sales.Service,
	inventoryService inventory.Service,
	shiftsService shifts.Service,
	parkService *cart.ParkService,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActor(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.CreateSale(salesService, logg))
			r.Get("/", controllers.ListSales(salesService, logg))
			r.Get("/{saleId}", controllers.GetSale(salesService, logg))
			r.Post("/{saleId}/void", controllers.VoidSale(salesService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.InventoryOnHand(inventoryService, logg))
			r.Get("/transactions", controllers.InventoryTransactions(inventoryService, logg))
			r.Post("/adjust", controllers.AdjustInventory(inventoryService, logg))
			r.Post("/transfer", controllers.TransferInventory(inventoryService, logg))
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", controllers.ClockIn(shiftsService, logg))
			r.Get("/", controllers.ListShifts(shiftsService, logg))
			r.Get("/active", controllers.ActiveShift(shiftsService, logg))
			r.Get("/{shiftId}", controllers.GetShift(shiftsService, logg))
			r.Post("/{shiftId}/close", controllers.CloseShift(shiftsService, logg))
			r.Post("/{shiftId}/reconcile", controllers.ReconcileShift(shiftsService, logg))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/quote", controllers.CartQuote(logg))
			r.Post("/park", controllers.ParkCart(parkService, logg))
			r.Route("/parked/{cartId}", func(r chi.Router) {
				r.Get("/", controllers.GetParkedCart(parkService, logg))
				r.Post("/resume", controllers.ResumeParkedCart(parkService, logg))
				r.Delete("/", controllers.DiscardParkedCart(parkService, logg))
			})
		})
	})

	return r
}
