package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/categories"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params carries everything the API router mounts. Nil services answer with
// INTERNAL_ERROR instead of panicking.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	Categories categories.Service
	Products   product.Service
	Inventory  inventory.Service
	Cart       cart.Service
	Orders     orders.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	idempotent := middleware.Idempotency(p.Idempotency, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if cfg.App.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.App.RequestTimeout))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// catalog reads are public and limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(p.RateLimiter, logg))
			r.Get("/categories", controllers.ListCategories(p.Categories, logg))
			r.Get("/categories/{categoryId}", controllers.GetCategory(p.Categories, logg))
			r.Get("/categories/{categoryId}/products", controllers.ListCategoryProducts(p.Products, logg))
			r.Get("/products", controllers.ListProducts(p.Products, logg))
			r.Get("/products/search", controllers.SearchProducts(p.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(p.Products, logg))
			r.Get("/inventory/{productId}", controllers.GetInventory(p.Inventory, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RateLimit(p.RateLimiter, logg))

			r.Get("/cart", controllers.GetCart(p.Cart, logg))
			r.Delete("/cart", controllers.ClearCart(p.Cart, logg))
			r.With(idempotent).Post("/cart/items", controllers.AddCartItem(p.Cart, logg))
			r.Patch("/cart/items/{productId}", controllers.UpdateCartItem(p.Cart, logg))
			r.Delete("/cart/items/{productId}", controllers.RemoveCartItem(p.Cart, logg))

			r.With(idempotent).Post("/orders", controllers.PlaceOrder(p.Orders, logg))
			r.Get("/orders", controllers.ListOrders(p.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(p.Orders, logg))
			r.With(idempotent).Delete("/orders/{orderId}/cancel", controllers.CancelOrder(p.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

				r.Get("/orders/admin", controllers.AdminListOrders(p.Orders, logg))
				r.With(idempotent).Patch("/orders/admin/{orderId}/status", controllers.AdminUpdateOrderStatus(p.Orders, logg))

				r.Post("/categories", controllers.AdminCreateCategory(p.Categories, logg))
				r.Patch("/categories/{categoryId}", controllers.AdminUpdateCategory(p.Categories, logg))
				r.Delete("/categories/{categoryId}", controllers.AdminDeleteCategory(p.Categories, logg))

				r.Get("/products/admin", controllers.ListProducts(p.Products, logg))
				r.Post("/products", controllers.AdminCreateProduct(p.Products, logg))
				r.Patch("/products/{productId}", controllers.AdminUpdateProduct(p.Products, logg))
				r.Delete("/products/{productId}", controllers.AdminDeleteProduct(p.Products, logg))

				r.Put("/inventory/{productId}", controllers.AdminSetInventory(p.Inventory, logg))
				r.Patch("/inventory/{productId}/adjust", controllers.AdminAdjustInventory(p.Inventory, logg))
			})
		})
	})

	return r
}
