package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/buildmart-backend/api/controllers"
	"github.com/angelmondragon/buildmart-backend/api/middleware"
	"github.com/angelmondragon/buildmart-backend/internal/auth"
	"github.com/angelmondragon/buildmart-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/buildmart-backend/internal/checkout"
	"github.com/angelmondragon/buildmart-backend/internal/notifications"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/products"
	"github.com/angelmondragon/buildmart-backend/pkg/auth/session"
	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/angelmondragon/buildmart-backend/pkg/metrics"
	"github.com/angelmondragon/buildmart-backend/pkg/redis"
)

// RequestStore backs idempotency replay and auth throttling.
type RequestStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth          auth.Service
	Products      products.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	pingers map[string]controllers.Pinger,
	requestStore RequestStore,
	sessionManager session.AccessSessionChecker,
	svc Services,
) http.Handler {
	var httpMetrics *metrics.HTTPMetrics
	if registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginIdentityLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterIdentityLimit,
	)

	idempotent := middleware.Idempotency(requestStore, logg, middleware.IdempotencyTTL)
	critical := middleware.Idempotency(requestStore, logg, middleware.CriticalIdempotencyTTL)
	streamer := controllers.NewStreamer(cfg.App.CORSOrigins, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, requestStore, logg)).Post("/customers/register", controllers.CustomerRegister(svc.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, requestStore, logg)).Post("/vendors/register", controllers.VendorRegister(svc.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, requestStore, logg)).Post("/customers/login", controllers.CustomerLogin(svc.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, requestStore, logg)).Post("/vendors/login", controllers.VendorLogin(svc.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, requestStore, logg)).Post("/admin/login", controllers.AdminLogin(svc.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, sessionManager, logg)).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svc.Products, logg))
			r.Get("/{productId}", controllers.GetProduct(svc.Products, logg))
		})

		// Websocket clients cannot set headers, so the token may travel as a query parameter.
		r.Route("/stream", func(r chi.Router) {
			r.Use(middleware.StreamAuth(cfg.JWT, sessionManager, logg))
			r.With(middleware.RequireRole(logg, enums.RoleCustomer)).Get("/cart", streamer.CartStream(svc.Cart))
			r.With(middleware.RequireRole(logg, enums.RoleCustomer)).Get("/orders", streamer.CustomerOrdersStream(svc.Orders))
			r.With(middleware.RequireRole(logg, enums.RoleVendor)).Get("/vendor/orders/{bucket}", streamer.VendorBucketStream(svc.Orders))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleCustomer))
				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.CartFetch(svc.Cart, logg))
					r.With(idempotent).Post("/items", controllers.CartAddItem(svc.Cart, logg))
					r.Patch("/items/{itemKey}", controllers.CartUpdateQuantity(svc.Cart, logg))
					r.Delete("/items/{itemKey}", controllers.CartRemoveItem(svc.Cart, logg))
				})
				r.With(critical).Post("/checkout", controllers.Checkout(svc.Checkout, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.CustomerListOrders(svc.Orders, logg))
					r.Get("/{orderId}", controllers.CustomerOrderDetail(svc.Orders, logg))
				})
			})

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleVendor))
				r.With(idempotent).Post("/products", controllers.VendorCreateProduct(svc.Products, logg))
				r.Patch("/products/{productId}", controllers.VendorUpdateProduct(svc.Products, logg))
				r.Delete("/products/{productId}", controllers.VendorDeleteProduct(svc.Products, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/buckets/{bucket}", controllers.VendorListBucket(svc.Orders, logg))
					r.Route("/{orderId}", func(r chi.Router) {
						r.With(critical).Post("/accept", controllers.VendorAcceptOrder(svc.Orders, logg))
						r.With(critical).Post("/cancel", controllers.VendorCancelOrder(svc.Orders, logg))
						r.With(critical).Post("/dispatch", controllers.VendorDispatchOrder(svc.Orders, logg))
						r.With(critical).Post("/deliver/arm", controllers.VendorArmDelivery(svc.Orders, logg))
						r.Delete("/deliver/arm", controllers.VendorDisarmDelivery(svc.Orders, logg))
						r.With(critical).Post("/deliver", controllers.VendorConfirmDelivery(svc.Orders, logg))
					})
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleVendor))
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.Get("/customers/orders", controllers.AdminCustomerOrders(svc.Orders, logg))
				r.Route("/vendors/{vendorId}/orders", func(r chi.Router) {
					r.Get("/buckets/{bucket}", controllers.AdminVendorBucket(svc.Orders, logg))
					r.With(critical).Post("/{orderId}/cancel", controllers.AdminCancelOrder(svc.Orders, logg))
				})
			})
		})
	})

	return r
}
