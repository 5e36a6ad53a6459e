package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Catalog        CatalogService
	Ratings        RatingService
	Carts          CartService
	Checkout       CheckoutService
	Orders         OrderService
	Community      CommunityService
	Tokens         TokenParser
	LiveFeed       http.HandlerFunc
	Metrics        http.Handler
	MetricsMW      func(http.Handler) http.Handler
	RequestTimeout time.Duration
	Log            *slog.Logger
}

// NewRouter wires every route. The live feed is mounted outside the request timeout because
// the WebSocket outlives it.
func NewRouter(cfg RouterConfig) http.Handler {
	products := NewProductHandler(cfg.Catalog, cfg.Ratings, cfg.Log)
	carts := NewCartHandler(cfg.Carts, cfg.Log)
	checkout := NewCheckoutHandler(cfg.Checkout, cfg.Log)
	orders := NewOrdersHandler(cfg.Orders, cfg.Log)
	community := NewCommunityHandler(cfg.Community, cfg.Log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	if cfg.MetricsMW != nil {
		r.Use(cfg.MetricsMW)
	}
	r.Use(Authenticate(cfg.Tokens))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	if cfg.LiveFeed != nil {
		r.With(RequireAdmin).Get("/api/v1/admin/orders/live", cfg.LiveFeed)
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/products", products.ListProducts)
			r.Get("/products/{id}", products.GetProduct)
			r.Get("/products/{id}/ratings", products.ListRatings)
			r.Get("/categories", products.ListCategories)
			r.Post("/webhooks/payment", checkout.PaymentWebhook)
			r.Get("/posts", community.ListPosts)
			r.Get("/posts/{id}", community.GetPost)
			r.Get("/posts/{id}/comments", community.GetComments)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Put("/products/{id}/rating", products.RateProduct)
				r.Delete("/products/{id}/rating", products.DeleteRating)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", carts.GetCart)
					r.Delete("/", carts.ClearCart)
					r.Post("/items", carts.AddItem)
					r.Put("/items/{product_id}", carts.UpdateQuantity)
					r.Delete("/items/{product_id}", carts.RemoveItem)
				})

				r.Post("/checkout", checkout.PlaceOrder)
				r.Get("/orders", orders.ListOrders)
				r.Get("/orders/{id}", orders.GetOrder)

				r.Post("/posts", community.CreatePost)
				r.Delete("/posts/{id}", community.DeletePost)
				r.Post("/posts/{id}/comments", community.AddComment)
				r.Post("/posts/{id}/upvote", community.ToggleUpvote)
				r.Get("/notifications", community.ListNotifications)
				r.Post("/notifications/{id}/read", community.MarkNotificationRead)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/products", products.CreateProduct)
				r.Put("/products/{id}", products.UpdateProduct)
				r.Get("/orders", orders.ListAllOrders)
				r.Put("/orders/{id}/status", orders.UpdateStatus)
			})
		})
	})

	return otelhttp.NewHandler(r, "pawmart-http")
}
