package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	analyticshandler "sproutmarket/internal/analytics/handler"
	carthandler "sproutmarket/internal/cart/handler"
	orderhandler "sproutmarket/internal/order/handler"
	"sproutmarket/internal/platform/middleware"
	"sproutmarket/internal/transport/http/shared"
)

// Deps carries everything the router mounts. Handlers own their own route
// groups; the router only layers middleware and operational endpoints.
type Deps struct {
	Cart      *carthandler.Handler
	Orders    *orderhandler.Handler
	Analytics *analyticshandler.Handler

	Auth           middleware.TokenValidator
	Logger         *zap.Logger
	RequestTimeout time.Duration

	// Health reports backend readiness. Nil means always healthy.
	Health func() error
}

// NewRouter assembles the full middleware chain and mounts every route group.
// /health and /metrics stay outside the auth boundary.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.RequestTime)
	if deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.RequestTimeout))
	}

	r.Get("/health", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Auth, deps.Logger))

		deps.Cart.Register(r)
		deps.Orders.Register(r)
		deps.Analytics.Register(r)
	})

	return r
}

func healthHandler(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
