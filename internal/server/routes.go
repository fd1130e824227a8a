package server

import (
	"time"

	"smartshop/internal/config"
	"smartshop/internal/middleware"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// 注文作成: ユーザーごとに毎秒1件、5件までのバースト
var orderCreateLimit = middleware.RateLimit{
	Rate:      rate.Limit(1),
	Burst:     5,
	ExpiresIn: 3 * time.Minute,
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	auth := middleware.AuthJWT(cfg)

	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}

	api := e.Group("/api")

	h.Orders.RegisterRoutes(api.Group("/orders", auth), middleware.RateLimiter(orderCreateLimit))
	h.Payments.RegisterRoutes(api.Group("/payments"), auth)
	h.AdminOrders.RegisterRoutes(api.Group("/admin", auth, middleware.AdminRoleGuard()))
}
