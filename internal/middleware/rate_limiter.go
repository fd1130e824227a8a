package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type RateLimit struct {
	Rate      rate.Limit
	Burst     int
	ExpiresIn time.Duration
}

// 注文作成の連打対策。ログイン済みならユーザー単位、そうでなければIP単位
func RateLimiter(l RateLimit) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: echomw.DefaultSkipper,
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(
			echomw.RateLimiterMemoryStoreConfig{
				Rate:      l.Rate,
				Burst:     l.Burst,
				ExpiresIn: l.ExpiresIn,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if uid, ok := c.Get(CtxUserIDKey).(int64); ok {
				return "user:" + strconv.FormatInt(uid, 10), nil
			}
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, errorJSON("rate limit exceeded"))
		},
	})
}
