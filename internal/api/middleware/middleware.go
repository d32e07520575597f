package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

// SetupMiddleware は共通ミドルウェアを設定する
// m が nil の場合はHTTPメトリクスを記録しない
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	// リクエストID
	e.Use(RequestIDMiddleware())

	// 構造化リクエストログ（zap）
	e.Use(RequestLogger())

	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}

	// パニックリカバリー。パニックもメトリクス上は 500 として数える
	e.Use(middleware.Recover())

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{echo.GET, echo.HEAD, echo.POST},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-User-ID", HeaderAdminToken},
		ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After"},
	}))
}
