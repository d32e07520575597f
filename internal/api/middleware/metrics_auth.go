package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HeaderAdminToken は管理APIのトークンを渡すヘッダー
const HeaderAdminToken = "X-Admin-Token"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// MetricsBasicAuth は /metrics エンドポイント用の Basic 認証ミドルウェア
// user と password の両方が設定されている場合のみ認証を要求する（ローカル開発ではスキップ）
func MetricsBasicAuth(user, password string) echo.MiddlewareFunc {
	if user == "" || password == "" {
		return passThrough
	}

	return middleware.BasicAuth(func(username, pass string, c echo.Context) (bool, error) {
		// タイミング攻撃を防ぐため ConstantTimeCompare を使用
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(user)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		return userMatch && passMatch, nil
	})
}

// AdminToken は X-Admin-Token ヘッダーが token と一致するリクエストだけを通す
// token が空の場合は保護しない
func AdminToken(token string) echo.MiddlewareFunc {
	if token == "" {
		return passThrough
	}

	expected := []byte(token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(HeaderAdminToken)
			if got == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "管理トークンが必要です")
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "管理トークンが一致しません")
			}
			return next(c)
		}
	}
}
