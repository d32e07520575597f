package handler

import (
	"io"
	"net/http/httptest"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api"
)

// NewTestEcho はテスト用のEchoインスタンスを作成する
// エラーハンドラーも本番と同じものを使う
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// TestRequest はハンドラーを直接呼ぶテスト用のリクエスト
type TestRequest struct {
	Method  string
	Target  string
	Body    string // JSON。空なら本文なし
	UserID  string // X-User-ID
	Params  map[string]string
	Headers map[string]string
}

// NewTestContext はルーターを通さずにハンドラーを呼ぶためのコンテキストを作る
// パスパラメータは名前順に設定する
func NewTestContext(e *echo.Echo, r TestRequest) (echo.Context, *httptest.ResponseRecorder) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Target, body)
	if r.Body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if r.UserID != "" {
		req.Header.Set("X-User-ID", r.UserID)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	names := make([]string, 0, len(r.Params))
	for k := range r.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	values := make([]string, len(names))
	for i, k := range names {
		values[i] = r.Params[k]
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}
