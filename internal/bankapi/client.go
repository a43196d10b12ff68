package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// リクエスト名（統計の集計キー）
const (
	NameLogin          = "Auth - Login"
	NameUserAccounts   = "Account - Get User Accounts"
	NameAccountDetails = "Account - View Account Details"
	NameTransfer       = "Account - Transfer Money"
	NameHistory        = "Account - View Transaction History"
)

// Config はClientの設定
type Config struct {
	BaseURL   string        // 対象ホスト（例: http://gateway-service:8080）
	Timeout   time.Duration // 1リクエストのタイムアウト（0で30秒）
	UserAgent string
}

// Client は銀行APIのHTTPクライアント
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// New は新しいClientを作成する
func New(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := config.UserAgent
	if ua == "" {
		ua = "bankload"
	}
	return &Client{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: ua,
		http:      &http.Client{Timeout: timeout},
	}
}

// BaseURL は対象ホストを返す
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response は1回のAPI呼び出しの結果
type Response struct {
	Method     string
	Name       string
	URL        string
	StatusCode int // 0は接続失敗
	Body       []byte
	Latency    time.Duration
	Err        error
}

// JSON はボディをvにデコードする
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Text はボディを文字列で返す
func (r *Response) Text() string {
	return string(r.Body)
}

// Login は POST /api/v1/login
func (c *Client) Login(ctx context.Context, email, password string) *Response {
	body := LoginRequest{Email: email, Password: password}
	return c.do(ctx, http.MethodPost, "/api/v1/login", NameLogin, "", body)
}

// UserAccounts は GET /api/v1/account/user/{userId}
func (c *Client) UserAccounts(ctx context.Context, token string, userID ID) *Response {
	path := "/api/v1/account/user/" + url.PathEscape(userID.String())
	return c.do(ctx, http.MethodGet, path, NameUserAccounts, token, nil)
}

// Account は GET /api/v1/account/{accountNo}
func (c *Client) Account(ctx context.Context, token string, accountNo ID) *Response {
	path := "/api/v1/account/" + url.PathEscape(accountNo.String())
	return c.do(ctx, http.MethodGet, path, NameAccountDetails, token, nil)
}

// Transfer は POST /api/v1/account/transfer
func (c *Client) Transfer(ctx context.Context, token string, req TransferRequest) *Response {
	return c.do(ctx, http.MethodPost, "/api/v1/account/transfer", NameTransfer, token, req)
}

// Transactions は GET /api/v1/account/transactions/{accountNo}
func (c *Client) Transactions(ctx context.Context, token string, accountNo ID) *Response {
	path := "/api/v1/account/transactions/" + url.PathEscape(accountNo.String())
	return c.do(ctx, http.MethodGet, path, NameHistory, token, nil)
}

// Headers は認証済みリクエスト用のヘッダーを返す
// トークンがない場合はAuthorizationを付けない
func Headers(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// do はリクエストを送信し、結果をResponseにまとめる
func (c *Client) do(ctx context.Context, method, path, name, token string, payload any) *Response {
	resp := &Response{
		Method: method,
		Name:   name,
		URL:    c.baseURL + path,
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			resp.Err = fmt.Errorf("encode request: %w", err)
			return resp
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, resp.URL, body)
	if err != nil {
		resp.Err = fmt.Errorf("build request: %w", err)
		return resp
	}
	req.Header = Headers(token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		resp.Latency = time.Since(start)
		resp.Err = err
		return resp
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	resp.Latency = time.Since(start)
	if err != nil {
		// ボディ途中で切れた場合も接続失敗として扱う
		resp.Err = fmt.Errorf("read body: %w", err)
		return resp
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = data
	return resp
}
