// Package mockbank is an in-memory stand-in for the online banking API.
//
// It serves the same endpoints the load scenarios call, so a run can be
// pointed at it with `bankload -mock` and tests can drive real HTTP traffic
// through httptest. Balances are kept in cents; a transfer larger than the
// source balance is rejected with 400 "insufficient balance".
package mockbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bankload/internal/fixtures"

	"github.com/shopspring/decimal"
)

// エラー
var (
	ErrNotFound     = errors.New("account not found")
	ErrInsufficient = errors.New("insufficient balance")
	ErrSameAccount  = errors.New("source and destination must differ")
	ErrBadAmount    = errors.New("amount must be positive")
)

// Transaction は取引履歴の1件
type Transaction struct {
	ID          int64     `json:"transactionId"`
	FromAccount int64     `json:"fromAccount"`
	ToAccount   int64     `json:"toAccount"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Status      string    `json:"transactionStatus"`
	Time        time.Time `json:"timestamp"`
}

type account struct {
	No      int64
	UserID  int64
	Balance int64 // cents
	Txns    []Transaction
}

type user struct {
	ID       int64
	Email    string
	Password string
}

// Config はモックの設定
type Config struct {
	Credentials     []fixtures.Credential
	AccountsPerUser int   // ユーザーごとの口座数
	InitialBalance  int64 // 初期残高（cents）
	Latency         time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Credentials:     fixtures.DefaultCredentials,
		AccountsPerUser: 2,
		InitialBalance:  500_000,
	}
}

// Counters はエンドポイントごとの呼び出し回数
type Counters struct {
	Login        atomic.Uint64
	UserAccounts atomic.Uint64
	Account      atomic.Uint64
	Transfer     atomic.Uint64
	Transactions atomic.Uint64
}

// Bank はモックの銀行
type Bank struct {
	config Config
	Calls  Counters

	mu       sync.Mutex
	users    map[string]*user // email -> user
	accounts map[int64]*account
	nextTxn  int64

	// テストで挙動を変えるためのフック（nilなら通常動作）
	loginOverride atomic.Pointer[func(w http.ResponseWriter) bool]
}

// New はモックの銀行を作成する
// ユーザーIDは1から、口座番号は1000001から振られる
func New(config Config) *Bank {
	b := &Bank{
		config:   config,
		users:    make(map[string]*user),
		accounts: make(map[int64]*account),
	}

	nextAccount := int64(1000001)
	for i, c := range config.Credentials {
		u := &user{ID: int64(i + 1), Email: c.Email, Password: c.Password}
		b.users[c.Email] = u
		for range config.AccountsPerUser {
			b.accounts[nextAccount] = &account{No: nextAccount, UserID: u.ID, Balance: config.InitialBalance}
			nextAccount++
		}
	}
	return b
}

// SetLoginOverride はログインハンドラを差し替える。fnがtrueを返すと通常処理をスキップする
func (b *Bank) SetLoginOverride(fn func(w http.ResponseWriter) bool) {
	if fn == nil {
		b.loginOverride.Store(nil)
		return
	}
	b.loginOverride.Store(&fn)
}

// Handler はHTTPハンドラを返す
func (b *Bank) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", b.handleLogin)
	mux.HandleFunc("GET /api/v1/account/user/{userId}", b.auth(b.handleUserAccounts))
	mux.HandleFunc("GET /api/v1/account/transactions/{accountNo}", b.auth(b.handleTransactions))
	mux.HandleFunc("GET /api/v1/account/{accountNo}", b.auth(b.handleAccount))
	mux.HandleFunc("POST /api/v1/account/transfer", b.auth(b.handleTransfer))
	return mux
}

// Balance は口座残高（cents）を返す
func (b *Bank) Balance(accountNo int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[accountNo]
	if !ok {
		return 0, false
	}
	return a.Balance, true
}

// SetBalance は口座残高を設定する
func (b *Bank) SetBalance(accountNo, cents int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.accounts[accountNo]; ok {
		a.Balance = cents
	}
}

// TotalBalance は全口座の残高合計を返す（振込で不変）
func (b *Bank) TotalBalance() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, a := range b.accounts {
		total += a.Balance
	}
	return total
}

func token(userID int64) string {
	return fmt.Sprintf("mock-token-%d", userID)
}

// auth はBearerトークンを検証するミドルウェア
func (b *Bank) auth(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.delay()
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer mock-token-")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, userID)
	}
}

func (b *Bank) delay() {
	if b.config.Latency > 0 {
		time.Sleep(b.config.Latency)
	}
}

func (b *Bank) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.Calls.Login.Add(1)
	b.delay()

	if fn := b.loginOverride.Load(); fn != nil && (*fn)(w) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Email]
	b.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jwtToken": token(u.ID),
		"user": map[string]any{
			"userId": u.ID,
			"email":  u.Email,
		},
	})
}

func (b *Bank) handleUserAccounts(w http.ResponseWriter, r *http.Request, authUser int64) {
	b.Calls.UserAccounts.Add(1)

	userID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil || userID != authUser {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	b.mu.Lock()
	out := make([]map[string]any, 0)
	for _, a := range b.accounts {
		if a.UserID == userID {
			out = append(out, accountJSON(a))
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i]["accountno"].(int64) < out[j]["accountno"].(int64)
	})
	writeJSON(w, http.StatusOK, out)
}

func (b *Bank) handleAccount(w http.ResponseWriter, r *http.Request, _ int64) {
	b.Calls.Account.Add(1)

	no, err := strconv.ParseInt(r.PathValue("accountNo"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[no]
	var body map[string]any
	if ok {
		body = accountJSON(a)
	}
	b.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Bank) handleTransactions(w http.ResponseWriter, r *http.Request, _ int64) {
	b.Calls.Transactions.Add(1)

	no, err := strconv.ParseInt(r.PathValue("accountNo"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[no]
	var txns []Transaction
	if ok {
		txns = append([]Transaction{}, a.Txns...)
	}
	b.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (b *Bank) handleTransfer(w http.ResponseWriter, r *http.Request, _ int64) {
	b.Calls.Transfer.Add(1)

	var req struct {
		FromAccount int64           `json:"fromAccount"`
		ToAccount   int64           `json:"toAccount"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := b.Transfer(req.FromAccount, req.ToAccount, req.Amount, req.Description)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, txn)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// Transfer は口座間で振込を行う。失敗時は状態を変更しない
func (b *Bank) Transfer(from, to int64, amount decimal.Decimal, description string) (Transaction, error) {
	cents := amount.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return Transaction{}, ErrBadAmount
	}
	if from == to {
		return Transaction{}, ErrSameAccount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok1 := b.accounts[from]
	dst, ok2 := b.accounts[to]
	if !ok1 || !ok2 {
		return Transaction{}, ErrNotFound
	}
	if src.Balance < cents {
		return Transaction{}, ErrInsufficient
	}

	src.Balance -= cents
	dst.Balance += cents
	b.nextTxn++

	txn := Transaction{
		ID:          b.nextTxn,
		FromAccount: from,
		ToAccount:   to,
		Amount:      decimal.New(cents, -2).StringFixed(2),
		Description: description,
		Status:      "SUCCESS",
		Time:        time.Now(),
	}
	src.Txns = append(src.Txns, txn)
	dst.Txns = append(dst.Txns, txn)
	return txn, nil
}

func accountJSON(a *account) map[string]any {
	return map[string]any{
		"accountno": a.No,
		"userId":    a.UserID,
		"balance":   decimal.New(a.Balance, -2).StringFixed(2),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"status":  status,
		"message": msg,
	})
}
