package user

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bankload/internal/bankapi"
	"bankload/internal/check"
	"bankload/internal/fixtures"
	"bankload/internal/logger"
	"bankload/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferDescription は振込リクエストの摘要
const TransferDescription = "Test transfer from load test"

// 振込金額の範囲
var (
	minTransferAmount = decimal.NewFromInt(1)
	maxTransferAmount = decimal.NewFromInt(100)
)

// Deps はセッションが使う共有リソース
type Deps struct {
	Client   *bankapi.Client
	Pool     *fixtures.Pool
	Recorder metrics.Recorder
	Logger   *logger.Logger // nilならlogger.Default
}

// Session は1人の仮想ユーザーのセッション状態
// 1つのゴルーチンからのみ使用する
type Session struct {
	id     string
	deps   Deps
	rng    *rand.Rand
	logger *logger.Logger

	credential fixtures.Credential
	token      string
	userID     bankapi.ID
	accounts   []bankapi.Account
}

// NewSession は新しいセッションを作成する
func NewSession(deps Deps, seed int64) *Session {
	l := deps.Logger
	if l == nil {
		l = logger.Default
	}
	return &Session{
		id:     uuid.NewString(),
		deps:   deps,
		rng:    rand.New(rand.NewSource(seed)),
		logger: l,
	}
}

// ID はセッションIDを返す
func (s *Session) ID() string {
	return s.id
}

// label はログ用の短いID
func (s *Session) label() string {
	return s.id[:8]
}

// Token は取得済みのJWTを返す（未認証なら空）
func (s *Session) Token() string {
	return s.token
}

// UserID は認証済みユーザーのIDを返す（未認証なら空）
func (s *Session) UserID() bankapi.ID {
	return s.userID
}

// Credential は使用中の認証情報を返す
func (s *Session) Credential() fixtures.Credential {
	return s.credential
}

// Authenticated は認証済みかどうかを返す
func (s *Session) Authenticated() bool {
	return s.token != "" && s.userID != ""
}

// Start はセッション開始時の処理（認証情報の選択とログイン）
// ログインに失敗してもセッションは続行する
func (s *Session) Start(ctx context.Context) error {
	s.token = ""
	s.userID = ""
	s.accounts = nil

	s.logger.Info(s.label(), "User starting with base URL: %s", s.deps.Client.BaseURL())

	cred, err := s.deps.Pool.RandomCredential(s.rng)
	if err != nil {
		return fmt.Errorf("select credentials: %w", err)
	}
	s.credential = cred
	s.logger.Info(s.label(), "Using test credentials: %s", cred.Email)

	s.Authenticate(ctx)
	return nil
}

// Authenticate はログインしてトークンとユーザーIDを保存する
func (s *Session) Authenticate(ctx context.Context) bool {
	s.logger.Debug(s.label(), "Attempting login to: %s/api/v1/login with email: %s",
		s.deps.Client.BaseURL(), s.credential.Email)

	resp := s.deps.Client.Login(ctx, s.credential.Email, s.credential.Password)
	result := check.Login(resp)
	s.record(ctx, resp, result.Outcome)

	if !result.OK {
		switch resp.StatusCode {
		case 0:
			s.logger.Error(s.label(), "%s URL: %s", result.Message, resp.URL)
		case 200, 401:
			s.logger.Warn(s.label(), "Authentication failed for %s: %s", s.credential.Email, result.Message)
		default:
			s.logger.Error(s.label(), "%s - URL: %s", result.Message, resp.URL)
		}
		return false
	}

	s.token = result.Token
	s.userID = result.UserID
	s.logger.Info(s.label(), "Authentication successful for %s, userId: %s", s.credential.Email, s.userID)
	return true
}

// Headers は認証済みリクエスト用のヘッダーを返す
func (s *Session) Headers() map[string]string {
	out := make(map[string]string)
	for k, v := range bankapi.Headers(s.token) {
		out[k] = v[0]
	}
	return out
}

// Accounts はユーザーの口座一覧を返す
// 一度取得できればセッション中はキャッシュを返す。失敗時は空
func (s *Session) Accounts(ctx context.Context) []bankapi.Account {
	if s.userID == "" {
		s.logger.Warn(s.label(), "Cannot get accounts - user_id is empty")
		return nil
	}
	if len(s.accounts) > 0 {
		return s.accounts
	}

	resp := s.deps.Client.UserAccounts(ctx, s.token, s.userID)
	outcome, accounts := check.Accounts(resp)
	s.record(ctx, resp, outcome)

	if !outcome.OK {
		s.logger.Warn(s.label(), "Get user accounts failed: %s", outcome.Message)
		return nil
	}

	s.accounts = accounts
	s.logger.Debug(s.label(), "Retrieved %d accounts for user %s", len(accounts), s.userID)
	return s.accounts
}

// RunTask はシナリオのタスクを1回実行する
func (s *Session) RunTask(ctx context.Context, kind Kind) {
	switch kind {
	case KindBrowse:
		s.Browse(ctx)
	case KindActive:
		s.Active(ctx)
	case KindHistory:
		s.History(ctx)
	}
}

// Browse は口座を1つ選んで詳細を閲覧する
func (s *Session) Browse(ctx context.Context) {
	accounts := s.Accounts(ctx)
	if len(accounts) == 0 {
		s.Accounts(ctx)
		return
	}

	account := accounts[s.rng.Intn(len(accounts))]
	if account.AccountNo == "" {
		return
	}

	s.logger.Debug(s.label(), "Viewing account %s", account.AccountNo)
	resp := s.deps.Client.Account(ctx, s.token, account.AccountNo)
	s.record(ctx, resp, check.AccountDetail(resp))
}

// Active は異なる2口座間で振込を行う
func (s *Session) Active(ctx context.Context) {
	accounts := s.Accounts(ctx)
	if len(accounts) < 2 {
		s.Accounts(ctx)
		return
	}

	from := accounts[s.rng.Intn(len(accounts))]
	candidates := make([]bankapi.Account, 0, len(accounts)-1)
	for _, a := range accounts {
		if a.AccountNo != from.AccountNo {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		s.logger.Warn(s.label(), "No distinct destination account for %s", from.AccountNo)
		return
	}
	to := candidates[s.rng.Intn(len(candidates))]

	if from.AccountNo == "" || to.AccountNo == "" {
		return
	}

	amount := s.transferAmount()
	s.logger.Debug(s.label(), "Transferring %s from %s to %s", amount.StringFixed(2), from.AccountNo, to.AccountNo)

	resp := s.deps.Client.Transfer(ctx, s.token, bankapi.TransferRequest{
		FromAccount: from.AccountNo,
		ToAccount:   to.AccountNo,
		Amount:      amount,
		Description: TransferDescription,
	})
	s.record(ctx, resp, check.Transfer(resp))
}

// transferAmount は [1, 100] の金額を小数点以下2桁で返す
func (s *Session) transferAmount() decimal.Decimal {
	span := maxTransferAmount.Sub(minTransferAmount)
	amount := minTransferAmount.Add(span.Mul(decimal.NewFromFloat(s.rng.Float64()))).Round(2)
	if amount.LessThan(minTransferAmount) {
		return minTransferAmount
	}
	if amount.GreaterThan(maxTransferAmount) {
		return maxTransferAmount
	}
	return amount
}

// History は取引履歴を閲覧する
// 口座が取得できない場合はフォールバックのテスト口座を参照する
func (s *Session) History(ctx context.Context) {
	accounts := s.Accounts(ctx)
	if len(accounts) == 0 {
		accountNo, ok := s.deps.Pool.RandomFallbackAccount(s.rng)
		if !ok {
			return
		}
		s.logger.Debug(s.label(), "Viewing transaction history for test account %s", accountNo)
		resp := s.deps.Client.Transactions(ctx, s.token, bankapi.ID(accountNo))
		s.record(ctx, resp, check.FallbackHistory(resp))
		return
	}

	account := accounts[s.rng.Intn(len(accounts))]
	if account.AccountNo == "" {
		return
	}

	s.logger.Debug(s.label(), "Viewing transaction history for account %s", account.AccountNo)
	resp := s.deps.Client.Transactions(ctx, s.token, account.AccountNo)
	s.record(ctx, resp, check.History(resp))
}

// ThinkTime は [min, max] の一様乱数で待ち時間を返す
func (s *Session) ThinkTime(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)+1))
}

// record は結果を記録先に送る
// 停止によって中断されたリクエストは記録しない
func (s *Session) record(ctx context.Context, resp *bankapi.Response, outcome check.Outcome) {
	if s.deps.Recorder == nil {
		return
	}
	if resp.Err != nil && ctx.Err() != nil {
		return
	}
	s.deps.Recorder.Record(metrics.Sample{
		Method:  resp.Method,
		Name:    resp.Name,
		Latency: resp.Latency,
		Size:    len(resp.Body),
		OK:      outcome.OK,
		Message: outcome.Message,
	})
}
