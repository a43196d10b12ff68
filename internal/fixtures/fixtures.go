// Package fixtures holds the static test credentials and account numbers
// the simulated users draw from.
package fixtures

import (
	"errors"
	"math/rand"
)

// Credential はログイン用のメールアドレスとパスワードの組
type Credential struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

// DefaultCredentials はテスト用DBの初期データに含まれるユーザー
// パスワードはすべて password123
var DefaultCredentials = []Credential{
	{Email: "user1@example.com", Password: "password123"},
	{Email: "user2@example.com", Password: "password123"},
	{Email: "user3@example.com", Password: "password123"},
	{Email: "admin@example.com", Password: "password123"},
}

// DefaultFallbackAccounts は口座一覧が取れなかった場合に参照する口座番号
var DefaultFallbackAccounts = []string{"1000001", "1000002", "1000003"}

// ErrEmptyPool はプールが空の場合のエラー
var ErrEmptyPool = errors.New("fixtures: empty pool")

// Pool は読み取り専用の認証情報・口座番号プール
type Pool struct {
	credentials []Credential
	accounts    []string
}

// Default はデフォルトのプールを返す
func Default() *Pool {
	return New(DefaultCredentials, DefaultFallbackAccounts)
}

// New はプールを作成する。引数のスライスはコピーされる
func New(credentials []Credential, fallbackAccounts []string) *Pool {
	p := &Pool{
		credentials: make([]Credential, len(credentials)),
		accounts:    make([]string, len(fallbackAccounts)),
	}
	copy(p.credentials, credentials)
	copy(p.accounts, fallbackAccounts)
	return p
}

// Validate はプールが利用可能か検証する
func (p *Pool) Validate() error {
	if len(p.credentials) == 0 {
		return ErrEmptyPool
	}
	for _, c := range p.credentials {
		if c.Email == "" {
			return errors.New("fixtures: credential with empty email")
		}
	}
	return nil
}

// RandomCredential はランダムに認証情報を1つ選ぶ
func (p *Pool) RandomCredential(rng *rand.Rand) (Credential, error) {
	if len(p.credentials) == 0 {
		return Credential{}, ErrEmptyPool
	}
	return p.credentials[rng.Intn(len(p.credentials))], nil
}

// RandomFallbackAccount はランダムにフォールバック口座番号を1つ選ぶ
func (p *Pool) RandomFallbackAccount(rng *rand.Rand) (string, bool) {
	if len(p.accounts) == 0 {
		return "", false
	}
	return p.accounts[rng.Intn(len(p.accounts))], true
}

// Credentials は認証情報のコピーを返す
func (p *Pool) Credentials() []Credential {
	out := make([]Credential, len(p.credentials))
	copy(out, p.credentials)
	return out
}

// FallbackAccounts はフォールバック口座番号のコピーを返す
func (p *Pool) FallbackAccounts() []string {
	out := make([]string, len(p.accounts))
	copy(out, p.accounts)
	return out
}
