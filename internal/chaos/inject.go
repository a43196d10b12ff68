package chaos

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTargets はモック銀行APIの攻撃対象（パスのプレフィックス）
var DefaultTargets = []string{
	"/api/v1/login",
	"/api/v1/account/user/",
	"/api/v1/account/transfer",
	"/api/v1/account/transactions/",
	"/api/v1/account/",
}

// fault は1つの対象に注入中の障害
type fault struct {
	attack   AttackType
	delay    time.Duration
	released chan struct{}
}

// Injector はHTTPハンドラの手前で障害を注入するミドルウェア
type Injector struct {
	next    http.Handler
	targets []string // 長い順

	mu     sync.RWMutex
	faults map[string]*fault
}

// NewInjector は新しいInjectorを作成する。targets が空なら DefaultTargets
func NewInjector(next http.Handler, targets []string) *Injector {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	sorted := make([]string, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	return &Injector{
		next:    next,
		targets: sorted,
		faults:  make(map[string]*fault),
	}
}

// Targets は攻撃対象の一覧を返す
func (inj *Injector) Targets() []string {
	out := make([]string, len(inj.targets))
	copy(out, inj.targets)
	return out
}

// Inject は対象に障害を注入する。既存の障害は置き換える
func (inj *Injector) Inject(target string, attack AttackType, delay time.Duration) {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	if old, ok := inj.faults[target]; ok {
		close(old.released)
	}
	inj.faults[target] = &fault{attack: attack, delay: delay, released: make(chan struct{})}
}

// Clear は対象の障害を解除する。解除した場合 true
func (inj *Injector) Clear(target string) bool {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	f, ok := inj.faults[target]
	if !ok {
		return false
	}
	close(f.released)
	delete(inj.faults, target)
	return true
}

// ClearAll は全ての障害を解除する
func (inj *Injector) ClearAll() {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	for target, f := range inj.faults {
		close(f.released)
		delete(inj.faults, target)
	}
}

// Active は障害注入中の対象数を返す
func (inj *Injector) Active() int {
	inj.mu.RLock()
	defer inj.mu.RUnlock()
	return len(inj.faults)
}

// match はリクエストパスに対応する対象を返す（最長一致）
func (inj *Injector) match(path string) string {
	for _, t := range inj.targets {
		if strings.HasPrefix(path, t) {
			return t
		}
	}
	return ""
}

func (inj *Injector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := inj.match(r.URL.Path)

	inj.mu.RLock()
	f := inj.faults[target]
	inj.mu.RUnlock()

	if f == nil {
		inj.next.ServeHTTP(w, r)
		return
	}

	switch f.attack {
	case AttackOutage:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "error",
			"message": "service unavailable",
		})
		return
	case AttackStall:
		// 解除されるかクライアントが諦めるまで応答しない
		select {
		case <-f.released:
		case <-r.Context().Done():
			return
		}
	case AttackDelay:
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}

	inj.next.ServeHTTP(w, r)
}
