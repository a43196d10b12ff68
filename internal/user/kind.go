package user

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind はシナリオ（ユーザーの振る舞い）の種類
type Kind int

const (
	KindBrowse  Kind = iota // 口座を閲覧する
	KindActive              // 口座を閲覧して振込を行う
	KindHistory             // 取引履歴を閲覧する
)

// Kinds は全シナリオ
var Kinds = []Kind{KindBrowse, KindActive, KindHistory}

func (k Kind) String() string {
	switch k {
	case KindBrowse:
		return "browse"
	case KindActive:
		return "active"
	case KindHistory:
		return "history"
	default:
		return "unknown"
	}
}

// ParseKind は文字列からKindを解決する
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "browse":
		return KindBrowse, nil
	case "active":
		return KindActive, nil
	case "history":
		return KindHistory, nil
	default:
		return 0, fmt.Errorf("unknown user kind: %q", s)
	}
}

// Weights はシナリオごとの重み
type Weights map[Kind]int

// DefaultWeights は 6:3:1（60% / 30% / 10%）
func DefaultWeights() Weights {
	return Weights{
		KindBrowse:  6,
		KindActive:  3,
		KindHistory: 1,
	}
}

// Total は重みの合計を返す
func (w Weights) Total() int {
	total := 0
	for _, v := range w {
		total += v
	}
	return total
}

// ErrNoWeight は選択可能なシナリオがない場合のエラー
var ErrNoWeight = errors.New("user: all scenario weights are zero")

// Validate は重みを検証する
func (w Weights) Validate() error {
	for k, v := range w {
		if v < 0 {
			return fmt.Errorf("user: weight for %s must be non-negative", k)
		}
	}
	if w.Total() == 0 {
		return ErrNoWeight
	}
	return nil
}

type mixItem struct {
	kind    Kind
	weight  int
	current int
}

// Mix は重み付きラウンドロビンでシナリオを選ぶ（smooth weighted round-robin）
// 重みの合計回数ごとに各シナリオがちょうど重み回ずつ選ばれる
type Mix struct {
	mu    sync.Mutex
	items []mixItem
	total int
}

// NewMix は新しいMixを作成する。重み0のシナリオは選ばれない
func NewMix(weights Weights) (*Mix, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	for k := range weights {
		if k < KindBrowse || k > KindHistory {
			return nil, fmt.Errorf("user: unknown kind %d in weights", int(k))
		}
	}

	m := &Mix{}
	for _, k := range Kinds {
		if w := weights[k]; w > 0 {
			m.items = append(m.items, mixItem{kind: k, weight: w})
			m.total += w
		}
	}
	// 同点のときは重い方を先に選ぶ
	sort.SliceStable(m.items, func(i, j int) bool {
		return m.items[i].weight > m.items[j].weight
	})
	return m, nil
}

// Next は次のシナリオを返す
func (m *Mix) Next() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i := range m.items {
		m.items[i].current += m.items[i].weight
		if best < 0 || m.items[i].current > m.items[best].current {
			best = i
		}
	}
	m.items[best].current -= m.total
	return m.items[best].kind
}

// Distribute はn回Nextを呼び、シナリオごとの人数を返す
func (m *Mix) Distribute(n int) map[Kind]int {
	out := make(map[Kind]int)
	for range n {
		out[m.Next()]++
	}
	return out
}
