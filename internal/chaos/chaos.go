package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bankload/internal/events"
	"bankload/internal/logger"
)

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackOutage AttackType = iota
	AttackStall
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackOutage:
		return "outage"
	case AttackStall:
		return "stall"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParseAttackType は文字列から攻撃タイプを解決する
func ParseAttackType(s string) (AttackType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outage":
		return AttackOutage, nil
	case "stall":
		return AttackStall, nil
	case "delay":
		return AttackDelay, nil
	default:
		return 0, fmt.Errorf("unknown attack type: %s", s)
	}
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 同時攻撃対象数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
	FaultDuration time.Duration // 障害の継続時間（0で停止時まで継続）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      10 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackOutage, AttackStall, AttackDelay},
		DelayDuration: 500 * time.Millisecond,
		FaultDuration: 3 * time.Second,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
	Active       int               `json:"active_faults"`
}

// Monkey はInjectorに対して定期的に障害を注入する
type Monkey struct {
	config   Config
	injector *Injector
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	attackCount  uint64
	attackByType map[AttackType]uint64
	lastAttack   time.Time
	faulted      map[string]activeFault
}

type activeFault struct {
	attack AttackType
	since  time.Time
}

// New は新しいChaosMonkeyを作成する
func New(injector *Injector, config Config) *Monkey {
	return &Monkey{
		config:       config,
		injector:     injector,
		attackByType: make(map[AttackType]uint64),
		faulted:      make(map[string]activeFault),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start はカオス注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.attackLoop()

	if m.config.FaultDuration > 0 {
		m.wg.Add(1)
		go m.recoverLoop()
	}

	logger.Info("", "ChaosMonkey started (interval: %v, targets: %d)",
		m.config.Interval, m.config.TargetCount)
}

// Stop はカオス注入を停止し、残っている障害を解除する
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	m.recoverAll()

	logger.Info("", "ChaosMonkey stopped (total attacks: %d)", m.AttackCount())
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// recoverLoop は継続時間が経過した障害を解除する
func (m *Monkey) recoverLoop() {
	defer m.wg.Done()

	interval := m.config.FaultDuration / 4
	if interval > 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndRecover()
		}
	}
}

// attack は攻撃を実行する
func (m *Monkey) attack() {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return
	}

	attackType := m.selectAttackType()

	for _, t := range targets {
		m.executeAttack(t, attackType)
	}

	m.mu.Lock()
	m.attackCount++
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// selectTargets は障害が注入されていない対象から攻撃対象を選択する
func (m *Monkey) selectTargets() []string {
	m.mu.RLock()
	healthy := make([]string, 0)
	for _, t := range m.injector.Targets() {
		if _, ok := m.faulted[t]; !ok {
			healthy = append(healthy, t)
		}
	}
	m.mu.RUnlock()

	if len(healthy) == 0 {
		return nil
	}

	// ターゲット数を調整
	count := m.config.TargetCount
	if count > len(healthy) {
		count = len(healthy)
	}

	// ランダムに選択
	rand.Shuffle(len(healthy), func(i, j int) {
		healthy[i], healthy[j] = healthy[j], healthy[i]
	})

	return healthy[:count]
}

// selectAttackType は攻撃タイプをランダムに選択する
func (m *Monkey) selectAttackType() AttackType {
	if len(m.config.AttackTypes) == 0 {
		return AttackOutage
	}
	return m.config.AttackTypes[rand.Intn(len(m.config.AttackTypes))]
}

// executeAttack は指定された攻撃を実行する
func (m *Monkey) executeAttack(target string, attackType AttackType) {
	var delay time.Duration
	if attackType == AttackDelay {
		delay = m.config.DelayDuration
	}
	m.injector.Inject(target, attackType, delay)

	m.mu.Lock()
	m.faulted[target] = activeFault{attack: attackType, since: time.Now()}
	m.attackByType[attackType]++
	m.mu.Unlock()

	if delay > 0 {
		logger.Warn("", "ChaosMonkey: injected %v delay into %s", delay, target)
	} else {
		logger.Warn("", "ChaosMonkey: injected %s into %s", attackType, target)
	}
	m.publishEvent(events.NewChaosAttackEvent(target, attackType.String(), delay))
}

// checkAndRecover は継続時間が経過した障害を解除する
func (m *Monkey) checkAndRecover() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for target, f := range m.faulted {
		if now.Sub(f.since) >= m.config.FaultDuration {
			if m.injector.Clear(target) {
				logger.Info("", "ChaosMonkey: %s on %s recovered", f.attack, target)
				m.publishEvent(events.NewChaosRecoveredEvent(target, f.attack.String()))
			}
			delete(m.faulted, target)
		}
	}
}

// recoverAll は全ての障害を解除する
func (m *Monkey) recoverAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for target, f := range m.faulted {
		if m.injector.Clear(target) {
			logger.Info("", "ChaosMonkey: %s on %s recovered on shutdown", f.attack, target)
			m.publishEvent(events.NewChaosRecoveredEvent(target, f.attack.String()))
		}
	}
	m.faulted = make(map[string]activeFault)
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
		Active:       len(m.faulted),
	}
}
