package user

import (
	"context"
	"sync/atomic"
	"time"

	"bankload/internal/metrics"
)

// WaitTime はタスク間の思考時間（一様分布）
type WaitTime struct {
	Min time.Duration
	Max time.Duration
}

// DefaultWaitTime は 1〜3秒
func DefaultWaitTime() WaitTime {
	return WaitTime{Min: 1 * time.Second, Max: 3 * time.Second}
}

// User はシナリオに紐づいた仮想ユーザー
type User struct {
	kind       Kind
	session    *Session
	wait       WaitTime
	collectors *metrics.Collectors

	iterations atomic.Uint64
	running    atomic.Bool
}

// New は新しいUserを作成する
func New(kind Kind, session *Session, wait WaitTime) *User {
	return &User{
		kind:    kind,
		session: session,
		wait:    wait,
	}
}

// SetCollectors はユーザー数ゲージの更新先を設定する
func (u *User) SetCollectors(c *metrics.Collectors) {
	u.collectors = c
}

// Kind はシナリオを返す
func (u *User) Kind() Kind {
	return u.kind
}

// Session はセッションを返す
func (u *User) Session() *Session {
	return u.session
}

// Iterations は実行済みタスク数を返す
func (u *User) Iterations() uint64 {
	return u.iterations.Load()
}

// IsRunning は実行中かどうかを返す
func (u *User) IsRunning() bool {
	return u.running.Load()
}

// Run はコンテキストが終了するまでタスクと思考時間を繰り返す
func (u *User) Run(ctx context.Context) error {
	u.running.Store(true)
	defer u.running.Store(false)

	if u.collectors != nil {
		u.collectors.UserStarted(u.kind.String())
		defer u.collectors.UserStopped(u.kind.String())
	}

	if err := u.session.Start(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		u.session.RunTask(ctx, u.kind)
		u.iterations.Add(1)

		if !sleep(ctx, u.session.ThinkTime(u.wait.Min, u.wait.Max)) {
			return nil
		}
	}
}

// sleep はdだけ待つ。コンテキスト終了ならfalse
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
