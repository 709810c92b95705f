// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package autoplay 自動遊戲：旗標保持為 true 時，每回合結算後暫停一下再開下一回合。
//
// Stop 只清旗標，進行中的回合一定會自然結束；收尾延到該回合結算時才做。
// 除了 Running 與 Done，所有方法都必須在 scheduler loop 上呼叫。
package autoplay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/spin"
	"github.com/zintix-labs/reelround/state"
)

// Spinner *spin.Orchestrator 即實作。
type Spinner interface {
	SpinThen(opts spin.SpinOptions, fn func(spin.Result))
}

// Controls *controls.Panel 即實作。
type Controls interface {
	AutoPlayStopped()
}

type Config struct {
	Scheduler sched.Scheduler
	Spinner   Spinner
	Game      *state.Game
	Controls  Controls
	// Pause 回合之間的停頓，0 使用預設 500ms
	Pause time.Duration
	Log   *slog.Logger
}

const DefaultPause = 500 * time.Millisecond

type Loop struct {
	sch   sched.Scheduler
	spin  Spinner
	game  *state.Game
	ctrl  Controls
	pause time.Duration
	log   *slog.Logger

	running  atomic.Bool
	inFlight bool
	timer    sched.Timer
	gen      uint64
	limit    int
	rounds   int
	hooks    []func(spin.Result)

	doneMu sync.Mutex
	done   chan struct{}
}

func New(cfg Config) (*Loop, error) {
	if cfg.Scheduler == nil || cfg.Spinner == nil || cfg.Game == nil {
		return nil, errs.NewFatal("autoplay: scheduler, spinner and game are required").WithCode(errs.CodeConfig)
	}
	if cfg.Pause <= 0 {
		cfg.Pause = DefaultPause
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loop{
		sch:   cfg.Scheduler,
		spin:  cfg.Spinner,
		game:  cfg.Game,
		ctrl:  cfg.Controls,
		pause: cfg.Pause,
		log:   cfg.Log,
		done:  make(chan struct{}),
	}
	close(l.done)
	return l, nil
}

// Limit n 回合後自動停止，0 表示不限。下一次 Start 生效。
func (l *Loop) Limit(n int) {
	l.limit = max(0, n)
}

// OnRound 每個結算的自動回合都會呼叫 fn（包含失敗的回合）。
func (l *Loop) OnRound(fn func(spin.Result)) {
	if fn != nil {
		l.hooks = append(l.hooks, fn)
	}
}

// Running 是否有自動遊戲進行中，可在任意 goroutine 讀取。
func (l *Loop) Running() bool { return l.running.Load() }

// Done 本次自動遊戲完成收尾後關閉。
func (l *Loop) Done() <-chan struct{} {
	l.doneMu.Lock()
	defer l.doneMu.Unlock()
	return l.done
}

// Rounds 本次自動遊戲已結算的回合數。
func (l *Loop) Rounds() int { return l.rounds }

// Start 已在進行中時回傳 false。
func (l *Loop) Start() bool {
	if l.running.Load() {
		return false
	}
	l.running.Store(true)
	l.rounds = 0
	l.gen++
	l.doneMu.Lock()
	l.done = make(chan struct{})
	l.doneMu.Unlock()
	l.game.SetAutoPlay(true)
	l.log.LogAttrs(context.Background(), slog.LevelInfo, "autoplay.start", slog.Int("limit", l.limit))
	l.launch()
	return true
}

// Stop 清除旗標並取消等待中的下一回合；不會中止進行中的回合。
func (l *Loop) Stop() {
	l.game.SetAutoPlay(false)
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if !l.inFlight {
		l.cleanup()
	}
}

func (l *Loop) launch() {
	l.timer = nil
	if !l.running.Load() {
		return
	}
	if !l.game.AutoPlay() {
		l.cleanup()
		return
	}
	l.inFlight = true
	l.spin.SpinThen(spin.SpinOptions{Auto: true}, l.settled)
}

func (l *Loop) settled(res spin.Result) {
	l.inFlight = false
	l.rounds++
	for _, fn := range l.hooks {
		fn(res)
	}
	if res.Err != nil {
		l.log.LogAttrs(context.Background(), slog.LevelWarn, "autoplay.round_failed",
			slog.Int("round", l.rounds), slog.Any("err", res.Err))
		l.game.SetAutoPlay(false)
		l.cleanup()
		return
	}
	if l.limit > 0 && l.rounds >= l.limit {
		l.game.SetAutoPlay(false)
	}
	if !l.game.AutoPlay() {
		l.cleanup()
		return
	}
	gen := l.gen
	l.timer = l.sch.AfterFunc(l.pause, func() {
		// 已經送進 loop 的舊計時器由 gen 擋下
		if l.gen == gen {
			l.launch()
		}
	})
}

func (l *Loop) cleanup() {
	if !l.running.Load() {
		return
	}
	l.running.Store(false)
	// 手動回合進行中時按鈕由該回合的結算恢復
	if l.ctrl != nil && !l.game.RoundInProgress() {
		l.ctrl.AutoPlayStopped()
	}
	l.log.LogAttrs(context.Background(), slog.LevelInfo, "autoplay.stop", slog.Int("rounds", l.rounds))
	l.doneMu.Lock()
	close(l.done)
	l.doneMu.Unlock()
}
