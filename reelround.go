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

// Package reelround 提供單一桌台客戶端的「組裝入口（assembler）」。
//
// Table 把下列元件組裝在同一條 scheduler loop 上：
//  1. state.Game：共享遊戲狀態（餘額、押注、盤面、旗標）。
//  2. timeline.Timeline：轉輪動畫。
//  3. controls.Panel：按鈕狀態。
//  4. spin.Orchestrator：回合狀態機，負責與權威端交換結果。
//  5. autoplay.Loop：自動遊戲。
//  6. recorder.RoundRecorder：回合紀錄與統計。
//
// 權威端（RoundAPI）由呼叫端注入，通常是跑在 websocket 上的 *protocol.Client。
//
// 典型使用情境：
//
//	t, _ := reelround.New(ts, client, reelround.WithLogger(log))
//	go t.Run()
//	out, err := t.Spin(ctx)
//	...
//	t.Shutdown(ctx)
//
// Table 的公開方法可在任意 goroutine 呼叫，但不可在 loop 上（例如 Sink、Surface 回呼內）呼叫會等待 loop 的方法。
package reelround

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/autoplay"
	"github.com/zintix-labs/reelround/controls"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/recorder"
	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/sdk/core"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/spin"
	"github.com/zintix-labs/reelround/state"
	"github.com/zintix-labs/reelround/timeline"
)

var ErrAutoPlayRunning = errs.NewWarn("auto-play already running").WithCode(errs.CodeRoundBusy)

type options struct {
	log            *slog.Logger
	sch            sched.Scheduler
	board          spin.Board
	popups         spin.Popups
	sink           controls.Sink
	surface        timeline.Surface
	rng            *core.Core
	recCap         int
	requestTimeout time.Duration
}

// Option 調整 New 的組裝方式。
type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithScheduler 使用外部的 scheduler，Table 不會管理它的生命週期（Run 直接返回）。
func WithScheduler(s sched.Scheduler) Option {
	return func(o *options) { o.sch = s }
}

func WithBoard(b spin.Board) Option {
	return func(o *options) { o.board = b }
}

func WithPopups(p spin.Popups) Option {
	return func(o *options) { o.popups = p }
}

// WithControlSink 按鈕狀態改變時通知 UI。
func WithControlSink(s controls.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithSurface 轉輪每一格畫面的輸出端。
func WithSurface(s timeline.Surface) Option {
	return func(o *options) { o.surface = s }
}

// WithRNG 轉輪捲動時的模糊圖示亂數來源（只影響畫面，不影響結果）。
func WithRNG(c *core.Core) Option {
	return func(o *options) { o.rng = c }
}

// WithRecorderCap 最近回合保留數，預設 recorder.DefaultCapacity。
func WithRecorderCap(n int) Option {
	return func(o *options) { o.recCap = n }
}

// WithRequestTimeout 單一請求的逾時。
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// Table 一張桌台的客戶端執行期。
type Table struct {
	ts    *setting.TableSetting
	sch   sched.Scheduler
	loop  *sched.Loop // 僅在 Table 自己建立 loop 時非 nil
	log   *slog.Logger
	game  *state.Game
	reels *timeline.Timeline
	panel *controls.Panel
	orch  *spin.Orchestrator
	auto  *autoplay.Loop
	rec   *recorder.RoundRecorder
}

// New 組裝一張桌台。ts 必須是已通過驗證的設定（由 catalog 或 setting.ParseByExt 取得）。
func New(ts *setting.TableSetting, api spin.RoundAPI, opts ...Option) (*Table, error) {
	if ts == nil || api == nil {
		return nil, errs.NewFatal("reelround: table setting and round api are required").WithCode(errs.CodeConfig)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := o.log.With(slog.String("table", ts.Table.TableID))

	t := &Table{ts: ts, log: log}
	if o.sch == nil {
		t.loop = sched.NewLoop(log)
		o.sch = t.loop
	}
	t.sch = o.sch

	timing := ts.Timing
	if err := timing.Normalize(); err != nil {
		return nil, err
	}

	t.game = state.FromSetting(ts, log)

	topts := []timeline.Option{
		timeline.WithBlurred(ts.Symbols.Blurred),
		timeline.WithFrameInterval(timing.FrameInterval.D()),
		timeline.WithLogger(log),
	}
	if o.surface != nil {
		topts = append(topts, timeline.WithSurface(o.surface))
	}
	if o.rng != nil {
		topts = append(topts, timeline.WithRNG(o.rng))
	}
	t.reels = timeline.New(t.sch, ts.Screen.Columns, ts.Screen.Rows, topts...)

	t.panel = controls.NewPanel(o.sink, log)

	rec, err := recorder.NewRoundRecorder(ts.Table.TableID, ts.Table.Name, ts.Bet.Balance(), o.recCap)
	if err != nil {
		return nil, err
	}
	t.rec = rec

	t.orch, err = spin.New(spin.Config{
		Scheduler:      t.sch,
		Game:           t.game,
		API:            api,
		Reels:          t.reels,
		Board:          o.board,
		Controls:       t.panel,
		Popups:         o.popups,
		Recorder:       t.rec,
		Timing:         timing,
		Columns:        ts.Screen.Columns,
		Rows:           ts.Screen.Rows,
		BigWinMultiple: ts.Bet.BigWin(),
		RequestTimeout: o.requestTimeout,
		Log:            log,
	})
	if err != nil {
		return nil, err
	}

	t.auto, err = autoplay.New(autoplay.Config{
		Scheduler: t.sch,
		Spinner:   t.orch,
		Game:      t.game,
		Controls:  t.panel,
		Pause:     timing.AutoPlayPause.D(),
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Run 阻塞執行 loop 直到 Shutdown。使用外部 scheduler 時直接返回 nil。
func (t *Table) Run() error {
	if t.loop == nil {
		return nil
	}
	return t.loop.Run()
}

// Shutdown 停止自動遊戲、中止進行中的回合，再關閉 loop。
func (t *Table) Shutdown(ctx context.Context) error {
	err := t.onLoop(ctx, func() {
		t.auto.Stop()
		t.orch.Abort()
	})
	if t.loop == nil {
		return err
	}
	if lerr := t.loop.Shutdown(ctx); lerr != nil {
		return lerr
	}
	return err
}

// Spin 開一個手動回合並等待結算。自動遊戲進行中時會先清掉自動旗標。
func (t *Table) Spin(ctx context.Context) (spin.Outcome, error) {
	return t.orch.Spin(ctx, spin.SpinOptions{})
}

// Stop 提前停輪，只在結果已到且轉輪尚未全部停下時有效。
func (t *Table) Stop(ctx context.Context) bool {
	return t.orch.Stop(ctx)
}

// StartAutoPlay 開始自動遊戲，limit 為 0 表示不限回合。回傳的 channel 在自動遊戲收尾後關閉。
func (t *Table) StartAutoPlay(ctx context.Context, limit int) (<-chan struct{}, error) {
	var (
		done <-chan struct{}
		err  error
	)
	werr := t.onLoop(ctx, func() {
		if t.orch.Busy() {
			err = spin.ErrRoundInProgress
			return
		}
		t.auto.Limit(limit)
		if !t.auto.Start() {
			err = ErrAutoPlayRunning
			return
		}
		done = t.auto.Done()
	})
	if werr != nil {
		return nil, werr
	}
	return done, err
}

// StopAutoPlay 清除自動旗標；進行中的回合會自然結束。
func (t *Table) StopAutoPlay(ctx context.Context) error {
	return t.onLoop(ctx, t.auto.Stop)
}

// AutoPlayRunning 自動遊戲是否尚未收尾。
func (t *Table) AutoPlayRunning() bool { return t.auto.Running() }

// OnAutoRound 每個結算的自動回合都會在 loop 上呼叫 fn。
func (t *Table) OnAutoRound(ctx context.Context, fn func(spin.Result)) error {
	return t.onLoop(ctx, func() { t.auto.OnRound(fn) })
}

func (t *Table) SetTurbo(on bool) {
	t.game.SetTurbo(on)
	t.log.LogAttrs(context.Background(), slog.LevelDebug, "table.turbo", slog.Bool("on", on))
}

// CycleBetUp 押注往上一級（到頂回到最低）。押注按鈕鎖住時不變並回傳 false。
func (t *Table) CycleBetUp() (decimal.Decimal, bool) {
	if t.panel.Disabled(controls.BetPlus) {
		return t.game.Stake(), false
	}
	return t.game.CycleBetUp(), true
}

// CycleBetDown 押注往下一級（到底回到最高）。押注按鈕鎖住時不變並回傳 false。
func (t *Table) CycleBetDown() (decimal.Decimal, bool) {
	if t.panel.Disabled(controls.BetMinus) {
		return t.game.Stake(), false
	}
	return t.game.CycleBetDown(), true
}

// State 目前狀態的唯讀複本。
func (t *Table) State() state.Snapshot { return t.game.Snapshot() }

func (t *Table) Recorder() *recorder.RoundRecorder { return t.rec }

// Game 提供訂閱餘額、派彩等事件。
func (t *Table) Game() *state.Game { return t.game }

func (t *Table) Controls() *controls.Panel { return t.panel }

func (t *Table) Setting() *setting.TableSetting { return t.ts }

// Phase 目前回合所在階段。
func (t *Table) Phase() spin.Phase { return t.orch.Phase() }

// onLoop 在 loop 上執行 fn 並等待完成。
func (t *Table) onLoop(ctx context.Context, fn func()) error {
	ch := make(chan struct{})
	t.sch.Post(func() {
		fn()
		close(ch)
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for table loop").WithCode(errs.CodeTimeout)
	}
}
