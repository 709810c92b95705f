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

// Package spin 回合狀態機：驗證押注、與權威端交換、驅動轉輪動畫、揭示連線與派彩。
//
// 狀態轉移全部在 scheduler loop 上發生；網路交換在 sch.Go 裡執行，結果一律 Post 回 loop。
// 每個回合擁有一個 sched.Scope，回合內排程的計時器都掛在上面。
package spin

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/state"
	"github.com/zintix-labs/reelround/timeline"
	"github.com/zintix-labs/reelround/winline"
)

type Config struct {
	Scheduler sched.Scheduler
	Game      *state.Game
	API       RoundAPI
	Reels     Reels

	// 以下可省略
	Board    Board
	Controls Controls
	Popups   Popups
	Recorder Recorder

	Timing         setting.TimingSetting
	Columns        int
	Rows           int
	BigWinMultiple decimal.Decimal
	// RequestTimeout 單一請求的逾時，0 表示只受回合 Scope 約束
	RequestTimeout time.Duration
	Log            *slog.Logger
}

type Orchestrator struct {
	sch    sched.Scheduler
	game   *state.Game
	api    RoundAPI
	reels  Reels
	board  Board
	ctrl   Controls
	popups Popups
	rec    Recorder

	timing     setting.TimingSetting
	cols, rows int
	bigWinMul  decimal.Decimal
	reqTimeout time.Duration
	log        *slog.Logger

	phase atomic.Uint32
	seq   uint64
	cur   *round // loop only
}

type round struct {
	id        uint64
	auto      bool
	turbo     bool
	stake     decimal.Decimal
	scope     *sched.Scope
	started   time.Time
	finals    [][]string
	stopped   bool
	revealed  bool
	cancelled bool
	bigWin    bool
	lines     winline.Result
	hold      sched.Timer
	done      chan Result
	then      func(Result)
}

func deliver(done chan Result, then func(Result), res Result) {
	done <- res
	if then != nil {
		then(res)
	}
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Scheduler == nil || cfg.Game == nil || cfg.API == nil || cfg.Reels == nil {
		return nil, errs.NewFatal("spin: scheduler, game, api and reels are required").WithCode(errs.CodeConfig)
	}
	if cfg.Columns <= 0 || cfg.Rows <= 0 {
		return nil, errs.Fatalf("spin: invalid screen %dx%d", cfg.Columns, cfg.Rows).WithCode(errs.CodeConfig)
	}
	if err := cfg.Timing.Normalize(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		sch:        cfg.Scheduler,
		game:       cfg.Game,
		api:        cfg.API,
		reels:      cfg.Reels,
		board:      cfg.Board,
		ctrl:       cfg.Controls,
		popups:     cfg.Popups,
		rec:        cfg.Recorder,
		timing:     cfg.Timing,
		cols:       cfg.Columns,
		rows:       cfg.Rows,
		bigWinMul:  cfg.BigWinMultiple,
		reqTimeout: cfg.RequestTimeout,
		log:        cfg.Log,
	}
	if o.board == nil {
		o.board = nopBoard{}
	}
	if o.ctrl == nil {
		o.ctrl = nopControls{}
	}
	if o.popups == nil {
		o.popups = nopPopups{}
	}
	if o.rec == nil {
		o.rec = nopRecorder{}
	}
	if !o.bigWinMul.IsPositive() {
		o.bigWinMul = decimal.NewFromInt(5)
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o, nil
}

// Phase 目前回合所在階段，可在任意 goroutine 讀取。
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(uint32(p))
}

// Busy 是否有回合在進行中；只能在 loop 上呼叫。
func (o *Orchestrator) Busy() bool {
	return o.cur != nil
}

// Spin 啟動一個回合並阻塞到它結算。ctx 只約束等待，不會中止回合；中止請用 Stop 或 Shutdown。
// 不可在 loop 上呼叫。
func (o *Orchestrator) Spin(ctx context.Context, opts SpinOptions) (Outcome, error) {
	ch := make(chan (<-chan Result), 1)
	o.sch.Post(func() { ch <- o.SpinAsync(opts) })
	var res <-chan Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case r := <-res:
		return r.Outcome, r.Err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// SpinAsync 在 loop 上啟動回合，回傳的 channel 恰好收到一個 Result。
func (o *Orchestrator) SpinAsync(opts SpinOptions) <-chan Result {
	return o.begin(opts, nil)
}

// SpinThen 同 SpinAsync，回合結算時在 loop 上以結果呼叫 fn。
// 被拒絕的回合（忙碌中、餘額不足）會在返回前就呼叫 fn。
func (o *Orchestrator) SpinThen(opts SpinOptions, fn func(Result)) {
	o.begin(opts, fn)
}

func (o *Orchestrator) begin(opts SpinOptions, then func(Result)) <-chan Result {
	done := make(chan Result, 1)
	reject := func(err error) <-chan Result {
		deliver(done, then, Result{Err: err})
		return done
	}

	if o.cur != nil || o.game.RoundInProgress() {
		o.log.LogAttrs(context.Background(), slog.LevelDebug, "round.busy")
		return reject(ErrRoundInProgress)
	}

	o.setPhase(PhaseValidatingStake)
	stake, balance := o.game.Stake(), o.game.Balance()
	if stake.GreaterThan(balance) {
		o.setPhase(PhaseIdle)
		o.log.LogAttrs(context.Background(), slog.LevelInfo, "round.low_balance",
			slog.String("stake", stake.String()),
			slog.String("balance", balance.String()),
		)
		o.safe("popups.low_balance", o.popups.ShowLowBalance)
		return reject(ErrLowBalance)
	}
	if !o.game.TryBeginRound() {
		o.setPhase(PhaseIdle)
		return reject(ErrRoundInProgress)
	}

	if !opts.Auto && o.game.AutoPlay() {
		o.game.SetAutoPlay(false)
	}
	o.seq++
	r := &round{
		id:      o.seq,
		auto:    opts.Auto,
		stake:   stake,
		scope:   sched.NewScope(o.sch),
		started: o.sch.Now(),
		done:    done,
		then:    then,
	}
	o.cur = r
	o.setPhase(PhaseAwaitingServer)
	o.log.LogAttrs(context.Background(), slog.LevelInfo, "round.start",
		slog.Uint64("seq", r.id),
		slog.Bool("auto", r.auto),
		slog.String("stake", stake.String()),
	)

	autoActive := o.game.AutoPlay()
	o.safe("controls.start", func() { o.ctrl.StartSpin(autoActive) })
	o.safe("board.clear", o.board.ClearWinLines)
	o.reels.StopAllImmediate(nil, timeline.SettleParams{})
	o.reels.StartContinuousScroll(timeline.ScrollFrom(o.timing))

	tableID := o.game.TableID()
	o.sch.Go(func() { o.exchange(r, tableID) })
	return done
}

// exchange 在背景依序送出 round_start、placebet、round_end；每段回應都 Post 回 loop 套用。
func (o *Orchestrator) exchange(r *round, tableID string) {
	ctx := r.scope.Context()

	start, err := call(ctx, o.reqTimeout, func(ctx context.Context) (protocol.RoundStartResponse, error) {
		return o.api.RoundStart(ctx, tableID)
	})
	if err != nil {
		o.post(r, func() { o.fail(r, errs.Wrap(err, "round start")) })
		return
	}
	o.post(r, func() { o.game.ApplyRoundStart(start) })

	bet, err := call(ctx, o.reqTimeout, func(ctx context.Context) (protocol.PlaceBetResponse, error) {
		return o.api.PlaceBet(ctx, protocol.PlaceBetRequest{RoundID: start.RoundID, TableID: tableID, Stake: r.stake})
	})
	if err != nil {
		o.post(r, func() { o.fail(r, errs.Wrap(err, "place bet")) })
		return
	}
	o.post(r, func() { o.game.ApplyPlaceBet(bet) })

	end, err := call(ctx, o.reqTimeout, func(ctx context.Context) (protocol.RoundEndResponse, error) {
		return o.api.RoundEnd(ctx, protocol.RoundEndRequest{TableID: tableID, RoundID: start.RoundID, ResultString: bet.WinCombo})
	})
	if err != nil {
		o.post(r, func() { o.fail(r, errs.Wrap(err, "round end")) })
		return
	}
	o.post(r, func() {
		o.game.ApplyRoundEnd(end)
		o.exchanged(r)
	})
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// post 把 fn 排回 loop；回合已結束或被中止時丟棄。
func (o *Orchestrator) post(r *round, fn func()) {
	o.sch.Post(func() {
		if o.cur != r || !r.scope.IsLive() {
			return
		}
		fn()
	})
}

// exchanged 三段交換都成功，最終盤面已知。
func (o *Orchestrator) exchanged(r *round) {
	board := o.game.Matrix()
	if board.Rows() != o.rows || board.Cols() != o.cols {
		err := errs.Warnf("matrix is %dx%d, table is %dx%d", board.Cols(), board.Rows(), o.cols, o.rows).WithCode(errs.CodeSchema)
		o.fail(r, err)
		return
	}
	r.finals = make([][]string, o.cols)
	for c := range r.finals {
		r.finals[c] = board.Column(c)
	}
	r.turbo = o.game.Turbo()

	if r.turbo {
		o.setPhase(PhaseStoppingSequential)
		o.log.LogAttrs(context.Background(), slog.LevelDebug, "round.stop", slog.Uint64("seq", r.id), slog.Bool("turbo", true))
		o.reels.StopAllImmediate(r.finals, timeline.SettleFrom(o.timing.TurboSettle))
		r.scope.After(o.timing.TurboRevealDelay.D(), func() { o.reveal(r) })
		return
	}

	o.setPhase(PhaseScrolling)
	r.scope.After(o.timing.StopDelay.D(), func() {
		o.setPhase(PhaseStoppingSequential)
		o.log.LogAttrs(context.Background(), slog.LevelDebug, "round.stop", slog.Uint64("seq", r.id), slog.Bool("turbo", false))
		o.reels.StopAllSequential(r.finals, o.timing.StopColumnDelay.D(), timeline.SettleFrom(o.timing.Settle), r.scope)
		r.scope.After(o.timing.RevealDelay.D(), func() { o.reveal(r) })
	})
}

// StopNow 手動停輪：最終盤面已知後才有效，第二次呼叫或其他階段皆不做任何事。
// 只能在 loop 上呼叫。
func (o *Orchestrator) StopNow() bool {
	r := o.cur
	if r == nil || r.finals == nil || r.stopped || r.revealed {
		return false
	}
	switch o.Phase() {
	case PhaseScrolling, PhaseStoppingSequential:
	default:
		return false
	}
	r.stopped = true
	r.cancelled = true
	r.scope.Cancel()
	o.setPhase(PhaseCancelled)
	o.log.LogAttrs(context.Background(), slog.LevelInfo, "round.stop.manual", slog.Uint64("seq", r.id))
	o.reels.StopAllImmediate(r.finals, timeline.SettleFrom(o.timing.TurboSettle))
	o.reveal(r)
	return true
}

// Stop 由其他 goroutine 要求手動停輪，回傳是否生效。
func (o *Orchestrator) Stop(ctx context.Context) bool {
	ch := make(chan bool, 1)
	o.sch.Post(func() { ch <- o.StopNow() })
	select {
	case ok := <-ch:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) reveal(r *round) {
	if o.cur != r || r.revealed {
		return
	}
	r.revealed = true
	if !r.cancelled {
		o.setPhase(PhaseRevealing)
	}

	board := o.game.Matrix()
	o.safe("board.render", func() { o.board.RenderBoard(board) })
	r.lines = winline.Resolve(o.game.WinCombo(), o.game.Paylines(), o.log)
	o.safe("board.draw_lines", func() { o.board.DrawWinLines(r.lines.ForDisplay) })
	o.safe("board.highlight", func() { o.board.HighlightWinningCells(r.lines.PerEntry, board) })

	// 連線畫完之後才廣播派彩與餘額
	o.game.TriggerRewardListeners()
	o.game.TriggerBalanceListeners()

	reward := o.game.Reward()
	o.log.LogAttrs(context.Background(), slog.LevelInfo, "round.reveal",
		slog.Uint64("seq", r.id),
		slog.String("round_id", o.game.RoundID()),
		slog.String("reward", reward.String()),
		slog.Int("lines", len(r.lines.PerEntry)),
	)
	if reward.GreaterThan(r.stake.Mul(o.bigWinMul)) {
		r.bigWin = true
		o.safe("popups.big_win", func() { o.popups.ShowBigWin(reward, r.auto) })
		hold := o.timing.BigWinHoldManual.D()
		if r.auto {
			hold = o.timing.BigWinHoldAuto.D()
		}
		// 手動停輪時 scope 已取消，所以不掛在 scope 上
		r.hold = o.sch.AfterFunc(hold, func() { o.finish(r) })
		return
	}
	o.finish(r)
}

func (o *Orchestrator) finish(r *round) {
	if o.cur != r {
		return
	}
	o.safe("controls.end", func() { o.ctrl.EndSpin(o.game.AutoPlay()) })
	o.game.SetRoundInProgress(false)
	o.game.SetGameStarted(false)

	out := Outcome{
		RoundID:   o.game.RoundID(),
		Stake:     r.stake,
		Reward:    o.game.Reward(),
		Balance:   o.game.Balance(),
		Board:     o.game.Matrix(),
		WinCombo:  o.game.WinCombo(),
		Lines:     r.lines,
		Turbo:     r.turbo,
		Cancelled: r.cancelled,
		Auto:      r.auto,
		BigWin:    r.bigWin,
		Duration:  o.sch.Now().Sub(r.started),
		SettledAt: o.sch.Now(),
	}
	o.cur = nil
	r.scope.Cancel()
	o.setPhase(PhaseIdle)
	o.safe("recorder", func() { o.rec.Record(out) })
	o.log.LogAttrs(context.Background(), slog.LevelInfo, "round.end",
		slog.Uint64("seq", r.id),
		slog.Bool("cancelled", out.Cancelled),
		slog.Bool("big_win", out.BigWin),
		slog.Duration("elapsed", out.Duration),
	)
	deliver(r.done, r.then, Result{Outcome: out})
}

// fail 交換失敗或被中止：拆掉動畫、恢復按鈕，回合以錯誤結束，不重試。
func (o *Orchestrator) fail(r *round, err error) {
	if o.cur != r {
		return
	}
	r.scope.Cancel()
	if r.hold != nil {
		r.hold.Stop()
	}
	o.reels.StopAllImmediate(nil, timeline.SettleParams{})
	o.safe("controls.end", func() { o.ctrl.EndSpin(o.game.AutoPlay()) })
	o.game.SetRoundInProgress(false)
	o.game.SetGameStarted(false)
	o.cur = nil
	o.setPhase(PhaseIdle)

	lv := slog.LevelError
	if e, ok := errs.AsErr(err); ok && e.ErrLv != errs.Fatal {
		lv = slog.LevelWarn
	}
	o.log.LogAttrs(context.Background(), lv, "round.fail", slog.Uint64("seq", r.id), slog.Any("err", err))
	if fr, ok := o.rec.(FailureRecorder); ok {
		o.safe("recorder", func() { fr.RecordFailure(err) })
	}
	deliver(r.done, r.then, Result{Err: err})
}

// Abort 中止進行中的回合，回合以 context.Canceled 結束。只能在 loop 上呼叫。
func (o *Orchestrator) Abort() bool {
	r := o.cur
	if r == nil {
		return false
	}
	o.fail(r, errs.Wrap(context.Canceled, "round aborted"))
	return true
}

// Shutdown 中止進行中的回合並等它結束。
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	ch := make(chan struct{})
	o.sch.Post(func() {
		o.Abort()
		close(ch)
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// safe 呼叫外部繪製端；panic 只記錄，不影響回合簿記。
func (o *Orchestrator) safe(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errs.Logf("%s panicked: %v", what, r).WithCode(errs.CodeRender)
			o.log.LogAttrs(context.Background(), slog.LevelError, "round.render", slog.Any("err", err))
		}
	}()
	fn()
}
