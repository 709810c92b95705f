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

package spin

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// events 各協作端共用的呼叫紀錄，用來檢查先後順序
type events struct{ list []string }

func (e *events) add(s string) { e.list = append(e.list, s) }

func (e *events) index(s string) int { return slices.Index(e.list, s) }

type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	reward   decimal.Decimal
	winCombo string
	matrix   [][]string
	paylines []winline.Line
	failOn   string
}

func (f *fakeAPI) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.failOn == op {
		return errs.NewWarn("status 500").WithCode(errs.CodeStatus)
	}
	return nil
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) RoundStart(ctx context.Context, tableID string) (protocol.RoundStartResponse, error) {
	if err := f.record("round_start"); err != nil {
		return protocol.RoundStartResponse{}, err
	}
	return protocol.RoundStartResponse{Status: protocol.StatusOK, RoundID: "R1", Balance: d("100")}, nil
}

func (f *fakeAPI) PlaceBet(ctx context.Context, req protocol.PlaceBetRequest) (protocol.PlaceBetResponse, error) {
	if err := f.record("placebet"); err != nil {
		return protocol.PlaceBetResponse{}, err
	}
	return protocol.PlaceBetResponse{Status: protocol.StatusOK, Balance: d("100").Sub(req.Stake), WinCombo: f.winCombo, Matrix: f.matrix}, nil
}

func (f *fakeAPI) RoundEnd(ctx context.Context, req protocol.RoundEndRequest) (protocol.RoundEndResponse, error) {
	if err := f.record("round_end"); err != nil {
		return protocol.RoundEndResponse{}, err
	}
	return protocol.RoundEndResponse{Status: protocol.StatusOK, Balance: d("99").Add(f.reward), Reward: f.reward, Paylines: f.paylines}, nil
}

type fakeReels struct {
	v          *sched.Virtual
	ev         *events
	scrolls    int
	immediate  []time.Time
	sequential []time.Time
	colStops   int
}

func (r *fakeReels) StartContinuousScroll(timeline.ScrollParams) {
	r.scrolls++
	r.ev.add("scroll")
}

func (r *fakeReels) StopAllSequential(finals [][]string, stagger time.Duration, settle timeline.SettleParams, scope *sched.Scope) []sched.Timer {
	r.sequential = append(r.sequential, r.v.Now())
	r.ev.add("stop.sequential")
	var out []sched.Timer
	for c := 1; c < len(finals); c++ {
		out = append(out, scope.After(time.Duration(c)*stagger, func() { r.colStops++ }))
	}
	return out
}

func (r *fakeReels) StopAllImmediate(finals [][]string, settle timeline.SettleParams) {
	if finals == nil {
		return
	}
	r.immediate = append(r.immediate, r.v.Now())
	r.ev.add("stop.immediate")
}

type fakeBoard struct {
	ev        *events
	panicDraw bool
	drawn     [][][]winline.Coord
}

func (b *fakeBoard) RenderBoard(state.Board) { b.ev.add("render") }
func (b *fakeBoard) ClearWinLines()          { b.ev.add("clear") }
func (b *fakeBoard) DrawWinLines(lines [][]winline.Coord) {
	b.ev.add("draw")
	b.drawn = append(b.drawn, lines)
	if b.panicDraw {
		panic("missing asset")
	}
}
func (b *fakeBoard) HighlightWinningCells([][]winline.Coord, state.Board) { b.ev.add("highlight") }

type fakeControls struct{ ev *events }

func (c *fakeControls) StartSpin(auto bool) { c.ev.add("controls.start") }
func (c *fakeControls) EndSpin(auto bool)   { c.ev.add("controls.end") }

type fakePopups struct {
	lowBalance int
	bigWin     []decimal.Decimal
}

func (p *fakePopups) ShowBigWin(amount decimal.Decimal, auto bool) { p.bigWin = append(p.bigWin, amount) }
func (p *fakePopups) ShowLowBalance()                           { p.lowBalance++ }

type harness struct {
	v      *sched.Virtual
	ev     *events
	api    *fakeAPI
	reels  *fakeReels
	board  *fakeBoard
	pop    *fakePopups
	game   *state.Game
	o      *Orchestrator
	record []Outcome
}

func (h *harness) Record(o Outcome) { h.record = append(h.record, o) }

func newHarness(t *testing.T, balance string, steps ...string) *harness {
	t.Helper()
	v := sched.NewVirtual()
	ev := &events{}
	h := &harness{
		v:  v,
		ev: ev,
		api: &fakeAPI{
			reward:   d("2"),
			winCombo: "LINE0_A_2",
			matrix:   [][]string{{"A", "A", "C"}, {"D", "E", "F"}},
			paylines: []winline.Line{{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}},
		},
		reels: &fakeReels{v: v, ev: ev},
		board: &fakeBoard{ev: ev},
		pop:   &fakePopups{},
	}
	var bet []decimal.Decimal
	for _, s := range steps {
		bet = append(bet, d(s))
	}
	if len(bet) == 0 {
		bet = []decimal.Decimal{d("1")}
	}
	h.game = state.New(state.Config{
		Balance:  d(balance),
		BetSteps: bet,
		Paylines: []winline.Line{{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}},
	})
	h.game.OnReward(func(decimal.Decimal) { ev.add("reward") })
	o, err := New(Config{
		Scheduler: v,
		Game:      h.game,
		API:       h.api,
		Reels:     h.reels,
		Board:     h.board,
		Controls:  &fakeControls{ev: ev},
		Popups:    h.pop,
		Recorder:  h,
		Timing:    setting.DefaultTiming(),
		Columns:   3,
		Rows:      2,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	h.o = o
	return h
}

func recv(t *testing.T, ch <-chan Result) (Result, bool) {
	t.Helper()
	select {
	case r := <-ch:
		return r, true
	default:
		return Result{}, false
	}
}

func TestNormalRoundFlow(t *testing.T) {
	h := newHarness(t, "100")
	ch := h.o.SpinAsync(SpinOptions{})
	if h.o.Phase() != PhaseAwaitingServer || !h.game.RoundInProgress() {
		t.Fatalf("round should be awaiting server, got %v", h.o.Phase())
	}
	start := h.v.Now()
	h.v.Settle()
	if h.o.Phase() != PhaseScrolling {
		t.Fatalf("expected scrolling after exchange, got %v", h.o.Phase())
	}
	if got := h.api.calls; !slices.Equal(got, []string{"round_start", "placebet", "round_end"}) {
		t.Fatalf("unexpected call order %v", got)
	}

	h.v.Advance(999 * time.Millisecond)
	if len(h.reels.sequential) != 0 {
		t.Fatalf("stop must wait for stop_delay")
	}
	h.v.Advance(time.Millisecond)
	if len(h.reels.sequential) != 1 || h.reels.sequential[0].Sub(start) != time.Second {
		t.Fatalf("sequential stop should start at 1s, got %v", h.reels.sequential)
	}
	if h.o.Phase() != PhaseStoppingSequential {
		t.Fatalf("expected stopping phase, got %v", h.o.Phase())
	}
	h.v.Advance(1999 * time.Millisecond)
	if _, ok := recv(t, ch); ok {
		t.Fatalf("round resolved before reveal")
	}
	if h.ev.index("reward") != -1 {
		t.Fatalf("reward broadcast before reveal: %v", h.ev.list)
	}
	h.v.Advance(time.Millisecond)
	res, ok := recv(t, ch)
	if !ok || res.Err != nil {
		t.Fatalf("round should resolve, got %v %v", ok, res.Err)
	}
	if h.reels.colStops != 2 {
		t.Fatalf("all column stops should run, got %d", h.reels.colStops)
	}

	out := res.Outcome
	if out.RoundID != "R1" || !out.Reward.Equal(d("2")) || !out.Balance.Equal(d("101")) || out.Cancelled || out.Turbo {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(out.Lines.PerEntry) != 1 || len(out.Lines.PerEntry[0]) != 3 {
		t.Fatalf("last entry should highlight the whole line: %+v", out.Lines)
	}
	if out.Duration != 3*time.Second {
		t.Fatalf("unexpected duration %v", out.Duration)
	}
	if h.game.RoundInProgress() || h.game.GameStarted() || h.o.Phase() != PhaseIdle {
		t.Fatalf("round flags should be cleared")
	}
	if len(h.record) != 1 {
		t.Fatalf("outcome should be recorded once")
	}
	draw, hl, rw, end := h.ev.index("draw"), h.ev.index("highlight"), h.ev.index("reward"), h.ev.index("controls.end")
	if draw < 0 || hl < 0 || rw < draw || rw < hl || end < rw {
		t.Fatalf("reveal order broken: %v", h.ev.list)
	}
}

func TestLosingRoundDrawsNoStaleLines(t *testing.T) {
	h := newHarness(t, "100")
	h.api.paylines = []winline.Line{{{Row: 1, Col: 0}, {Row: 1, Col: 1}, {Row: 1, Col: 2}}}
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Advance(10 * time.Second)
	if res, ok := recv(t, ch); !ok || res.Err != nil {
		t.Fatalf("winning round should resolve: %v %v", ok, res.Err)
	}
	if len(h.board.drawn) != 1 || len(h.board.drawn[0]) != 1 || h.board.drawn[0][0][0] != (winline.Coord{Row: 1, Col: 0}) {
		t.Fatalf("winning round should draw its own line: %v", h.board.drawn)
	}

	// 沒中獎：權威端不帶 winCombo 也不帶線表
	h.api.winCombo = ""
	h.api.reward = d("0")
	h.api.paylines = nil
	ch = h.o.SpinAsync(SpinOptions{})
	h.v.Advance(10 * time.Second)
	res, ok := recv(t, ch)
	if !ok || res.Err != nil {
		t.Fatalf("losing round should resolve: %v %v", ok, res.Err)
	}
	if len(h.board.drawn) != 2 || len(h.board.drawn[1]) != 0 {
		t.Fatalf("losing round drew lines of the previous round: %v", h.board.drawn[1])
	}
	if len(h.game.Paylines()) != 0 || len(res.Outcome.Lines.PerEntry) != 0 {
		t.Fatalf("losing round should have no lines: %v %+v", h.game.Paylines(), res.Outcome.Lines)
	}
}

func TestSecondTriggerRefused(t *testing.T) {
	h := newHarness(t, "100")
	first := h.o.SpinAsync(SpinOptions{})
	second := h.o.SpinAsync(SpinOptions{})
	res, ok := recv(t, second)
	if !ok || !errors.Is(res.Err, ErrRoundInProgress) {
		t.Fatalf("second trigger should be refused, got %v", res.Err)
	}
	h.v.Settle()
	if h.api.count() != 3 || h.reels.scrolls != 1 {
		t.Fatalf("refused trigger must have no side effect: calls=%d scrolls=%d", h.api.count(), h.reels.scrolls)
	}
	h.v.Advance(5 * time.Second)
	if _, ok := recv(t, first); !ok {
		t.Fatalf("first round should still settle")
	}
}

func TestLowBalance(t *testing.T) {
	h := newHarness(t, "5", "10")
	ch := h.o.SpinAsync(SpinOptions{})
	res, ok := recv(t, ch)
	if !ok || !errs.IsCode(res.Err, errs.CodeLowBalance) {
		t.Fatalf("expected low balance error, got %v", res.Err)
	}
	h.v.Settle()
	if h.pop.lowBalance != 1 || h.api.count() != 0 || h.game.RoundInProgress() || h.reels.scrolls != 0 {
		t.Fatalf("low balance must not start a round: popups=%d calls=%d", h.pop.lowBalance, h.api.count())
	}
	if h.o.Phase() != PhaseIdle {
		t.Fatalf("phase should return to idle")
	}
}

func TestTurboStopsImmediately(t *testing.T) {
	h := newHarness(t, "100")
	h.game.SetTurbo(true)
	ch := h.o.SpinAsync(SpinOptions{})
	start := h.v.Now()
	h.v.Settle()
	if len(h.reels.immediate) != 1 || h.reels.immediate[0].Sub(start) >= time.Second {
		t.Fatalf("turbo should stop right after the exchange, got %v", h.reels.immediate)
	}
	if len(h.reels.sequential) != 0 {
		t.Fatalf("turbo must skip sequential stop")
	}
	h.v.Advance(500 * time.Millisecond)
	res, ok := recv(t, ch)
	if !ok || res.Err != nil || !res.Outcome.Turbo {
		t.Fatalf("turbo round should resolve after the turbo window: %v %+v", ok, res)
	}
}

func TestManualStopCancelsScheduledStops(t *testing.T) {
	h := newHarness(t, "100")
	ch := h.o.SpinAsync(SpinOptions{})
	if h.o.StopNow() {
		t.Fatalf("stop before the board is known must be a no-op")
	}
	h.v.Settle()
	h.v.Advance(time.Second)
	if len(h.reels.sequential) != 1 {
		t.Fatalf("sequential stop should have begun")
	}
	if !h.o.StopNow() {
		t.Fatalf("first stop should take effect")
	}
	if h.o.StopNow() {
		t.Fatalf("second stop should be a no-op")
	}
	if len(h.reels.immediate) != 1 {
		t.Fatalf("immediate stop should run once, got %d", len(h.reels.immediate))
	}
	res, ok := recv(t, ch)
	if !ok || res.Err != nil || !res.Outcome.Cancelled {
		t.Fatalf("cancelled round should resolve, got %v %+v", ok, res)
	}
	h.v.Advance(5 * time.Second)
	if h.reels.colStops != 0 {
		t.Fatalf("cancelled column stops must not run, got %d", h.reels.colStops)
	}
	if h.ev.index("reward") < h.ev.index("draw") {
		t.Fatalf("reward must follow the reveal: %v", h.ev.list)
	}
}

func TestManualStopWhileScrolling(t *testing.T) {
	h := newHarness(t, "100")
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Settle()
	h.v.Advance(200 * time.Millisecond)
	if !h.o.StopNow() {
		t.Fatalf("stop while scrolling should take effect")
	}
	h.v.Advance(5 * time.Second)
	if len(h.reels.sequential) != 0 {
		t.Fatalf("scheduled sequential stop must not fire after cancel")
	}
	if _, ok := recv(t, ch); !ok {
		t.Fatalf("round should resolve")
	}
}

func TestProtocolFailure(t *testing.T) {
	h := newHarness(t, "100")
	h.api.failOn = "placebet"
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Settle()
	res, ok := recv(t, ch)
	if !ok || !errs.IsCode(res.Err, errs.CodeStatus) {
		t.Fatalf("expected status error, got %v", res.Err)
	}
	if h.game.RoundInProgress() || h.o.Phase() != PhaseIdle {
		t.Fatalf("failure must clear the round")
	}
	if h.ev.index("controls.end") < 0 || h.ev.index("reward") >= 0 {
		t.Fatalf("failure should restore controls without reward: %v", h.ev.list)
	}
	if h.api.count() != 2 {
		t.Fatalf("no retry expected, got %d calls", h.api.count())
	}
	h.v.Advance(5 * time.Second)
	if len(h.reels.sequential) != 0 || len(h.record) != 0 {
		t.Fatalf("failed round must not animate stops or record")
	}
}

func TestBadMatrixShapeFails(t *testing.T) {
	h := newHarness(t, "100")
	h.api.matrix = [][]string{{"A", "B"}}
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Settle()
	res, ok := recv(t, ch)
	if !ok || !errs.IsCode(res.Err, errs.CodeSchema) {
		t.Fatalf("expected schema error, got %v", res.Err)
	}
}

func TestBigWinHold(t *testing.T) {
	h := newHarness(t, "100")
	h.api.reward = d("10")
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Settle()
	h.v.Advance(3 * time.Second)
	if len(h.pop.bigWin) != 1 || !h.pop.bigWin[0].Equal(d("10")) {
		t.Fatalf("big win popup expected, got %v", h.pop.bigWin)
	}
	if _, ok := recv(t, ch); ok {
		t.Fatalf("manual big win should hold before settling")
	}
	h.v.Advance(3 * time.Second)
	res, ok := recv(t, ch)
	if !ok || !res.Outcome.BigWin {
		t.Fatalf("round should settle after the hold")
	}
}

func TestRenderPanicDoesNotAbort(t *testing.T) {
	h := newHarness(t, "100")
	h.board.panicDraw = true
	ch := h.o.SpinAsync(SpinOptions{})
	h.v.Settle()
	h.v.Advance(3 * time.Second)
	res, ok := recv(t, ch)
	if !ok || res.Err != nil {
		t.Fatalf("render panic must not fail the round: %v", res.Err)
	}
	if h.ev.index("reward") < 0 || h.ev.index("highlight") < 0 {
		t.Fatalf("bookkeeping should continue: %v", h.ev.list)
	}
}

func TestManualSpinClearsAutoPlay(t *testing.T) {
	h := newHarness(t, "100")
	h.game.SetAutoPlay(true)
	h.o.SpinAsync(SpinOptions{})
	if h.game.AutoPlay() {
		t.Fatalf("manual spin should clear the auto-play flag")
	}
}

func TestAbortRejectsWithCanceled(t *testing.T) {
	h := newHarness(t, "100")
	ch := h.o.SpinAsync(SpinOptions{})
	if !h.o.Abort() {
		t.Fatalf("abort should hit the in-flight round")
	}
	res, ok := recv(t, ch)
	if !ok || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	h.v.Settle()
	h.v.Advance(5 * time.Second)
	if h.game.RoundInProgress() || len(h.reels.sequential) != 0 {
		t.Fatalf("aborted round must leave nothing behind")
	}
	if h.o.Abort() {
		t.Fatalf("abort with nothing in flight should be a no-op")
	}
}

func TestSpinBlockingOnLoop(t *testing.T) {
	loop := sched.NewLoop(nil)
	go loop.Run()
	defer loop.Shutdown(context.Background())

	api := &fakeAPI{reward: d("0"), matrix: [][]string{{"A", "B", "C"}, {"D", "E", "F"}}}
	g := state.New(state.Config{Balance: d("100"), BetSteps: []decimal.Decimal{d("1")}})
	g.SetTurbo(true)
	timing := setting.DefaultTiming()
	timing.TurboRevealDelay = setting.Duration(time.Millisecond)
	o, err := New(Config{
		Scheduler: loop,
		Game:      g,
		API:       api,
		Reels:     timeline.New(loop, 3, 2),
		Timing:    timing,
		Columns:   3,
		Rows:      2,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := o.Spin(ctx, SpinOptions{})
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if !out.Balance.Equal(d("99")) || out.Board.Cols() != 3 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
