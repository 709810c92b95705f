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

package timeline

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/sdk/core"
	"github.com/zintix-labs/reelround/setting"
)

type recSurface struct {
	frames []ColumnFrame
	panicN int
	errN   int
}

func (r *recSurface) DrawColumn(f ColumnFrame) error {
	r.frames = append(r.frames, f)
	if r.panicN > 0 {
		r.panicN--
		panic("draw failed")
	}
	if r.errN > 0 {
		r.errN--
		return errors.New("draw error")
	}
	return nil
}

func (r *recSurface) last(col int) (ColumnFrame, bool) {
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Col == col {
			return r.frames[i], true
		}
	}
	return ColumnFrame{}, false
}

func newTL(v *sched.Virtual, surf Surface) *Timeline {
	return New(v, 3, 2,
		WithSurface(surf),
		WithBlurred([]string{"aBlur", "bBlur"}),
		WithRNG(core.Seeded(7)),
		WithFrameInterval(16*time.Millisecond),
	)
}

var scroll = ScrollParams{Duration: 1300 * time.Millisecond, SpeedMultiplier: 0.4, PerColumnStartDelay: 250 * time.Millisecond, UseEasing: true}

func finals() [][]string {
	return [][]string{{"A", "B"}, {"C", "D"}, {"E", "F"}}
}

func TestEasingBounds(t *testing.T) {
	if v := speedMul(0, time.Second); math.Abs(v-minSpeedMul) > 1e-9 {
		t.Fatalf("speed at start should be %v, got %v", minSpeedMul, v)
	}
	if v := speedMul(5*time.Second, time.Second); math.Abs(v-maxSpeedMul) > 1e-9 {
		t.Fatalf("speed after duration should hold at %v, got %v", maxSpeedMul, v)
	}
	if v := pulseScale(1.1, 0.5); math.Abs(v-1.1) > 1e-9 {
		t.Fatalf("pulse peak should equal scale, got %v", v)
	}
	if v := pulseScale(1.1, 1); math.Abs(v-1) > 1e-9 {
		t.Fatalf("pulse should end at 1")
	}
	if v := bounceOffset(70, 1); math.Abs(v) > 1e-9 {
		t.Fatalf("bounce should end at 0, got %v", v)
	}
}

func TestPerColumnStartDelay(t *testing.T) {
	v := sched.NewVirtual()
	tl := newTL(v, &recSurface{})
	tl.StartContinuousScroll(scroll)

	if tl.Phase(0) != PhaseScrolling || tl.Phase(1) != PhaseWaiting || tl.Phase(2) != PhaseWaiting {
		t.Fatalf("unexpected phases %v %v %v", tl.Phase(0), tl.Phase(1), tl.Phase(2))
	}
	v.Advance(250 * time.Millisecond)
	if tl.Phase(1) != PhaseScrolling || tl.Phase(2) != PhaseWaiting {
		t.Fatalf("column 1 should start at 250ms: %v %v", tl.Phase(1), tl.Phase(2))
	}
	v.Advance(250 * time.Millisecond)
	if tl.Phase(2) != PhaseScrolling {
		t.Fatalf("column 2 should start at 500ms")
	}
	if tl.Ticks() == 0 || !tl.Armed() {
		t.Fatalf("tick loop should be running")
	}
}

func TestScrollAdvancesStrip(t *testing.T) {
	v := sched.NewVirtual()
	surf := &recSurface{}
	tl := newTL(v, surf)
	tl.StartContinuousScroll(ScrollParams{Duration: 400 * time.Millisecond, SpeedMultiplier: 1})
	v.Advance(time.Second)
	f, ok := surf.last(0)
	if !ok || f.Phase != PhaseScrolling {
		t.Fatalf("column 0 should be drawn while scrolling")
	}
	if len(f.Symbols) != 3 {
		t.Fatalf("strip should hold rows+1 symbols, got %v", f.Symbols)
	}
	for _, s := range f.Symbols {
		if s != "aBlur" && s != "bBlur" {
			t.Fatalf("scrolling strip should only hold blurred symbols, got %v", f.Symbols)
		}
	}
	if f.Offset < 0 || f.Offset >= 1 {
		t.Fatalf("offset out of range %v", f.Offset)
	}
}

func TestStopTearsDownAndLoopDisarms(t *testing.T) {
	v := sched.NewVirtual()
	tl := newTL(v, &recSurface{})
	tl.StartContinuousScroll(scroll)
	v.Advance(100 * time.Millisecond)

	// 欄 1、2 還在等待起轉，停輪後不得再啟動
	tl.StopAllImmediate(finals(), SettleParams{})
	for c := 0; c < 3; c++ {
		if tl.Phase(c) != PhaseStopped {
			t.Fatalf("column %d should be stopped, got %v", c, tl.Phase(c))
		}
		if got := tl.Frame(c).Visible(); !slices.Equal(got, finals()[c]) {
			t.Fatalf("column %d shows %v", c, got)
		}
	}
	v.Advance(time.Second)
	if tl.Scrolling() || tl.Armed() {
		t.Fatalf("nothing should scroll after stop")
	}
	ticks := tl.Ticks()
	v.Advance(time.Second)
	if tl.Ticks() != ticks || v.Pending() != 0 {
		t.Fatalf("tick loop should be idle: ticks %d->%d pending %d", ticks, tl.Ticks(), v.Pending())
	}
}

func TestRestartDoesNotDuplicateTicks(t *testing.T) {
	v := sched.NewVirtual()
	tl := newTL(v, &recSurface{})
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	v.Advance(160 * time.Millisecond)
	if n := tl.Ticks(); n != 10 {
		t.Fatalf("expected one tick per frame, got %d", n)
	}
}

func TestStopIdempotent(t *testing.T) {
	v := sched.NewVirtual()
	surf := &recSurface{}
	tl := newTL(v, surf)
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	settle := SettleParams{Style: setting.SettlePulse, Scale: 1.1, Duration: 400 * time.Millisecond}
	tl.StopAllImmediate(finals(), settle)
	drawn := len(surf.frames)
	tl.StopAllImmediate(finals(), settle)
	if len(surf.frames) != drawn {
		t.Fatalf("second stop with the same symbols should be a no-op")
	}
	v.Advance(time.Second)
	for c := 0; c < 3; c++ {
		if tl.Phase(c) != PhaseStopped {
			t.Fatalf("column %d should settle to stopped", c)
		}
	}
	if err := tl.StopColumn(0, []string{"only"}, settle); err == nil {
		t.Fatalf("wrong symbol count should fail")
	}
	if err := tl.StopColumn(9, []string{"A", "B"}, settle); err == nil {
		t.Fatalf("bad column should fail")
	}
}

func TestSettlePulseAndBounce(t *testing.T) {
	v := sched.NewVirtual()
	surf := &recSurface{}
	tl := newTL(v, surf)
	_ = tl.StopColumn(0, []string{"A", "B"}, SettleParams{Style: setting.SettlePulse, Scale: 1.1, Duration: 400 * time.Millisecond})
	_ = tl.StopColumn(1, []string{"C", "D"}, SettleParams{Style: setting.SettleBounce, Height: 70, Duration: 300 * time.Millisecond, Delay: 30 * time.Millisecond})

	v.Advance(208 * time.Millisecond)
	if f := tl.Frame(0); f.Phase != PhaseSettling || f.Scale <= 1 {
		t.Fatalf("pulse should be enlarged mid-way: %+v", f)
	}
	if f := tl.Frame(1); f.Phase != PhaseSettling || f.Bounce <= 0 {
		t.Fatalf("bounce should be lifted mid-way: %+v", f)
	}
	v.Advance(time.Second)
	for c := 0; c < 2; c++ {
		f := tl.Frame(c)
		if f.Phase != PhaseStopped || f.Scale != 1 || f.Bounce != 0 {
			t.Fatalf("column %d should rest at identity: %+v", c, f)
		}
	}
	if tl.Armed() {
		t.Fatalf("tick loop should disarm once settled")
	}
}

func TestStopAllSequentialOrder(t *testing.T) {
	v := sched.NewVirtual()
	tl := newTL(v, &recSurface{})
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	v.Advance(600 * time.Millisecond)

	scope := sched.NewScope(v)
	timers := tl.StopAllSequential(finals(), 300*time.Millisecond, SettleParams{}, scope)
	if len(timers) != 2 || scope.Timers() != 2 {
		t.Fatalf("expected two pending stops, got %d/%d", len(timers), scope.Timers())
	}
	if tl.Phase(0) != PhaseStopped || tl.Phase(1) != PhaseScrolling {
		t.Fatalf("column 0 stops first")
	}
	v.Advance(300 * time.Millisecond)
	if tl.Phase(1) != PhaseStopped || tl.Phase(2) != PhaseScrolling {
		t.Fatalf("column 1 stops after one stagger")
	}
	v.Advance(300 * time.Millisecond)
	if tl.Phase(2) != PhaseStopped {
		t.Fatalf("column 2 stops last")
	}
}

func TestSequentialStopCancelledWithScope(t *testing.T) {
	v := sched.NewVirtual()
	tl := newTL(v, &recSurface{})
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	scope := sched.NewScope(v)
	tl.StopAllSequential(finals(), 300*time.Millisecond, SettleParams{}, scope)
	scope.Cancel()
	tl.StopAllImmediate(nil, SettleParams{})
	v.Advance(time.Second)
	if tl.Frame(1).Visible()[0] == "C" {
		t.Fatalf("cancelled stop must not apply final symbols")
	}
	if tl.Scrolling() {
		t.Fatalf("halt should leave nothing scrolling")
	}
}

func TestSurfaceFailureIsSurvived(t *testing.T) {
	v := sched.NewVirtual()
	surf := &recSurface{panicN: 2, errN: 2}
	tl := newTL(v, surf)
	tl.StartContinuousScroll(ScrollParams{Duration: time.Second, SpeedMultiplier: 1})
	v.Advance(200 * time.Millisecond)
	if tl.RenderFailures() != 4 {
		t.Fatalf("expected 4 render failures, got %d", tl.RenderFailures())
	}
	tl.StopAllImmediate(finals(), SettleParams{})
	if tl.Phase(2) != PhaseStopped {
		t.Fatalf("bookkeeping should continue after render failures")
	}
}
