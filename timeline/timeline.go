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

// Package timeline 轉輪動畫：連續捲動、逐欄停輪與收尾效果。
//
// 所有欄位由同一個 scheduler 擁有的 tick 迴圈推進，每個 tick 以實際經過的 dt 前進；
// 沒有任何欄位在動時 tick 迴圈會自行解除。什麼時候停輪由呼叫端決定。
// 除了建構以外，所有方法都必須在 scheduler loop 上呼叫。
package timeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/sdk/core"
	"github.com/zintix-labs/reelround/setting"
)

type Phase uint8

const (
	PhaseIdle      Phase = iota
	PhaseWaiting         // 等待本欄的起轉延遲
	PhaseScrolling       // 捲動中
	PhaseSettling        // 已換上最終圖示，收尾效果進行中
	PhaseStopped         // 靜止於最終圖示
)

var phaseName = [...]string{"idle", "waiting", "scrolling", "settling", "stopped"}

func (p Phase) String() string {
	if int(p) < len(phaseName) {
		return phaseName[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// ScrollParams 連續捲動參數。
type ScrollParams struct {
	Duration            time.Duration
	SpeedMultiplier     float64
	PerColumnStartDelay time.Duration
	UseEasing           bool
}

// SettleParams 停輪收尾參數。Scale 用於 pulse，Height 用於 bounce。
type SettleParams struct {
	Style    setting.SettleStyle
	Scale    float64
	Height   float64
	Duration time.Duration
	Delay    time.Duration
}

// ScrollFrom / SettleFrom 由桌台節奏設定轉換。
func ScrollFrom(t setting.TimingSetting) ScrollParams {
	return ScrollParams{
		Duration:            t.ScrollDuration.D(),
		SpeedMultiplier:     t.ScrollSpeed,
		PerColumnStartDelay: t.ScrollColumnDelay.D(),
		UseEasing:           !t.LinearScroll,
	}
}

func SettleFrom(s setting.SettleSetting) SettleParams {
	return SettleParams{
		Style:    s.Style,
		Scale:    s.Scale,
		Height:   s.Height,
		Duration: s.Duration.D(),
		Delay:    s.Delay.D(),
	}
}

// ColumnFrame 一欄在某個 tick 的畫面狀態。
// Symbols 由上到下，第 0 格是畫面外的緩衝格，Offset 為捲動的格內位移 [0,1)。
type ColumnFrame struct {
	Col     int
	Phase   Phase
	Symbols []string
	Offset  float64
	Scale   float64
	Bounce  float64
}

// Visible 畫面上實際看得到的圖示。
func (f ColumnFrame) Visible() []string {
	if len(f.Symbols) == 0 {
		return nil
	}
	return f.Symbols[1:]
}

// Surface 渲染端。錯誤與 panic 只會被記錄，不會中斷動畫簿記。
type Surface interface {
	DrawColumn(ColumnFrame) error
}

type nopSurface struct{}

func (nopSurface) DrawColumn(ColumnFrame) error { return nil }

type Option func(*Timeline)

func WithSurface(s Surface) Option {
	return func(t *Timeline) {
		if s != nil {
			t.surface = s
		}
	}
}

// WithBlurred 捲動時使用的模糊圖示集合。
func WithBlurred(names []string) Option {
	return func(t *Timeline) {
		if len(names) > 0 {
			t.blurred = slices.Clone(names)
		}
	}
}

func WithRNG(c *core.Core) Option {
	return func(t *Timeline) {
		if c != nil {
			t.rng = c
		}
	}
}

func WithFrameInterval(d time.Duration) Option {
	return func(t *Timeline) {
		if d > 0 {
			t.frame = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(t *Timeline) {
		if log != nil {
			t.log = log
		}
	}
}

type column struct {
	phase   Phase
	strip   []string
	pos     float64
	elapsed time.Duration
	start   sched.Timer
	gen     uint64

	settle        SettleParams
	settleWait    time.Duration
	settleElapsed time.Duration
	scale         float64
	bounce        float64
}

type Timeline struct {
	sch     sched.Scheduler
	cols    int
	rows    int
	surface Surface
	blurred []string
	rng     *core.Core
	frame   time.Duration
	log     *slog.Logger

	columns []*column
	scroll  ScrollParams

	tick     sched.Timer
	armed    bool
	lastTick time.Time
	ticks    uint64
	failures uint64
}

func New(sch sched.Scheduler, cols, rows int, opts ...Option) *Timeline {
	t := &Timeline{
		sch:     sch,
		cols:    max(1, cols),
		rows:    max(1, rows),
		surface: nopSurface{},
		blurred: []string{"blur"},
		rng:     core.Random(),
		frame:   16 * time.Millisecond,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(t)
	}
	t.columns = make([]*column, t.cols)
	for i := range t.columns {
		c := &column{scale: 1}
		c.strip = t.randomStrip()
		t.columns[i] = c
	}
	return t
}

func (t *Timeline) Columns() int { return t.cols }

func (t *Timeline) Rows() int { return t.rows }

// StartContinuousScroll 第 c 欄在 c*PerColumnStartDelay 後起轉；仍在轉的欄位會先被拆掉再重啟。
func (t *Timeline) StartContinuousScroll(p ScrollParams) {
	if p.SpeedMultiplier <= 0 {
		p.SpeedMultiplier = 1
	}
	t.scroll = p
	for i := range t.columns {
		t.teardown(i)
		c := t.columns[i]
		delay := time.Duration(i) * p.PerColumnStartDelay
		if delay <= 0 {
			t.begin(i)
			continue
		}
		c.phase = PhaseWaiting
		gen := c.gen
		col := i
		c.start = t.sch.AfterFunc(delay, func() {
			// 起轉前若已被停輪或重啟，gen 會不同
			if t.columns[col].gen != gen {
				return
			}
			t.begin(col)
		})
	}
	t.log.LogAttrs(context.Background(), slog.LevelDebug, "timeline.scroll",
		slog.Duration("duration", p.Duration),
		slog.Float64("speed", p.SpeedMultiplier),
	)
}

func (t *Timeline) begin(col int) {
	c := t.columns[col]
	c.start = nil
	c.phase = PhaseScrolling
	c.elapsed = 0
	c.pos = 0
	c.scale, c.bounce = 1, 0
	c.strip = t.randomStrip()
	t.arm()
}

// StopColumn 拆掉本欄的捲動狀態後依序換上最終圖示，Delay 後播放收尾效果。
// 已停在相同圖示上的欄位不會重播。
func (t *Timeline) StopColumn(col int, finals []string, settle SettleParams) error {
	if col < 0 || col >= t.cols {
		return errs.Warnf("column %d out of range", col)
	}
	if len(finals) != t.rows {
		return errs.Warnf("column %d expects %d symbols, got %d", col, t.rows, len(finals))
	}
	c := t.columns[col]
	if (c.phase == PhaseStopped || c.phase == PhaseSettling) && slices.Equal(c.strip[1:], finals) {
		return nil
	}
	t.teardown(col)
	c.strip = append([]string{t.randomBlur()}, finals...)
	c.pos = 0
	c.scale, c.bounce = 1, 0
	c.settle = settle
	c.settleWait = settle.Delay
	c.settleElapsed = 0
	if settle.Duration <= 0 {
		c.phase = PhaseStopped
		t.draw(col)
		return nil
	}
	c.phase = PhaseSettling
	t.draw(col)
	t.arm()
	return nil
}

// StopAllSequential 第 c 欄在 c*stagger 後停輪。scope 不為 nil 時計時器登記在 scope 上並附帶存活檢查。
// 回傳尚未觸發的計時器。
func (t *Timeline) StopAllSequential(finals [][]string, stagger time.Duration, settle SettleParams, scope *sched.Scope) []sched.Timer {
	timers := make([]sched.Timer, 0, t.cols)
	for i := 0; i < t.cols; i++ {
		col := i
		var fin []string
		if col < len(finals) {
			fin = finals[col]
		}
		stop := func() {
			if err := t.StopColumn(col, fin, settle); err != nil {
				t.log.LogAttrs(context.Background(), slog.LevelWarn, "timeline.stop", slog.Int("col", col), slog.Any("err", err))
			}
		}
		delay := time.Duration(col) * stagger
		if delay <= 0 {
			stop()
			continue
		}
		if scope != nil {
			timers = append(timers, scope.After(delay, stop))
		} else {
			timers = append(timers, t.sch.AfterFunc(delay, stop))
		}
	}
	return timers
}

// StopAllImmediate 立即停下所有欄位。finals 為 nil 時只拆掉捲動、保留目前圖示。
func (t *Timeline) StopAllImmediate(finals [][]string, settle SettleParams) {
	for i := 0; i < t.cols; i++ {
		if finals == nil || i >= len(finals) {
			t.halt(i)
			continue
		}
		if err := t.StopColumn(i, finals[i], settle); err != nil {
			t.log.LogAttrs(context.Background(), slog.LevelWarn, "timeline.stop", slog.Int("col", i), slog.Any("err", err))
			t.halt(i)
		}
	}
}

// halt 不換圖示直接靜止。
func (t *Timeline) halt(col int) {
	c := t.columns[col]
	if c.phase == PhaseIdle || c.phase == PhaseStopped {
		return
	}
	t.teardown(col)
	c.phase = PhaseStopped
	c.pos = 0
	c.scale, c.bounce = 1, 0
	t.draw(col)
}

// teardown 取消本欄等待中的起轉並讓舊世代失效。
func (t *Timeline) teardown(col int) {
	c := t.columns[col]
	if c.start != nil {
		c.start.Stop()
		c.start = nil
	}
	c.gen++
	if c.phase == PhaseWaiting || c.phase == PhaseScrolling || c.phase == PhaseSettling {
		c.phase = PhaseIdle
	}
}

func (t *Timeline) arm() {
	if t.armed {
		return
	}
	t.armed = true
	t.lastTick = t.sch.Now()
	t.tick = t.sch.AfterFunc(t.frame, t.onTick)
}

func (t *Timeline) onTick() {
	t.armed = false
	t.tick = nil
	now := t.sch.Now()
	dt := now.Sub(t.lastTick)
	t.ticks++

	busy := false
	for i, c := range t.columns {
		switch c.phase {
		case PhaseScrolling:
			t.advanceScroll(c, dt)
			busy = true
		case PhaseSettling:
			t.advanceSettle(c, dt)
			if c.phase == PhaseSettling {
				busy = true
			}
		default:
			continue
		}
		t.draw(i)
	}
	if busy {
		t.arm()
		t.lastTick = now
	}
}

func (t *Timeline) advanceScroll(c *column, dt time.Duration) {
	c.elapsed += dt
	frames := float64(t.scroll.Duration) / float64(baseFrame)
	base := float64(t.rows + 2)
	if frames > 0 {
		base /= frames
	}
	mul := 1.0
	if t.scroll.UseEasing {
		mul = speedMul(c.elapsed, t.scroll.Duration)
	}
	c.pos += base * t.scroll.SpeedMultiplier * mul * float64(dt) / float64(baseFrame)
	for c.pos >= 1 {
		// 最底下的圖示捲出畫面，頂端補一個新的模糊圖示
		copy(c.strip[1:], c.strip[:len(c.strip)-1])
		c.strip[0] = t.randomBlur()
		c.pos--
	}
}

func (t *Timeline) advanceSettle(c *column, dt time.Duration) {
	if c.settleWait > 0 {
		if dt <= c.settleWait {
			c.settleWait -= dt
			return
		}
		dt -= c.settleWait
		c.settleWait = 0
	}
	c.settleElapsed += dt
	p := clamp01(float64(c.settleElapsed) / float64(c.settle.Duration))
	switch c.settle.Style {
	case setting.SettleBounce:
		c.bounce = bounceOffset(c.settle.Height, p)
	default:
		c.scale = pulseScale(c.settle.Scale, p)
	}
	if p >= 1 {
		c.phase = PhaseStopped
		c.scale, c.bounce = 1, 0
	}
}

func (t *Timeline) draw(col int) {
	f := t.Frame(col)
	defer func() {
		if r := recover(); r != nil {
			t.failures++
			t.log.LogAttrs(context.Background(), slog.LevelError, "timeline.render.panic",
				slog.Int("col", col), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := t.surface.DrawColumn(f); err != nil {
		t.failures++
		t.log.LogAttrs(context.Background(), slog.LevelWarn, "timeline.render",
			slog.Int("col", col), slog.Any("err", err))
	}
}

func (t *Timeline) randomStrip() []string {
	s := make([]string, t.rows+1)
	for i := range s {
		s[i] = t.randomBlur()
	}
	return s
}

func (t *Timeline) randomBlur() string {
	return t.rng.PickString(t.blurred)
}

// ---- observers ----

// Active 本欄是否仍在等待起轉、捲動或收尾中。
func (t *Timeline) Active(col int) bool {
	if col < 0 || col >= t.cols {
		return false
	}
	switch t.columns[col].phase {
	case PhaseWaiting, PhaseScrolling, PhaseSettling:
		return true
	}
	return false
}

// Scrolling 是否還有欄位在等待起轉或捲動中。
func (t *Timeline) Scrolling() bool {
	for _, c := range t.columns {
		if c.phase == PhaseWaiting || c.phase == PhaseScrolling {
			return true
		}
	}
	return false
}

func (t *Timeline) Phase(col int) Phase {
	if col < 0 || col >= t.cols {
		return PhaseIdle
	}
	return t.columns[col].phase
}

func (t *Timeline) Frame(col int) ColumnFrame {
	c := t.columns[col]
	return ColumnFrame{
		Col:     col,
		Phase:   c.phase,
		Symbols: slices.Clone(c.strip),
		Offset:  c.pos,
		Scale:   c.scale,
		Bounce:  c.bounce,
	}
}

// Ticks 已執行的 tick 次數。
func (t *Timeline) Ticks() uint64 { return t.ticks }

// Armed tick 迴圈目前是否掛著。
func (t *Timeline) Armed() bool { return t.armed }

// RenderFailures Surface 回報錯誤或 panic 的次數。
func (t *Timeline) RenderFailures() uint64 { return t.failures }
