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

// Package state 桌台共享狀態：餘額、押注、回合資料與模式旗標，以及各類變更通知。
//
// 寫入只發生在 scheduler loop 上（協定回應套用與回合狀態轉換），
// 內部鎖只是讓其他 goroutine 的唯讀觀察者（狀態 API、CLI）不產生 data race。
// listener 一律在鎖外呼叫。
package state

import (
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/winline"
)

// Board 盤面，rows x columns 的圖示代碼。
type Board [][]string

func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	for i, row := range b {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (b Board) Rows() int { return len(b) }

func (b Board) Cols() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Column 取出第 col 欄由上到下的圖示；缺格以空字串補齊。
func (b Board) Column(col int) []string {
	out := make([]string, len(b))
	for r, row := range b {
		if col >= 0 && col < len(row) {
			out[r] = row[col]
		}
	}
	return out
}

// Config 建立 Game 的初始值。
type Config struct {
	TableID    string
	Balance    decimal.Decimal
	BetSteps   []decimal.Decimal
	StakeIndex int
	Paylines   []winline.Line
	Log        *slog.Logger
}

// Game 共享狀態。
type Game struct {
	log *slog.Logger

	mu              sync.RWMutex
	tableID         string
	roundID         string
	balance         decimal.Decimal
	reward          decimal.Decimal
	matrix          Board
	winCombo        string
	paylines        []winline.Line
	turbo           bool
	autoPlay        bool
	roundInProgress bool
	gameStarted     bool
	steps           []decimal.Decimal
	stakeIdx        int

	balanceL  listeners[decimal.Decimal]
	rewardL   listeners[decimal.Decimal]
	stakeL    listeners[decimal.Decimal]
	betStepsL listeners[[]decimal.Decimal]
	startedL  listeners[struct{}]
	endedL    listeners[struct{}]
}

func New(cfg Config) *Game {
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.TableID == "" {
		cfg.TableID = setting.DefaultTableID
	}
	if len(cfg.BetSteps) == 0 {
		for _, s := range setting.DefaultBetSteps {
			cfg.BetSteps = append(cfg.BetSteps, decimal.RequireFromString(s))
		}
		cfg.StakeIndex = 9
	}
	if cfg.StakeIndex < 0 || cfg.StakeIndex >= len(cfg.BetSteps) {
		cfg.StakeIndex = 0
	}
	g := &Game{
		log:      cfg.Log,
		tableID:  cfg.TableID,
		balance:  cfg.Balance,
		steps:    append([]decimal.Decimal(nil), cfg.BetSteps...),
		stakeIdx: cfg.StakeIndex,
		paylines: cloneLines(cfg.Paylines),
	}
	g.balanceL.name = "balance"
	g.rewardL.name = "reward"
	g.stakeL.name = "stake"
	g.betStepsL.name = "bet_steps"
	g.startedL.name = "game_started"
	g.endedL.name = "game_ended"
	return g
}

// FromSetting 以桌台設定建立 Game。
func FromSetting(ts *setting.TableSetting, log *slog.Logger) *Game {
	return New(Config{
		TableID:    ts.Table.TableID,
		Balance:    ts.Bet.Balance(),
		BetSteps:   ts.Bet.StepValues(),
		StakeIndex: ts.Bet.DefaultIndex,
		Paylines:   ts.Lines(),
		Log:        log,
	})
}

// ---- getters ----

func (g *Game) TableID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tableID
}

func (g *Game) RoundID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roundID
}

func (g *Game) Balance() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance
}

func (g *Game) Reward() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reward
}

func (g *Game) Stake() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.steps[g.stakeIdx]
}

func (g *Game) StakeIndex() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stakeIdx
}

func (g *Game) BetSteps() []decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]decimal.Decimal(nil), g.steps...)
}

func (g *Game) Matrix() Board {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.matrix.Clone()
}

func (g *Game) WinCombo() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.winCombo
}

func (g *Game) Paylines() []winline.Line {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneLines(g.paylines)
}

func (g *Game) Turbo() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.turbo
}

func (g *Game) AutoPlay() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.autoPlay
}

func (g *Game) RoundInProgress() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roundInProgress
}

func (g *Game) GameStarted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gameStarted
}

// ---- balance / reward ----

// SetBalance 值有變動才通知 balance listener。
func (g *Game) SetBalance(v decimal.Decimal) {
	g.mu.Lock()
	changed := !g.balance.Equal(v)
	g.balance = v
	g.mu.Unlock()
	if changed {
		g.balanceL.emit(g.log, v)
	}
}

// StoreBalance 只寫入，不通知。
func (g *Game) StoreBalance(v decimal.Decimal) {
	g.mu.Lock()
	g.balance = v
	g.mu.Unlock()
}

// StoreReward 只寫入，不通知；派彩要等中獎線揭示後才由 TriggerRewardListeners 廣播。
func (g *Game) StoreReward(v decimal.Decimal) {
	g.mu.Lock()
	g.reward = v
	g.mu.Unlock()
}

func (g *Game) TriggerRewardListeners() {
	g.rewardL.emit(g.log, g.Reward())
}

func (g *Game) TriggerBalanceListeners() {
	g.balanceL.emit(g.log, g.Balance())
}

// ---- bet ----

func (g *Game) SetStakeIndex(i int) error {
	g.mu.Lock()
	if i < 0 || i >= len(g.steps) {
		g.mu.Unlock()
		return errs.Warnf("stake index %d out of range [0,%d)", i, len(g.steps))
	}
	g.stakeIdx = i
	stake := g.steps[i]
	g.mu.Unlock()
	g.stakeL.emit(g.log, stake)
	return nil
}

// CycleBetUp 循環到下一個押注級距，最後一格回到第一格。
func (g *Game) CycleBetUp() decimal.Decimal {
	return g.cycle(1)
}

// CycleBetDown 循環到上一個押注級距，第一格回到最後一格。
func (g *Game) CycleBetDown() decimal.Decimal {
	return g.cycle(-1)
}

func (g *Game) cycle(step int) decimal.Decimal {
	g.mu.Lock()
	n := len(g.steps)
	g.stakeIdx = (g.stakeIdx + step + n) % n
	stake := g.steps[g.stakeIdx]
	g.mu.Unlock()
	g.stakeL.emit(g.log, stake)
	return stake
}

// SetBetSteps 替換押注級距；目前索引超出範圍時回到 0。
func (g *Game) SetBetSteps(steps []decimal.Decimal) error {
	if len(steps) == 0 {
		return errs.NewWarn("bet steps must not be empty")
	}
	g.mu.Lock()
	g.steps = append([]decimal.Decimal(nil), steps...)
	if g.stakeIdx >= len(g.steps) {
		g.stakeIdx = 0
	}
	out := append([]decimal.Decimal(nil), g.steps...)
	g.mu.Unlock()
	g.betStepsL.emit(g.log, out)
	return nil
}

// ---- flags ----

func (g *Game) SetTurbo(b bool) {
	g.mu.Lock()
	g.turbo = b
	g.mu.Unlock()
}

func (g *Game) SetAutoPlay(b bool) {
	g.mu.Lock()
	g.autoPlay = b
	g.mu.Unlock()
}

func (g *Game) SetRoundInProgress(b bool) {
	g.mu.Lock()
	g.roundInProgress = b
	g.mu.Unlock()
}

// TryBeginRound 原子地把 roundInProgress 由 false 設為 true。
func (g *Game) TryBeginRound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roundInProgress {
		return false
	}
	g.roundInProgress = true
	return true
}

// SetGameStarted false->true 觸發 started，true->false 觸發 ended，其餘不通知。
func (g *Game) SetGameStarted(b bool) {
	g.mu.Lock()
	was := g.gameStarted
	g.gameStarted = b
	g.mu.Unlock()
	switch {
	case b && !was:
		g.startedL.emit(g.log, struct{}{})
	case !b && was:
		g.endedL.emit(g.log, struct{}{})
	}
}

// ---- protocol responses ----

// ApplyRoundStart 記錄回合編號、更新餘額（有通知）並把派彩歸零（不通知）。
func (g *Game) ApplyRoundStart(resp protocol.RoundStartResponse) {
	g.mu.Lock()
	g.roundID = resp.RoundID
	g.reward = decimal.Zero
	g.mu.Unlock()
	g.SetBalance(resp.Balance)
}

// ApplyPlaceBet 標記遊戲開始，套用扣款後餘額，替換盤面與中獎編碼。
func (g *Game) ApplyPlaceBet(resp protocol.PlaceBetResponse) {
	g.mu.Lock()
	g.matrix = Board(resp.Matrix).Clone()
	g.winCombo = resp.WinCombo
	g.mu.Unlock()
	g.SetGameStarted(true)
	g.SetBalance(resp.Balance)
}

// ApplyRoundEnd 只寫入結算後餘額、派彩與線表，不通知任何 listener。
// 線表每回合整批替換；沒中獎的回合線表為空。
func (g *Game) ApplyRoundEnd(resp protocol.RoundEndResponse) {
	g.mu.Lock()
	g.balance = resp.Balance
	g.reward = resp.Reward
	g.paylines = cloneLines(resp.Paylines)
	g.mu.Unlock()
}

// ---- subscriptions ----

func (g *Game) OnBalance(fn func(decimal.Decimal)) *Subscription { return g.balanceL.add(fn) }

func (g *Game) OnReward(fn func(decimal.Decimal)) *Subscription { return g.rewardL.add(fn) }

func (g *Game) OnStake(fn func(decimal.Decimal)) *Subscription { return g.stakeL.add(fn) }

func (g *Game) OnBetSteps(fn func([]decimal.Decimal)) *Subscription { return g.betStepsL.add(fn) }

func (g *Game) OnGameStarted(fn func()) *Subscription {
	return g.startedL.add(func(struct{}) { fn() })
}

func (g *Game) OnGameEnded(fn func()) *Subscription {
	return g.endedL.add(func(struct{}) { fn() })
}

// Listeners 各類 listener 的數量，供除錯與測試使用。
func (g *Game) Listeners() map[string]int {
	return map[string]int{
		g.balanceL.name:  g.balanceL.len(),
		g.rewardL.name:   g.rewardL.len(),
		g.stakeL.name:    g.stakeL.len(),
		g.betStepsL.name: g.betStepsL.len(),
		g.startedL.name:  g.startedL.len(),
		g.endedL.name:    g.endedL.len(),
	}
}

func cloneLines(in []winline.Line) []winline.Line {
	if in == nil {
		return nil
	}
	out := make([]winline.Line, len(in))
	for i, l := range in {
		out[i] = append(winline.Line(nil), l...)
	}
	return out
}
