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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/sched"
	"github.com/zintix-labs/reelround/state"
	"github.com/zintix-labs/reelround/timeline"
	"github.com/zintix-labs/reelround/winline"
)

type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseValidatingStake
	PhaseAwaitingServer
	PhaseScrolling
	PhaseStoppingSequential
	PhaseRevealing
	PhaseCancelled
)

var phaseName = [...]string{"idle", "validating_stake", "awaiting_server", "scrolling", "stopping_sequential", "revealing", "cancelled"}

func (p Phase) String() string {
	if int(p) < len(phaseName) {
		return phaseName[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

var (
	ErrRoundInProgress = errs.NewWarn("round in progress").WithCode(errs.CodeRoundBusy)
	ErrLowBalance      = errs.NewWarn("stake exceeds balance").WithCode(errs.CodeLowBalance)
)

// RoundAPI 與遠端權威端的三段交換，*protocol.Client 即實作。
type RoundAPI interface {
	RoundStart(ctx context.Context, tableID string) (protocol.RoundStartResponse, error)
	PlaceBet(ctx context.Context, req protocol.PlaceBetRequest) (protocol.PlaceBetResponse, error)
	RoundEnd(ctx context.Context, req protocol.RoundEndRequest) (protocol.RoundEndResponse, error)
}

// Reels 轉輪動畫，*timeline.Timeline 即實作。
type Reels interface {
	StartContinuousScroll(p timeline.ScrollParams)
	StopAllSequential(finals [][]string, stagger time.Duration, settle timeline.SettleParams, scope *sched.Scope) []sched.Timer
	StopAllImmediate(finals [][]string, settle timeline.SettleParams)
}

// Board 盤面與連線的繪製端。
type Board interface {
	RenderBoard(b state.Board)
	ClearWinLines()
	DrawWinLines(lines [][]winline.Coord)
	HighlightWinningCells(cells [][]winline.Coord, b state.Board)
}

// Controls 按鈕狀態，*controls.Panel 即實作。
type Controls interface {
	StartSpin(autoActive bool)
	EndSpin(autoActive bool)
}

type Popups interface {
	ShowBigWin(amount decimal.Decimal, auto bool)
	ShowLowBalance()
}

// Recorder 每個結算完成的回合都會送進來。
type Recorder interface {
	Record(o Outcome)
}

// FailureRecorder 可選，Recorder 同時實作時失敗的回合也會送進來。
type FailureRecorder interface {
	RecordFailure(err error)
}

type SpinOptions struct {
	Auto bool
}

// Outcome 一個結算完成的回合。
type Outcome struct {
	RoundID   string          `json:"round_id"  yaml:"round_id"`
	Stake     decimal.Decimal `json:"stake"     yaml:"stake"`
	Reward    decimal.Decimal `json:"reward"    yaml:"reward"`
	Balance   decimal.Decimal `json:"balance"   yaml:"balance"`
	Board     state.Board     `json:"board"     yaml:"board"`
	WinCombo  string          `json:"win_combo" yaml:"win_combo"`
	Lines     winline.Result  `json:"-"         yaml:"-"`
	Turbo     bool            `json:"turbo"     yaml:"turbo"`
	Cancelled bool            `json:"cancelled" yaml:"cancelled"`
	Auto      bool            `json:"auto"      yaml:"auto"`
	BigWin    bool            `json:"big_win"   yaml:"big_win"`
	Duration  time.Duration   `json:"duration"  yaml:"duration"`
	SettledAt time.Time       `json:"settled_at" yaml:"settled_at"`
}

// Multiple 派彩 / 押注，押注為 0 時回傳 0。
func (o Outcome) Multiple() decimal.Decimal {
	if o.Stake.IsZero() {
		return decimal.Zero
	}
	return o.Reward.Div(o.Stake)
}

// Result SpinAsync 的結果，成功時 Err 為 nil。
type Result struct {
	Outcome Outcome
	Err     error
}

type nopBoard struct{}

func (nopBoard) RenderBoard(state.Board) {}
func (nopBoard) ClearWinLines() {}
func (nopBoard) DrawWinLines([][]winline.Coord) {}
func (nopBoard) HighlightWinningCells([][]winline.Coord, state.Board) {}

type nopControls struct{}

func (nopControls) StartSpin(bool) {}
func (nopControls) EndSpin(bool) {}

type nopPopups struct{}

func (nopPopups) ShowBigWin(decimal.Decimal, bool) {}
func (nopPopups) ShowLowBalance() {}

type nopRecorder struct{}

func (nopRecorder) Record(Outcome) {}
