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

package state

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/winline"
)

// Snapshot 某一時刻的唯讀複本。
type Snapshot struct {
	TableID         string            `json:"table_id"          yaml:"table_id"`
	RoundID         string            `json:"round_id"          yaml:"round_id"`
	Balance         decimal.Decimal   `json:"balance"           yaml:"balance"`
	Reward          decimal.Decimal   `json:"reward"            yaml:"reward"`
	Stake           decimal.Decimal   `json:"stake"             yaml:"stake"`
	StakeIndex      int               `json:"stake_index"       yaml:"stake_index"`
	BetSteps        []decimal.Decimal `json:"bet_steps"         yaml:"bet_steps"`
	Matrix          Board             `json:"matrix"            yaml:"matrix"`
	WinCombo        string            `json:"win_combo"         yaml:"win_combo"`
	Paylines        []winline.Line    `json:"paylines"          yaml:"-"`
	Turbo           bool              `json:"turbo"             yaml:"turbo"`
	AutoPlay        bool              `json:"auto_play"         yaml:"auto_play"`
	RoundInProgress bool              `json:"round_in_progress" yaml:"round_in_progress"`
	GameStarted     bool              `json:"game_started"      yaml:"game_started"`
}

func (g *Game) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Snapshot{
		TableID:         g.tableID,
		RoundID:         g.roundID,
		Balance:         g.balance,
		Reward:          g.reward,
		Stake:           g.steps[g.stakeIdx],
		StakeIndex:      g.stakeIdx,
		BetSteps:        append([]decimal.Decimal(nil), g.steps...),
		Matrix:          g.matrix.Clone(),
		WinCombo:        g.winCombo,
		Paylines:        cloneLines(g.paylines),
		Turbo:           g.turbo,
		AutoPlay:        g.autoPlay,
		RoundInProgress: g.roundInProgress,
		GameStarted:     g.gameStarted,
	}
}
