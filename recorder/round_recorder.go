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

package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/spin"
	"github.com/zintix-labs/reelround/stats"
)

// DefaultCapacity 最近回合保留數
const DefaultCapacity = 64

// RoundRecorder 回合紀錄員
//
// RoundRecorder 保留最近的回合結果，累積統計並透過 Done 輸出報表。
// 實作 spin.Recorder 與 spin.FailureRecorder，可在任意 goroutine 使用。
type RoundRecorder struct {
	mu sync.Mutex

	TableID   string
	TableName string
	Basic     *BasicRecord
	Dist      *DistRecord
	Player    *PlayerRecord

	ring      []spin.Outcome
	head      int
	size      int
	multiples []float64
	lastErr   error
	started   time.Time
	elapsed   time.Duration
}

// BasicRecord 基本回合資料紀錄
type BasicRecord struct {
	TotalStake  decimal.Decimal
	TotalReward decimal.Decimal
	Rounds      int
	Failures    int
	Cancelled   int
	TurboRounds int
	AutoRounds  int
	BigWins     int
}

// DistRecord 贏倍區間落點統計
type DistRecord struct {
	Bucket  *stats.WinBuckets
	Collect []int
}

// PlayerRecord 餘額軌跡，以權威端回傳的餘額為準
type PlayerRecord struct {
	InitBalance decimal.Decimal
	Balance     decimal.Decimal
	MaxBalance  decimal.Decimal
	MinBalance  decimal.Decimal
}

// NewRoundRecorder capacity <= 0 時使用 DefaultCapacity
func NewRoundRecorder(tableID, name string, initBalance decimal.Decimal, capacity int) (*RoundRecorder, error) {
	if initBalance.IsNegative() {
		return nil, errs.NewFatal(fmt.Sprintf("init balance must not be negative, got: %s", initBalance)).WithCode(errs.CodeConfig)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RoundRecorder{
		TableID:   tableID,
		TableName: name,
		Basic:     new(BasicRecord),
		Dist:      newDistRecord(),
		Player:    newPlayerRecord(initBalance),
		ring:      make([]spin.Outcome, capacity),
	}, nil
}

// MergeRoundRecorder 合併多桌（或多個並行 session）的累積統計，最近回合不合併。
func MergeRoundRecorder(r []*RoundRecorder) (*RoundRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge round record err : nothing to merge")
	}
	r0 := r[0]
	init := decimal.Zero
	for _, v := range r {
		init = init.Add(v.Player.InitBalance)
	}
	s, err := NewRoundRecorder(r0.TableID, r0.TableName, init, len(r0.ring))
	if err != nil {
		return nil, err
	}
	s.Player.Balance = decimal.Zero
	s.Player.MaxBalance = decimal.Zero
	s.Player.MinBalance = decimal.Zero
	for _, v := range r {
		v.mu.Lock()
		if v.TableID != r0.TableID {
			v.mu.Unlock()
			return nil, errs.NewFatal("merge round record err : different table id")
		}
		s.Basic.TotalStake = s.Basic.TotalStake.Add(v.Basic.TotalStake)
		s.Basic.TotalReward = s.Basic.TotalReward.Add(v.Basic.TotalReward)
		s.Basic.Rounds += v.Basic.Rounds
		s.Basic.Failures += v.Basic.Failures
		s.Basic.Cancelled += v.Basic.Cancelled
		s.Basic.TurboRounds += v.Basic.TurboRounds
		s.Basic.AutoRounds += v.Basic.AutoRounds
		s.Basic.BigWins += v.Basic.BigWins
		for i := range v.Dist.Collect {
			s.Dist.Collect[i] += v.Dist.Collect[i]
		}
		s.multiples = append(s.multiples, v.multiples...)
		s.Player.Balance = s.Player.Balance.Add(v.Player.Balance)
		s.Player.MaxBalance = s.Player.MaxBalance.Add(v.Player.MaxBalance)
		s.Player.MinBalance = s.Player.MinBalance.Add(v.Player.MinBalance)
		s.elapsed = max(s.elapsed, v.elapsed)
		v.mu.Unlock()
	}
	return s, nil
}

// Record 以單一結算回合更新統計
func (s *RoundRecorder) Record(o spin.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		s.started = o.SettledAt.Add(-o.Duration)
	}
	s.push(o)
	s.recordBasic(o)
	s.recordDist(o)
	s.recordPlayer(o)
	if !o.SettledAt.IsZero() {
		s.elapsed = o.SettledAt.Sub(s.started)
	}
}

// RecordFailure 計入失敗回合，失敗回合不影響 RTP。
func (s *RoundRecorder) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Basic.Failures++
	s.lastErr = err
}

// LastError 最近一次失敗的原因
func (s *RoundRecorder) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Recent 由新到舊回傳最多 n 筆最近回合，n <= 0 回傳全部保留的回合。
func (s *RoundRecorder) Recent(n int) []spin.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > s.size {
		n = s.size
	}
	out := make([]spin.Outcome, 0, n)
	for i := range n {
		idx := (s.head - 1 - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

// Len 目前保留的回合數
func (s *RoundRecorder) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Total 累積結算回合數
func (s *RoundRecorder) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Basic.Rounds
}

// Done 輸出目前的統計報表，可重複呼叫。
func (s *RoundRecorder) Done() *stats.SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := stats.NewSessionReport(s.TableID, s.TableName, s.Player.InitBalance)
	sum := report.Summary
	sum.Rounds = s.Basic.Rounds
	sum.Failures = s.Basic.Failures
	sum.Cancelled = s.Basic.Cancelled
	sum.TurboRounds = s.Basic.TurboRounds
	sum.AutoRounds = s.Basic.AutoRounds
	sum.BigWins = s.Basic.BigWins
	sum.TotalStake = s.Basic.TotalStake
	sum.TotalReward = s.Basic.TotalReward
	sum.NoWinRounds = s.Dist.Collect[0]
	sum.Elapsed = s.elapsed

	copy(report.Dist.Collect, s.Dist.Collect)
	report.Multiples = append([]float64(nil), s.multiples...)

	report.Player.Balance = s.Player.Balance
	report.Player.MaxBalance = s.Player.MaxBalance
	report.Player.MinBalance = s.Player.MinBalance

	report.Done()
	return report
}

func (s *RoundRecorder) push(o spin.Outcome) {
	s.ring[s.head] = o
	s.head = (s.head + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}
}

func (s *RoundRecorder) recordBasic(o spin.Outcome) {
	b := s.Basic
	b.TotalStake = b.TotalStake.Add(o.Stake)
	b.TotalReward = b.TotalReward.Add(o.Reward)
	b.Rounds++
	if o.Cancelled {
		b.Cancelled++
	}
	if o.Turbo {
		b.TurboRounds++
	}
	if o.Auto {
		b.AutoRounds++
	}
	if o.BigWin {
		b.BigWins++
	}
}

func (s *RoundRecorder) recordDist(o spin.Outcome) {
	m := o.Multiple().InexactFloat64()
	s.Dist.Collect[s.Dist.Bucket.Index(m)]++
	s.multiples = append(s.multiples, m)
}

func (s *RoundRecorder) recordPlayer(o spin.Outcome) {
	p := s.Player
	p.Balance = o.Balance

	// 更新歷史最高資產
	if p.Balance.GreaterThan(p.MaxBalance) {
		p.MaxBalance = p.Balance
	}
	// 更新歷史最低資產
	if p.Balance.LessThan(p.MinBalance) {
		p.MinBalance = p.Balance
	}
}

func newDistRecord() *DistRecord {
	return &DistRecord{
		Bucket:  stats.Buckets,
		Collect: make([]int, len(stats.Buckets.WinBucketStr())),
	}
}

func newPlayerRecord(init decimal.Decimal) *PlayerRecord {
	return &PlayerRecord{
		InitBalance: init,
		Balance:     init,
		MaxBalance:  init,
		MinBalance:  init,
	}
}
