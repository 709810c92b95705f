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

package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scope 是每回合一個的取消範圍。
//
// 該回合排程的所有計時器都登記在 Scope 上；Cancel 會停掉全部計時器並讓 IsLive 變為 false。
// Stop 只能阻止「尚未觸發」的計時器，已經排進 loop 但還沒執行的回呼只能靠回呼開頭的
// IsLive 檢查擋下，所以透過 After 排程的回呼一律先檢查 IsLive。
type Scope struct {
	s      Scheduler
	live   atomic.Bool
	mu     sync.Mutex
	timers []Timer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScope 建立一個存活中的 Scope。
func NewScope(s Scheduler) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &Scope{s: s, ctx: ctx, cancel: cancel}
	sc.live.Store(true)
	return sc
}

func (sc *Scope) IsLive() bool {
	return sc != nil && sc.live.Load()
}

// RegisterTimer 登記計時器；若 Scope 已取消則立即停止該計時器。
func (sc *Scope) RegisterTimer(t Timer) {
	if t == nil {
		return
	}
	sc.mu.Lock()
	if !sc.live.Load() {
		sc.mu.Unlock()
		t.Stop()
		return
	}
	sc.timers = append(sc.timers, t)
	sc.mu.Unlock()
}

// After 排程 fn 並登記；fn 執行前先確認 Scope 仍存活。
func (sc *Scope) After(d time.Duration, fn func()) Timer {
	t := sc.s.AfterFunc(d, func() {
		if !sc.IsLive() {
			return
		}
		fn()
	})
	sc.RegisterTimer(t)
	return t
}

// Cancel 停止所有已登記計時器並使 Scope 失效，可重複呼叫。
func (sc *Scope) Cancel() {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	if !sc.live.Swap(false) {
		sc.mu.Unlock()
		return
	}
	timers := sc.timers
	sc.timers = nil
	sc.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
	sc.cancel()
}

// Context 隨 Scope 取消而取消，用於中止該回合的網路請求。
func (sc *Scope) Context() context.Context {
	return sc.ctx
}

// Timers 回傳目前登記的計時器數量。
func (sc *Scope) Timers() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.timers)
}
