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
	"sync"
	"time"
)

// Virtual 是虛擬時間排程器，呼叫端（通常是測試）自己扮演 loop：
//   - RunPending : 執行目前佇列中的回呼（不等背景工作）
//   - Settle     : 執行佇列直到空，且等所有 Go 工作結束
//   - Advance    : 推進虛擬時間，依時間順序觸發到期計時器
//
// 同一時間只能有一個 goroutine 呼叫上述三個方法。
type Virtual struct {
	mu       sync.Mutex
	cond     *sync.Cond
	now      time.Time
	queue    []func()
	timers   []*vtimer
	seq      uint64
	inflight int
}

type vtimer struct {
	v    *Virtual
	when time.Time
	seq  uint64
	fn   func()
	dead bool
}

func (t *vtimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.dead {
		return false
	}
	t.dead = true
	return true
}

// NewVirtual 建立起始時間固定的虛擬排程器。
func NewVirtual() *Virtual {
	v := &Virtual{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	v.cond = sync.NewCond(&v.mu)
	return v
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) Post(fn func()) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.queue = append(v.queue, fn)
	v.mu.Unlock()
	v.cond.Broadcast()
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &vtimer{v: v, when: v.now.Add(max(d, 0)), seq: v.seq, fn: fn}
	v.timers = append(v.timers, t)
	return t
}

func (v *Virtual) Go(fn func()) {
	v.mu.Lock()
	v.inflight++
	v.mu.Unlock()
	go func() {
		defer func() {
			v.mu.Lock()
			v.inflight--
			v.mu.Unlock()
			v.cond.Broadcast()
		}()
		fn()
	}()
}

// RunPending 執行佇列直到空，不等待背景工作。
func (v *Virtual) RunPending() {
	for {
		fn, ok := v.pop(false)
		if !ok {
			return
		}
		fn()
	}
}

// Settle 執行佇列直到空且沒有背景工作在跑。
func (v *Virtual) Settle() {
	for {
		fn, ok := v.pop(true)
		if !ok {
			return
		}
		fn()
	}
}

// Advance 推進虛擬時間 d，途中每觸發一個計時器就 Settle 一次。
func (v *Virtual) Advance(d time.Duration) {
	v.Settle()
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()
	for {
		v.mu.Lock()
		t := v.nextDue(target)
		if t == nil {
			v.now = target
			v.mu.Unlock()
			break
		}
		t.dead = true
		if t.when.After(v.now) {
			v.now = t.when
		}
		v.mu.Unlock()
		t.fn()
		v.Settle()
	}
	v.Settle()
}

// Pending 回傳尚未觸發且未停止的計時器數量。
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, t := range v.timers {
		if !t.dead {
			n++
		}
	}
	return n
}

func (v *Virtual) pop(waitBg bool) (func(), bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for waitBg && len(v.queue) == 0 && v.inflight > 0 {
		v.cond.Wait()
	}
	if len(v.queue) == 0 {
		return nil, false
	}
	fn := v.queue[0]
	v.queue[0] = nil
	v.queue = v.queue[1:]
	return fn, true
}

// nextDue 取出最早到期的計時器並順便清掉已停止的項目；呼叫端需持有鎖。
func (v *Virtual) nextDue(target time.Time) *vtimer {
	live := v.timers[:0]
	var best *vtimer
	for _, t := range v.timers {
		if t.dead {
			continue
		}
		live = append(live, t)
		if t.when.After(target) {
			continue
		}
		if best == nil || t.when.Before(best.when) || (t.when.Equal(best.when) && t.seq < best.seq) {
			best = t
		}
	}
	for i := len(live); i < len(v.timers); i++ {
		v.timers[i] = nil
	}
	v.timers = live
	return best
}
