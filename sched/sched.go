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

// Package sched 提供單執行緒協作式排程。
//
// 所有回合狀態、動畫 tick、計時器回呼都在同一條 loop 上依序執行；
// 只有阻塞工作（網路往返）透過 Go 放到背景，完成後再以 Post 回到 loop。
// 因此核心邏輯不需要鎖，只要遵守「只在 loop 上改狀態」即可。
package sched

import "time"

// Timer 可取消的計時器。Stop 回傳 true 表示在觸發前成功停止。
type Timer interface {
	Stop() bool
}

// Scheduler 單一 loop 的排程介面。
type Scheduler interface {
	// Now 回傳排程器時間（Virtual 為虛擬時間）。
	Now() time.Time
	// Post 把 fn 排進 loop，可由任意 goroutine 呼叫。
	Post(fn func())
	// AfterFunc 在 d 之後於 loop 上執行 fn。
	AfterFunc(d time.Duration, fn func()) Timer
	// Go 在背景執行阻塞工作；fn 內若要改狀態必須再 Post 回 loop。
	Go(fn func())
}
