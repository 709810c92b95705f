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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/reelround/errs"
)

// Loop 是正式環境用的排程器：一條 goroutine 依序消化無上限 FIFO。
//
// Loop 同時實作 app.Component（Run / Shutdown），可以直接交給 app.App 管理生命週期。
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	running   atomic.Bool

	bg  sync.WaitGroup
	log *slog.Logger
}

// NewLoop 建立 Loop；log 為 nil 時不輸出任何 log。
func NewLoop(log *slog.Logger) *Loop {
	return &Loop{
		queue:   make([]func(), 0, 64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		log:     log,
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// Post 把 fn 放進佇列；Loop 關閉後的 Post 會被丟棄。
func (l *Loop) Post(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

func (l *Loop) Go(fn func()) {
	l.bg.Add(1)
	go func() {
		defer l.bg.Done()
		fn()
	}()
}

// Run 阻塞執行 loop，直到 Shutdown 被呼叫。
// 回呼若 panic 會被攔下記錄，loop 繼續運行。
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return errs.NewFatal("sched loop already running")
	}
	defer close(l.stopped)
	for {
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			l.exec(fn)
		}
		select {
		case <-l.wake:
		case <-l.done:
			return nil
		}
	}
}

// Shutdown 停止接收新工作並等待 loop 結束；背景工作在 ctx 期限內等待收尾。
func (l *Loop) Shutdown(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	if l.running.Load() {
		select {
		case <-l.stopped:
		case <-ctx.Done():
			return errs.Wrap(ctx.Err(), "sched loop shutdown timeout").WithCode(errs.CodeTimeout)
		}
	}
	bgDone := make(chan struct{})
	go func() {
		l.bg.Wait()
		close(bgDone)
	}()
	select {
	case <-bgDone:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "sched background work still running").WithCode(errs.CodeTimeout)
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.log != nil {
			l.log.Error("sched.panic", slog.Any("recover", r))
		}
	}()
	fn()
}
