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

// Package logger 組裝 slog.Logger：依 LogMode 選擇輸出格式，並提供非阻塞的 AsyncHandler。
//
// 兩種注入方式：
//   - 直接傳 *slog.Logger（NewDefaultLogger / NewAsync），最常用。
//   - 自行組裝 slog.Handler 再用 NewLogger 包起來，可與任何第三方 Handler 組合。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type LogMode uint8

const (
	ModeDev     LogMode = iota // text、debug 以上
	ModeProd                   // JSON、info 以上，給 Loki / Promtail
	ModeSilence                // 全部丟掉
)

// ParseMode 解析命令列或環境變數的模式字串，大小寫不拘，可省略 Mode 前綴。
// 無法辨識時回傳 ModeDev 與 false。
func ParseMode(s string) (LogMode, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "mode") {
	case "dev":
		return ModeDev, true
	case "prod":
		return ModeProd, true
	case "silence":
		return ModeSilence, true
	default:
		return ModeDev, false
	}
}

func (m LogMode) String() string {
	switch m {
	case ModeDev:
		return "ModeDev"
	case ModeProd:
		return "ModeProd"
	case ModeSilence:
		return "ModeSilence"
	default:
		return "ModeUnknown"
	}
}

// NewHandler 依模式建立寫到 w 的 handler；w 為 nil 時寫到 stderr。
// 命令列工具的 stdout 留給報表輸出，所以預設不寫 stdout。
func NewHandler(w io.Writer, mode LogMode) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	switch mode {
	case ModeProd:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case ModeSilence:
		return slog.NewTextHandler(io.Discard, nil)
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(NewHandler(nil, mode))
}

// NewLogger 把自行組裝的 handler 包成 *slog.Logger，nil 時使用 ModeDev。
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = NewHandler(nil, ModeDev)
	}
	return slog.New(h)
}

// NewAsync 以模式預設建立 handler 再包成 AsyncHandler。呼叫端結束前應呼叫 Close 以送出緩衝的紀錄。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(NewHandler(nil, mode), buf)
	return slog.New(ah), ah
}

// AsyncHandler 把任何 slog.Handler 變成非阻塞：Handle 只做 enqueue，背景 goroutine 逐筆寫出。
// 隊列滿或 Close 之後的紀錄直接丟棄並計數，延遲不會傳回請求路徑。
// slog.Logger 會忽略 Handle 回傳的 error，I/O 錯誤需由 next 自行處理。
type AsyncHandler struct {
	next slog.Handler
	d    *dispatcher
}

// dispatcher 由同一個 AsyncHandler 衍生出的 WithAttrs / WithGroup 共用。
type dispatcher struct {
	ch      chan asyncItem
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type asyncItem struct {
	ctx context.Context
	rec slog.Record
	h   slog.Handler
}

// NewAsyncHandler buf 越大越不容易丟棄，但記憶體與 Close 時的排空時間也越多。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = NewHandler(nil, ModeDev)
	}
	if buf <= 0 {
		buf = 1024
	}
	d := &dispatcher{
		ch:     make(chan asyncItem, buf),
		closed: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return &AsyncHandler{next: next, d: d}
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case it := <-d.ch:
			_ = it.h.Handle(it.ctx, it.rec)
		case <-d.closed:
			for {
				select {
				case it := <-d.ch:
					_ = it.h.Handle(it.ctx, it.rec)
				default:
					return
				}
			}
		}
	}
}

func (h *AsyncHandler) Ready() bool {
	return h != nil && h.d != nil && h.next != nil
}

// Dropped 因隊列已滿或已關閉而丟棄的筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if !h.Ready() {
		return 0
	}
	return h.d.dropped.Load()
}

// Close 停止接收並排空隊列，可重複呼叫。
func (h *AsyncHandler) Close() {
	if !h.Ready() {
		return
	}
	h.d.once.Do(func() { close(h.d.closed) })
	h.d.wg.Wait()
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Ready() {
		return nil
	}
	select {
	case <-h.d.closed:
		h.d.dropped.Add(1)
		return nil
	default:
	}
	// Clone 複製 attrs，避免跨 goroutine 共用 Record 內部的可變切片
	select {
	case h.d.ch <- asyncItem{ctx: ctx, rec: r.Clone(), h: h.next}:
	default:
		h.d.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}
