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

// Package perf 以 runtime/pprof 包住一段執行，供命令列工具做效能分析。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/reelround/errs"
)

// DefaultDir pprof 檔案寫入路徑
const DefaultDir = "build/profiling"

// Mode 取值：""（不分析）、cpu、heap、allocs、goroutine
type Mode string

const (
	ModeNone      Mode = ""
	ModeCPU       Mode = "cpu"
	ModeHeap      Mode = "heap"
	ModeAllocs    Mode = "allocs"
	ModeGoroutine Mode = "goroutine"
)

func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeNone, ModeCPU, ModeHeap, ModeAllocs, ModeGoroutine:
		return m, true
	default:
		return ModeNone, false
	}
}

// Run 依 mode 執行 exe 並把 profile 寫到 dir/<mode>.pprof，回傳 exe 的錯誤優先。
//
// Usage like:
//
//	go run ./cmd/play -p cpu
//	go tool pprof build/profiling/cpu.pprof
func Run(mode Mode, dir string, exe func() error) error {
	if mode == ModeNone {
		return exe()
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "create profiling dir failed")
	}
	f, err := os.Create(filepath.Join(dir, string(mode)+".pprof"))
	if err != nil {
		return errs.Wrap(err, "create profile failed")
	}
	defer f.Close()

	if mode == ModeCPU {
		if err := pprof.StartCPUProfile(f); err != nil {
			return errs.Wrap(err, "start cpu profile failed")
		}
		defer pprof.StopCPUProfile()
		return exe()
	}

	// 快照類 profile：先執行目標邏輯再寫出
	runErr := exe()
	if mode == ModeHeap {
		// 盡量讓快照貼近最新狀態
		runtime.GC()
	}
	prof := pprof.Lookup(string(mode))
	if prof == nil {
		return errs.NewFatal("unknown profile: " + string(mode))
	}
	if err := prof.WriteTo(f, 0); err != nil && runErr == nil {
		return errs.Wrap(err, "write profile failed")
	}
	return runErr
}
