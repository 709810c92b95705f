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

// Package console 以純文字在終端機上呈現桌台：盤面、中獎格、彈窗與按鈕狀態。
//
// Console 同時實作 spin.Board、spin.Popups、timeline.Surface 與 controls.Sink，
// 圖示寬度以 go-runewidth 計算，CJK 或 emoji 圖示也能對齊。
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/controls"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/state"
	"github.com/zintix-labs/reelround/timeline"
	"github.com/zintix-labs/reelround/winline"
)

type Console struct {
	mu     sync.Mutex
	w      io.Writer
	sym    *setting.SymbolSetting
	cell   int
	frames int
	lines  int

	// Verbose 時也輸出按鈕狀態與轉輪停輪
	Verbose bool
}

func New(w io.Writer, sym *setting.SymbolSetting) *Console {
	c := &Console{w: w, sym: sym, cell: 1}
	if sym != nil {
		for _, code := range sym.Codes {
			c.cell = max(c.cell, runewidth.StringWidth(sym.Icon(code)))
		}
	}
	return c
}

func (c *Console) icon(code string) string {
	if c.sym == nil {
		return code
	}
	return c.sym.Icon(code)
}

// RenderBoard spin.Board
func (c *Console) RenderBoard(b state.Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeBoard(b, nil)
}

func (c *Console) ClearWinLines() {
	c.mu.Lock()
	c.lines = 0
	c.mu.Unlock()
}

func (c *Console) DrawWinLines(lines [][]winline.Coord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = 0
	for _, l := range lines {
		if len(l) > 0 {
			c.lines++
		}
	}
	if c.lines > 0 {
		fmt.Fprintf(c.w, "win lines: %d\n", c.lines)
	}
}

func (c *Console) HighlightWinningCells(cells [][]winline.Coord, b state.Board) {
	hit := map[winline.Coord]bool{}
	for _, line := range cells {
		for _, p := range line {
			hit[p] = true
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeBoard(b, hit)
}

// writeBoard 中獎格以 [] 標示，其他格以空白補齊。
func (c *Console) writeBoard(b state.Board, hit map[winline.Coord]bool) {
	var sb strings.Builder
	sep := "+" + strings.Repeat(strings.Repeat("-", c.cell+2)+"+", b.Cols()) + "\n"
	sb.WriteString(sep)
	for r, row := range b {
		sb.WriteString("|")
		for col, code := range row {
			text := runewidth.FillRight(c.icon(code), c.cell)
			if hit[winline.Coord{Row: r, Col: col}] {
				sb.WriteString("[" + text + "]|")
			} else {
				sb.WriteString(" " + text + " |")
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString(sep)
	_, _ = io.WriteString(c.w, sb.String())
}

// ShowBigWin spin.Popups
func (c *Console) ShowBigWin(amount decimal.Decimal, auto bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mode := ""
	if auto {
		mode = " (auto)"
	}
	fmt.Fprintf(c.w, "*** BIG WIN %s%s ***\n", amount.StringFixed(2), mode)
}

func (c *Console) ShowLowBalance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, "!!! balance too low for this bet !!!")
}

// DrawColumn timeline.Surface；終端機不播動畫，只在停輪時輸出。
func (c *Console) DrawColumn(f timeline.ColumnFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	if c.Verbose && f.Phase == timeline.PhaseStopped {
		icons := make([]string, 0, len(f.Visible()))
		for _, s := range f.Visible() {
			icons = append(icons, c.icon(s))
		}
		fmt.Fprintf(c.w, "reel %d stopped: %s\n", f.Col, strings.Join(icons, " "))
	}
	return nil
}

// SetInteractiveDisabled controls.Sink
func (c *Console) SetInteractiveDisabled(ctl controls.Control, disabled bool) {
	if !c.Verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	onOff := "on"
	if disabled {
		onOff = "off"
	}
	fmt.Fprintf(c.w, "button %s: %s\n", ctl, onOff)
}

// Frames 已收到的動畫格數
func (c *Console) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
