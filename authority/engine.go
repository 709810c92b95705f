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

// Package authority 本地開發用的權威端替身。
//
// 盤面是單純的加權抽樣，不具備公平性保證；它存在的目的只是讓客戶端可以端到端跑起來。
package authority

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sdk/core"
	"github.com/zintix-labs/reelround/sdk/sampler"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/winline"
)

// Engine 一張桌台的抽盤與計分。建好後唯讀，可被多個 Session 共用。
type Engine struct {
	tableID string
	cols    int
	rows    int
	codes   []string
	picker  sampler.Picker
	pays    map[string][]int
	wild    string
	scatter string
	lines   []winline.Line
	steps   []decimal.Decimal
	balance decimal.Decimal
}

// Hit 單筆中獎。Line 為 -1 表示 scatter。
type Hit struct {
	Line   int
	Symbol string
	Count  int
	Pay    int
	Coords winline.Line
}

// Outcome 一次抽盤的完整結果。
type Outcome struct {
	Matrix   [][]string
	Hits     []Hit
	Pay      int // 以單線押注為單位
	Reward   decimal.Decimal
	WinCombo string
	Paylines []winline.Line
}

func NewEngine(ts *setting.TableSetting) (*Engine, error) {
	if ts == nil {
		return nil, errs.NewFatal("authority: nil table setting").WithCode(errs.CodeConfig)
	}
	weights := ts.Symbols.Weights
	if len(weights) == 0 {
		weights = make([]int, len(ts.Symbols.Codes))
		for i := range weights {
			weights[i] = 1
		}
	}
	p, err := sampler.Build(weights)
	if err != nil {
		return nil, errs.WrapWithExtra(err, "authority: symbol weights", ts.Table.TableID)
	}
	return &Engine{
		tableID: ts.Table.TableID,
		cols:    ts.Screen.Columns,
		rows:    ts.Screen.Rows,
		codes:   append([]string(nil), ts.Symbols.Codes...),
		picker:  p,
		pays:    ts.Symbols.PayTable,
		wild:    ts.Symbols.Wild,
		scatter: ts.Symbols.Scatter,
		lines:   ts.Lines(),
		steps:   ts.Bet.StepValues(),
		balance: ts.Bet.Balance(),
	}, nil
}

func (e *Engine) TableID() string { return e.tableID }

// InitialBalance 新 session 在這張桌台的起始餘額。
func (e *Engine) InitialBalance() decimal.Decimal { return e.balance }

// ValidStake 押注必須是桌台的某一級距。
func (e *Engine) ValidStake(stake decimal.Decimal) bool {
	for _, s := range e.steps {
		if s.Equal(stake) {
			return true
		}
	}
	return false
}

// Draw 抽一個 rows x cols 的盤面。
func (e *Engine) Draw(c *core.Core) [][]string {
	m := make([][]string, e.rows)
	for r := range m {
		m[r] = make([]string, e.cols)
		for col := range m[r] {
			m[r][col] = e.codes[e.picker.Pick(c)]
		}
	}
	return m
}

// Play 抽盤並計分。
func (e *Engine) Play(c *core.Core, stake decimal.Decimal) Outcome {
	return e.Evaluate(e.Draw(c), stake)
}

// noScatterSymbol 桌台沒有設定 scatter 時結尾項目使用的符號名。
const noScatterSymbol = "SCATTER"

// Evaluate 計分：先逐線（由左至右，wild 可代任），最後是 scatter。
//
// WinCombo 的第 i 筆對應 Paylines[i]。客戶端會把最後一筆的整條座標都高亮，
// 所以有中獎時最後一筆一定是 scatter；沒有 scatter 中獎時補一筆 COUNT 為 0、座標為空的 scatter。
func (e *Engine) Evaluate(m [][]string, stake decimal.Decimal) Outcome {
	out := Outcome{Matrix: m, Reward: decimal.Zero}
	for i, line := range e.lines {
		if h, ok := e.evalLine(m, i, line); ok {
			out.Hits = append(out.Hits, h)
		}
	}
	if h, ok := e.evalScatter(m); ok {
		out.Hits = append(out.Hits, h)
	}
	if len(out.Hits) == 0 {
		return out
	}

	var b strings.Builder
	out.Paylines = make([]winline.Line, 0, len(out.Hits))
	for _, h := range out.Hits {
		out.Pay += h.Pay
		id := h.Line
		if id < 0 {
			id = 0
		}
		fmt.Fprintf(&b, "LINE%d_%s_%d:", id, h.Symbol, h.Count)
		out.Paylines = append(out.Paylines, h.Coords)
	}
	if out.Hits[len(out.Hits)-1].Line >= 0 {
		sym := e.scatter
		if sym == "" {
			sym = noScatterSymbol
		}
		fmt.Fprintf(&b, "LINE0_%s_0:", sym)
		out.Paylines = append(out.Paylines, winline.Line{})
	}
	out.WinCombo = b.String()
	n := max(len(e.lines), 1)
	out.Reward = stake.Mul(decimal.NewFromInt(int64(out.Pay))).DivRound(decimal.NewFromInt(int64(n)), 4)
	return out
}

func (e *Engine) isWild(s string) bool {
	return e.wild != "" && s == e.wild
}

// paid 可在線上計分的符號：有賠付表且不是 scatter。
func (e *Engine) paid(s string) bool {
	if s == e.scatter && s != "" {
		return false
	}
	_, ok := e.pays[s]
	return ok
}

func (e *Engine) payOf(sym string, n int) int {
	p := e.pays[sym]
	if n <= 0 || len(p) == 0 {
		return 0
	}
	return p[min(n, len(p))-1]
}

// evalLine 單線計分。
//
// 連續 wild 前綴可自成一組（以 wild 的賠付計），也可併入第一個非 wild 符號的串；
// 兩者取高。
func (e *Engine) evalLine(m [][]string, idx int, line winline.Line) (Hit, bool) {
	if len(line) == 0 {
		return Hit{}, false
	}
	at := func(pos int) string { return m[line[pos].Row][line[pos].Col] }

	firstSym := at(0)
	wildRun := 0
	normSym := ""
	normRun := 0

	if e.isWild(firstSym) {
		wildRun = 1
	} else {
		if !e.paid(firstSym) {
			return Hit{}, false
		}
		normSym = firstSym
		normRun = 1
	}

	for pos := 1; pos < len(line); pos++ {
		s := at(pos)
		isWild := e.isWild(s)

		// 純 wild 前綴
		if normSym == "" && wildRun == pos && isWild {
			wildRun++
			continue
		}
		// 第一個非 wild
		if normSym == "" && !isWild {
			if !e.paid(s) {
				break
			}
			normSym = s
			normRun = wildRun + 1
			continue
		}
		if normSym != "" && (s == normSym || isWild) {
			normRun++
			continue
		}
		break
	}

	wildWin, normWin := 0, 0
	if wildRun > 0 {
		wildWin = e.payOf(firstSym, wildRun)
	}
	if normRun > 0 {
		normWin = e.payOf(normSym, normRun)
	}

	h := Hit{Line: idx}
	if wildWin > normWin {
		h.Symbol, h.Count, h.Pay = firstSym, wildRun, wildWin
	} else {
		h.Symbol, h.Count, h.Pay = normSym, normRun, normWin
	}
	if h.Pay <= 0 {
		return Hit{}, false
	}
	h.Coords = append(winline.Line(nil), line...)
	return h, true
}

// evalScatter 任意位置計數，座標依欄優先排列。
func (e *Engine) evalScatter(m [][]string) (Hit, bool) {
	if e.scatter == "" {
		return Hit{}, false
	}
	var coords winline.Line
	for c := 0; c < e.cols; c++ {
		for r := 0; r < e.rows; r++ {
			if m[r][c] == e.scatter {
				coords = append(coords, winline.Coord{Row: r, Col: c})
			}
		}
	}
	pay := e.payOf(e.scatter, len(coords))
	if pay <= 0 {
		return Hit{}, false
	}
	return Hit{Line: -1, Symbol: e.scatter, Count: len(coords), Pay: pay, Coords: coords}, true
}
