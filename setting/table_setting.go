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

package setting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/winline"
)

const (
	DefaultTableID = "STGRHR101"
	DefaultBalance = "1000000"
)

// DefaultBetSteps 預設押注級距。
var DefaultBetSteps = []string{
	"0.1", "0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8", "0.9", "1",
	"2", "3", "4", "5", "6", "7", "8", "9", "10000",
}

// TableSetting 一張桌台（一款遊戲）的完整設定。
type TableSetting struct {
	Table    TableInfo     `yaml:"table"    json:"table"`
	Screen   ScreenSetting `yaml:"screen"   json:"screen"`
	Bet      BetSetting    `yaml:"bet"      json:"bet"`
	Symbols  SymbolSetting `yaml:"symbols"  json:"symbols"`
	Paylines [][][2]int    `yaml:"paylines" json:"paylines"`
	Timing   TimingSetting `yaml:"timing"   json:"timing"`

	lines    []winline.Line
	initFlag bool
}

type TableInfo struct {
	TableID string `yaml:"table_id" json:"table_id"`
	Name    string `yaml:"name"     json:"name"`
}

type ScreenSetting struct {
	Columns int `yaml:"columns" json:"columns"`
	Rows    int `yaml:"rows"    json:"rows"`
}

// BetSetting 押注級距與初始值。金額一律以字串表示，避免浮點誤差。
type BetSetting struct {
	Steps          []string `yaml:"steps"            json:"steps"`
	DefaultIndex   int      `yaml:"default_index"    json:"default_index"`
	DefaultBalance string   `yaml:"default_balance"  json:"default_balance"`
	BigWinMultiple string   `yaml:"big_win_multiple" json:"big_win_multiple"`

	steps   []decimal.Decimal
	balance decimal.Decimal
	bigWin  decimal.Decimal
}

// SymbolSetting 圖示設定。
//   - Codes   : 伺服器盤面使用的代碼
//   - Icons   : 代碼 -> 圖示名稱（未設定時取小寫代碼）
//   - Blurred : 轉輪捲動時使用的模糊圖示
//   - Weights / PayTable / Wild / Scatter 僅供本地 authority 使用
type SymbolSetting struct {
	Codes       []string          `yaml:"codes"        json:"codes"`
	Icons       map[string]string `yaml:"icons"        json:"icons"`
	Blurred     []string          `yaml:"blurred"      json:"blurred"`
	WinVariants map[string]string `yaml:"win_variants" json:"win_variants"`
	Weights     []int             `yaml:"weights"      json:"weights"`
	PayTable    map[string][]int  `yaml:"pay_table"    json:"pay_table"`
	Wild        string            `yaml:"wild"         json:"wild"`
	Scatter     string            `yaml:"scatter"      json:"scatter"`
}

func (ts *TableSetting) init() error {
	if ts.initFlag {
		return nil
	}
	ts.Table.TableID = strings.TrimSpace(ts.Table.TableID)
	if ts.Table.TableID == "" {
		ts.Table.TableID = DefaultTableID
	}
	if ts.Table.Name == "" {
		ts.Table.Name = ts.Table.TableID
	}
	if ts.Screen.Columns <= 0 || ts.Screen.Rows <= 0 {
		return errs.NewFatal("screen columns and rows must > 0").WithCode(errs.CodeConfig)
	}
	if err := ts.Bet.init(); err != nil {
		return err
	}
	if err := ts.Symbols.init(ts.Screen.Columns); err != nil {
		return err
	}
	if err := ts.initPaylines(); err != nil {
		return err
	}
	if err := ts.Timing.init(); err != nil {
		return err
	}
	ts.initFlag = true
	return nil
}

func (ts *TableSetting) initPaylines() error {
	ts.lines = make([]winline.Line, 0, len(ts.Paylines))
	for i, raw := range ts.Paylines {
		if len(raw) == 0 {
			return errs.NewFatal(fmt.Sprintf("payline %d is empty", i)).WithCode(errs.CodeConfig)
		}
		line := make(winline.Line, len(raw))
		for j, p := range raw {
			if p[0] < 0 || p[0] >= ts.Screen.Rows || p[1] < 0 || p[1] >= ts.Screen.Columns {
				return errs.NewFatal(fmt.Sprintf("payline %d coord %v out of screen", i, p)).WithCode(errs.CodeConfig)
			}
			line[j] = winline.Coord{Row: p[0], Col: p[1]}
		}
		ts.lines = append(ts.lines, line)
	}
	return nil
}

// Lines 回傳已驗證的線表複本。
func (ts *TableSetting) Lines() []winline.Line {
	out := make([]winline.Line, len(ts.lines))
	for i, l := range ts.lines {
		out[i] = append(winline.Line(nil), l...)
	}
	return out
}

func (bs *BetSetting) init() error {
	if len(bs.Steps) == 0 {
		bs.Steps = append([]string(nil), DefaultBetSteps...)
	}
	bs.steps = make([]decimal.Decimal, 0, len(bs.Steps))
	for _, s := range bs.Steps {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("bet step %q is not a number", s)).WithCode(errs.CodeConfig)
		}
		if !d.IsPositive() {
			return errs.NewFatal(fmt.Sprintf("bet step must > 0: %s", s)).WithCode(errs.CodeConfig)
		}
		bs.steps = append(bs.steps, d)
	}
	if bs.DefaultIndex < 0 || bs.DefaultIndex >= len(bs.steps) {
		return errs.NewFatal(fmt.Sprintf("bet default_index %d out of range", bs.DefaultIndex)).WithCode(errs.CodeConfig)
	}
	if bs.DefaultBalance == "" {
		bs.DefaultBalance = DefaultBalance
	}
	bal, err := decimal.NewFromString(bs.DefaultBalance)
	if err != nil {
		return errs.Wrap(err, "bet default_balance is not a number").WithCode(errs.CodeConfig)
	}
	bs.balance = bal
	if bs.BigWinMultiple == "" {
		bs.BigWinMultiple = "5"
	}
	bw, err := decimal.NewFromString(bs.BigWinMultiple)
	if err != nil || !bw.IsPositive() {
		return errs.NewFatal("bet big_win_multiple must be a positive number").WithCode(errs.CodeConfig)
	}
	bs.bigWin = bw
	return nil
}

func (bs *BetSetting) StepValues() []decimal.Decimal {
	return append([]decimal.Decimal(nil), bs.steps...)
}

func (bs *BetSetting) Balance() decimal.Decimal { return bs.balance }

func (bs *BetSetting) BigWin() decimal.Decimal { return bs.bigWin }

func (ss *SymbolSetting) init(cols int) error {
	if len(ss.Codes) == 0 {
		return errs.NewFatal("symbols.codes is required").WithCode(errs.CodeConfig)
	}
	seen := make(map[string]struct{}, len(ss.Codes))
	for _, c := range ss.Codes {
		if c == "" {
			return errs.NewFatal("symbols.codes has empty code").WithCode(errs.CodeConfig)
		}
		if _, dup := seen[c]; dup {
			return errs.NewFatal(fmt.Sprintf("symbols.codes duplicate %q", c)).WithCode(errs.CodeConfig)
		}
		seen[c] = struct{}{}
	}
	if ss.Icons == nil {
		ss.Icons = make(map[string]string, len(ss.Codes))
	}
	for _, c := range ss.Codes {
		if _, ok := ss.Icons[c]; !ok {
			ss.Icons[c] = strings.ToLower(c)
		}
	}
	if len(ss.Blurred) == 0 {
		for _, c := range ss.Codes {
			ss.Blurred = append(ss.Blurred, ss.Icons[c]+"Blur")
		}
	}
	if len(ss.Weights) != 0 && len(ss.Weights) != len(ss.Codes) {
		return errs.NewFatal("symbols.weights must match symbols.codes").WithCode(errs.CodeConfig)
	}
	for code, pays := range ss.PayTable {
		if _, ok := seen[code]; !ok {
			return errs.NewFatal(fmt.Sprintf("symbols.pay_table unknown code %q", code)).WithCode(errs.CodeConfig)
		}
		if len(pays) != cols {
			return errs.NewFatal(fmt.Sprintf("symbols.pay_table %q must have %d entries", code, cols)).WithCode(errs.CodeConfig)
		}
	}
	for name, code := range map[string]string{"wild": ss.Wild, "scatter": ss.Scatter} {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; !ok {
			return errs.NewFatal(fmt.Sprintf("symbols.%s unknown code %q", name, code)).WithCode(errs.CodeConfig)
		}
	}
	if ss.Wild != "" && ss.Wild == ss.Scatter {
		return errs.NewFatal("symbols.wild and symbols.scatter must differ").WithCode(errs.CodeConfig)
	}
	return nil
}

// Icon 代碼 -> 圖示名稱，未知代碼原樣回傳。
func (ss *SymbolSetting) Icon(code string) string {
	if v, ok := ss.Icons[code]; ok {
		return v
	}
	return code
}

// Variants 組合預設中獎圖示對照與設定檔覆寫。
func (ss *SymbolSetting) Variants() winline.Variants {
	v := winline.DefaultVariants()
	for k, val := range ss.WinVariants {
		v[strings.ToLower(k)] = val
	}
	return v
}
