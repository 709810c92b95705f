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

package winline

import "strings"

// 預設圖示 -> 中獎圖示對照（table 設定可覆寫）
var defaultVariants = map[string]string{
	"watermelon": "watermelonWin",
	"seven":      "sevenWin",
	"plum":       "plumWin",
	"grapes":     "grapesWin",
	"cherry":     "cherryWin",
	"lemon":      "lemonWin",
	"scatter":    "scatterWin",
	"wild":       "wildWin",
}

// Variants 圖示名稱到中獎版圖示的對照表。
type Variants map[string]string

// DefaultVariants 回傳預設對照表的複本。
func DefaultVariants() Variants {
	v := make(Variants, len(defaultVariants))
	for k, val := range defaultVariants {
		v[k] = val
	}
	return v
}

// Of 取得 symbol 的中獎版；找不到時回傳原名。大小寫不敏感。
func (v Variants) Of(symbol string) string {
	key := strings.ToLower(strings.TrimSpace(symbol))
	if w, ok := v[key]; ok {
		return w
	}
	return symbol
}

// Cells 依高亮座標從盤面取出對應中獎版圖示，重複座標只回傳一次。
func (v Variants) Cells(coords [][]Coord, board [][]string) map[Coord]string {
	out := make(map[Coord]string)
	for _, line := range coords {
		for _, c := range line {
			if _, seen := out[c]; seen {
				continue
			}
			if c.Row < 0 || c.Row >= len(board) || c.Col < 0 || c.Col >= len(board[c.Row]) {
				continue
			}
			out[c] = v.Of(board[c.Row][c.Col])
		}
	}
	return out
}
