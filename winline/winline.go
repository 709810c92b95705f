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

// Package winline 將伺服器回傳的中獎編碼（winCombo）解碼為要高亮的格子與要繪製的整條線。
//
// 編碼格式為以 ':' 分隔的 `ID_SYMBOL_COUNT` 串列，第 i 筆對應已知線表中的第 i 條線。
package winline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Coord 盤面座標 (row, col)，JSON 形式為 [row, col]。
type Coord struct {
	Row int
	Col int
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

func (c *Coord) UnmarshalJSON(b []byte) error {
	var pair []int
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("coord must have 2 elements, got %d", len(pair))
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

// Line 一條可計分的線（有序座標）。
type Line []Coord

// Entry 單筆中獎編碼解碼結果。
type Entry struct {
	Index  int
	ID     string
	Symbol string
	Count  int
}

// Result 解碼輸出。
//   - PerEntry   : 用於把中獎格子換成 win 版圖示（最後一筆取整條線）
//   - ForDisplay : 用於繪製整條線
type Result struct {
	PerEntry   [][]Coord
	ForDisplay [][]Coord
}

// Empty 回報是否沒有任何要高亮的格子。
func (r Result) Empty() bool {
	return len(r.PerEntry) == 0
}

// Decode 切分並解析編碼，不合法的項目記 warn 後略過。
// 回傳的 Entry.Index 保留其在編碼中的原始位置。
func Decode(encoding string, log *slog.Logger) []Entry {
	raw := splitEntries(encoding)
	out := make([]Entry, 0, len(raw))
	for i, s := range raw {
		e, err := parseEntry(s)
		if err != nil {
			warn(log, "winline.malformed", slog.Int("index", i), slog.String("entry", s), slog.Any("err", err))
			continue
		}
		e.Index = i
		out = append(out, e)
	}
	return out
}

// Resolve 將編碼與已知線表轉為高亮 / 繪製兩組座標。
//
// 規則：
//  1. 編碼為空：PerEntry 為空，ForDisplay 回退為全部已知線（只畫線、不高亮）。
//  2. 第 i 筆對應 lines[i]；超出線表的項目記 warn 後丟棄。
//  3. 編碼中的最後一筆取整條線（any-position 計分，例如 scatter）；其他筆取前 COUNT 格。
//  4. ForDisplay 每筆皆為整條線。
func Resolve(encoding string, lines []Line, log *slog.Logger) Result {
	if strings.TrimSpace(encoding) == "" {
		all := make([][]Coord, 0, len(lines))
		for _, l := range lines {
			all = append(all, cloneLine(l))
		}
		return Result{PerEntry: [][]Coord{}, ForDisplay: all}
	}

	raw := splitEntries(encoding)
	last := len(raw) - 1
	res := Result{
		PerEntry:   make([][]Coord, 0, len(raw)),
		ForDisplay: make([][]Coord, 0, len(raw)),
	}
	for i, s := range raw {
		if i >= len(lines) {
			warn(log, "winline.excess", slog.Int("index", i), slog.Int("known", len(lines)))
			continue
		}
		e, err := parseEntry(s)
		if err != nil {
			warn(log, "winline.malformed", slog.Int("index", i), slog.String("entry", s), slog.Any("err", err))
			continue
		}
		full := lines[i]
		if i == last {
			res.PerEntry = append(res.PerEntry, cloneLine(full))
		} else {
			n := min(e.Count, len(full))
			res.PerEntry = append(res.PerEntry, cloneLine(full[:n]))
		}
		res.ForDisplay = append(res.ForDisplay, cloneLine(full))
	}
	return res
}

func splitEntries(encoding string) []string {
	parts := strings.Split(encoding, ":")
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func parseEntry(s string) (Entry, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return Entry{}, fmt.Errorf("expect ID_SYMBOL_COUNT, got %q", s)
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return Entry{}, fmt.Errorf("count is not numeric: %q", parts[len(parts)-1])
	}
	if n < 0 {
		return Entry{}, fmt.Errorf("count is negative: %d", n)
	}
	return Entry{ID: parts[0], Symbol: parts[1], Count: n}, nil
}

func cloneLine(l []Coord) []Coord {
	out := make([]Coord, len(l))
	copy(out, l)
	return out
}

func warn(log *slog.Logger, msg string, attrs ...slog.Attr) {
	if log == nil {
		return
	}
	log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}
