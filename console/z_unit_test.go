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

package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/controls"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/state"
	"github.com/zintix-labs/reelround/timeline"
	"github.com/zintix-labs/reelround/winline"
)

func TestBoardAlignsWideIcons(t *testing.T) {
	sym := &setting.SymbolSetting{
		Codes: []string{"SEVEN", "CHERRY"},
		Icons: map[string]string{"SEVEN": "七", "CHERRY": "cherry"},
	}
	var buf bytes.Buffer
	c := New(&buf, sym)
	c.HighlightWinningCells([][]winline.Coord{{{Row: 0, Col: 0}}}, state.Board{
		{"SEVEN", "CHERRY"},
		{"CHERRY", "SEVEN"},
	})
	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got:\n%s", buf.String())
	}
	for _, r := range rows[1:] {
		if runewidth.StringWidth(r) != runewidth.StringWidth(rows[0]) {
			t.Fatalf("rows should align:\n%s", buf.String())
		}
	}
	if !strings.Contains(rows[1], "[七") {
		t.Fatalf("winning cell should be marked: %q", rows[1])
	}
}

func TestPopupsAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)
	c.ShowBigWin(decimal.RequireFromString("12.5"), true)
	c.ShowLowBalance()
	c.SetInteractiveDisabled(controls.Spin, true)
	_ = c.DrawColumn(timeline.ColumnFrame{Col: 1, Phase: timeline.PhaseStopped, Symbols: []string{"x", "A", "B"}})
	out := buf.String()
	if !strings.Contains(out, "BIG WIN 12.50 (auto)") || !strings.Contains(out, "too low") {
		t.Fatalf("popups missing:\n%s", out)
	}
	if strings.Contains(out, "button") || strings.Contains(out, "reel 1") {
		t.Fatalf("quiet console should skip buttons and reels:\n%s", out)
	}
	if c.Frames() != 1 {
		t.Fatalf("frames should be counted")
	}

	buf.Reset()
	c.Verbose = true
	c.SetInteractiveDisabled(controls.Spin, true)
	_ = c.DrawColumn(timeline.ColumnFrame{Col: 1, Phase: timeline.PhaseStopped, Symbols: []string{"x", "A", "B"}})
	if !strings.Contains(buf.String(), "button spin: off") || !strings.Contains(buf.String(), "reel 1 stopped: A B") {
		t.Fatalf("verbose output missing:\n%s", buf.String())
	}
}
