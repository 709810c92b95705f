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

package winline_test

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/zintix-labs/reelround/winline"
)

func straightLines(n, cols int) []winline.Line {
	lines := make([]winline.Line, n)
	for i := range lines {
		l := make(winline.Line, cols)
		for c := 0; c < cols; c++ {
			l[c] = winline.Coord{Row: i % 4, Col: c}
		}
		lines[i] = l
	}
	return lines
}

func TestResolveLastEntryTakesWholeLine(t *testing.T) {
	lines := straightLines(4, 5)
	res := winline.Resolve("LINE14_CHERRY_3:LINE88_CHERRY_3:LINE0_SCATTER_8:", lines, nil)

	if len(res.PerEntry) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(res.PerEntry))
	}
	if !slices.Equal(res.PerEntry[0], []winline.Coord(lines[0][:3])) {
		t.Fatalf("entry 0 should be first 3 coords: %v", res.PerEntry[0])
	}
	if !slices.Equal(res.PerEntry[1], []winline.Coord(lines[1][:3])) {
		t.Fatalf("entry 1 should be first 3 coords: %v", res.PerEntry[1])
	}
	if len(res.PerEntry[2]) != 5 {
		t.Fatalf("last entry must take the whole line, got %d coords", len(res.PerEntry[2]))
	}
	for i, d := range res.ForDisplay {
		if len(d) != 5 {
			t.Fatalf("display line %d should be complete, got %d", i, len(d))
		}
	}
}

func TestResolveEmptyFallsBackToAllLines(t *testing.T) {
	lines := straightLines(4, 5)
	res := winline.Resolve("", lines, nil)
	if len(res.PerEntry) != 0 {
		t.Fatalf("expected no highlight, got %v", res.PerEntry)
	}
	if len(res.ForDisplay) != len(lines) {
		t.Fatalf("expected %d display lines, got %d", len(lines), len(res.ForDisplay))
	}
	res.ForDisplay[0][0] = winline.Coord{Row: 9, Col: 9}
	if lines[0][0].Row == 9 {
		t.Fatalf("display lines must not alias the known table")
	}
}

func TestResolveSkipsMalformedAndExcess(t *testing.T) {
	lines := straightLines(2, 5)
	res := winline.Resolve("A_B:L1_SEVEN_x:L2_PLUM_2:L3_LEMON_4", lines, nil)
	// entry 0 lacks parts, entry 1 has no numeric count, entry 2 has no line, entry 3 too.
	if len(res.PerEntry) != 0 || len(res.ForDisplay) != 0 {
		t.Fatalf("expected nothing, got %v / %v", res.PerEntry, res.ForDisplay)
	}

	res = winline.Resolve("L0_PLUM_9:L1_SEVEN_2", lines, nil)
	if len(res.PerEntry[0]) != 5 {
		t.Fatalf("count above line length must clamp, got %d", len(res.PerEntry[0]))
	}
	if len(res.PerEntry[1]) != 5 {
		t.Fatalf("last entry takes whole line, got %d", len(res.PerEntry[1]))
	}
}

func TestDecodeKeepsIndex(t *testing.T) {
	es := winline.Decode("bad:L7_WILD_5", nil)
	if len(es) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(es))
	}
	if es[0].Index != 1 || es[0].Symbol != "WILD" || es[0].Count != 5 || es[0].ID != "L7" {
		t.Fatalf("unexpected entry %+v", es[0])
	}
}

func TestCoordJSON(t *testing.T) {
	var lines []winline.Line
	if err := json.Unmarshal([]byte(`[[[0,0],[1,1],[2,2]]]`), &lines); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lines[0][2] != (winline.Coord{Row: 2, Col: 2}) {
		t.Fatalf("unexpected coord %v", lines[0][2])
	}
	var c winline.Coord
	if err := json.Unmarshal([]byte(`[1]`), &c); err == nil {
		t.Fatalf("expected error for short coord")
	}
}

func TestVariantCells(t *testing.T) {
	board := [][]string{
		{"cherry", "cherry", "seven"},
		{"lemon", "mystery", "plum"},
	}
	v := winline.DefaultVariants()
	cells := v.Cells([][]winline.Coord{
		{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
		{{Row: 0, Col: 1}, {Row: 1, Col: 1}, {Row: 5, Col: 5}},
	}, board)
	if len(cells) != 3 {
		t.Fatalf("expected 3 unique cells, got %d", len(cells))
	}
	if cells[winline.Coord{Row: 0, Col: 0}] != "cherryWin" {
		t.Fatalf("unexpected variant %q", cells[winline.Coord{Row: 0, Col: 0}])
	}
	if cells[winline.Coord{Row: 1, Col: 1}] != "mystery" {
		t.Fatalf("unknown symbol should keep its name")
	}
}
