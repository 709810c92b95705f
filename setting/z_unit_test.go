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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/winline"
)

const minimalYAML = `
table:
  table_id: T1
screen:
  columns: 3
  rows: 2
symbols:
  codes: [CHERRY, SEVEN]
paylines:
  - [[0, 0], [0, 1], [0, 2]]
  - [[1, 0], [0, 1], [1, 2]]
`

func TestDefaultsFilled(t *testing.T) {
	ts, err := GetTableSettingByYAML([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Table.Name != "T1" {
		t.Fatalf("name should default to table id, got %q", ts.Table.Name)
	}
	if len(ts.Bet.StepValues()) != len(DefaultBetSteps) {
		t.Fatalf("bet steps should default")
	}
	if ts.Bet.Balance().String() != "1000000" {
		t.Fatalf("unexpected balance %s", ts.Bet.Balance())
	}
	if ts.Bet.BigWin().String() != "5" {
		t.Fatalf("unexpected big win multiple %s", ts.Bet.BigWin())
	}
	if ts.Timing.ScrollDuration.D() != 1300*time.Millisecond || ts.Timing.ScrollSpeed != 0.4 {
		t.Fatalf("scroll defaults not applied: %+v", ts.Timing)
	}
	if ts.Timing.Settle.Style != SettleBounce || ts.Timing.TurboSettle.Style != SettlePulse {
		t.Fatalf("settle style defaults not applied")
	}
	if ts.Symbols.Icon("CHERRY") != "cherry" || ts.Symbols.Blurred[1] != "sevenBlur" {
		t.Fatalf("icon defaults not applied: %+v", ts.Symbols)
	}
	lines := ts.Lines()
	if len(lines) != 2 || lines[1][0] != (winline.Coord{Row: 1, Col: 0}) {
		t.Fatalf("unexpected lines %v", lines)
	}
	lines[0][0] = winline.Coord{Row: 9, Col: 9}
	if ts.Lines()[0][0].Row != 0 {
		t.Fatalf("Lines must return a copy")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	bad := minimalYAML + "\nextra_field: 1\n"
	if _, err := GetTableSettingByYAML([]byte(bad)); err == nil {
		t.Fatalf("expected strict decoding error")
	}
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"payline out of screen": strings.Replace(minimalYAML, "[1, 2]]", "[2, 2]]", 1),
		"bad bet step":          minimalYAML + "bet:\n  steps: [\"x\"]\n",
		"negative bet step":     minimalYAML + "bet:\n  steps: [\"-1\"]\n",
		"index out of range":    minimalYAML + "bet:\n  steps: [\"1\"]\n  default_index: 3\n",
		"bad settle style":      minimalYAML + "timing:\n  settle:\n    style: wobble\n",
		"negative duration":     minimalYAML + "timing:\n  stop_delay: -1s\n",
		"unknown wild":          strings.Replace(minimalYAML, "codes: [CHERRY, SEVEN]", "codes: [CHERRY, SEVEN]\n  wild: WILD", 1),
		"pay table width":       strings.Replace(minimalYAML, "codes: [CHERRY, SEVEN]", "codes: [CHERRY, SEVEN]\n  pay_table:\n    CHERRY: [0, 1]", 1),
		"weights mismatch":      strings.Replace(minimalYAML, "codes: [CHERRY, SEVEN]", "codes: [CHERRY, SEVEN]\n  weights: [1]", 1),
		"empty screen":          strings.Replace(minimalYAML, "columns: 3", "columns: 0", 1),
	}
	for name, raw := range cases {
		_, err := GetTableSettingByYAML([]byte(raw))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errs.IsCode(err, errs.CodeConfig) {
			t.Fatalf("%s: expected config code, got %v", name, err)
		}
	}
}

func TestJSONAndDuration(t *testing.T) {
	raw := `{"table":{"table_id":"J1"},"screen":{"columns":1,"rows":1},"symbols":{"codes":["A"]},
"paylines":[[[0,0]]],"timing":{"reveal_delay":"1.5s"}}`
	ts, err := ParseByExt("j1.JSON", []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Timing.RevealDelay.D() != 1500*time.Millisecond {
		t.Fatalf("unexpected reveal delay %v", ts.Timing.RevealDelay)
	}
	if _, err := ParseByExt("j1.toml", []byte(raw)); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestClientConfigEnv(t *testing.T) {
	env := map[string]string{
		EnvAuthorityURL:   "wss://example.test/ws",
		EnvTableID:        "STGRHR102",
		EnvRequestTimeout: "3s",
	}
	cfg := DefaultClientConfig()
	if err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AuthorityURL != "wss://example.test/ws" || cfg.TableID != "STGRHR102" || cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Fatalf("dial timeout should keep default")
	}
	env[EnvDialTimeout] = "soon"
	if err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err == nil {
		t.Fatalf("expected duration parse error")
	}
	cfg.AuthorityURL = "http://nope"
	if err := cfg.Valid(); err == nil {
		t.Fatalf("expected url validation error")
	}
}

func TestLoadClientConfigFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "client.env")
	if err := os.WriteFile(p, []byte("REELROUND_TABLE_ID=FROMFILE\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvTableID, "")
	os.Unsetenv(EnvTableID)
	cfg, err := LoadClientConfig(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TableID != "FROMFILE" {
		t.Fatalf("dotenv not applied, got %q", cfg.TableID)
	}
	if _, err := LoadClientConfig(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing env file must not fail: %v", err)
	}
}
