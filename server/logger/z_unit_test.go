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

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]LogMode{"ModeDev": ModeDev, "prod": ModeProd, " ModeSilence ": ModeSilence} {
		if got, ok := ParseMode(in); !ok || got != want {
			t.Fatalf("%q: got %s", in, got)
		}
	}
	if got, ok := ParseMode("verbose"); ok || got != ModeDev {
		t.Fatalf("unknown mode should fall back to dev")
	}
}

func TestAsyncDrainsOnClose(t *testing.T) {
	var buf bytes.Buffer
	ah := NewAsyncHandler(NewHandler(&buf, ModeProd), 64)
	log := slog.New(ah).With(slog.String("table", "STGRHR101"))
	for i := 0; i < 10; i++ {
		log.Info("round.settled", slog.Int("n", i))
	}
	log.Debug("hidden")
	ah.Close()
	ah.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 records, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[9]), &rec); err != nil || rec["table"] != "STGRHR101" {
		t.Fatalf("attrs should carry through: %v %v", err, rec)
	}
	log.Info("after close")
	if ah.Dropped() != 1 {
		t.Fatalf("records after close should be dropped, got %d", ah.Dropped())
	}
}
