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

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/configs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/protocol/wsconn"
	"github.com/zintix-labs/reelround/server/svrcfg"
	"github.com/zintix-labs/reelround/winline"
)

func startServer(t *testing.T) (string, *authority.Authority) {
	t.Helper()
	cat, err := catalog.New(configs.FS)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth, err := authority.New(cat, authority.WithSeed(7), authority.WithLogger(log))
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	s, err := New(&svrcfg.SvrCfg{Log: log, Addr: "127.0.0.1:0", Authority: auth})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunContext(ctx) }()
	select {
	case <-s.NetSvr().Listening():
	case err := <-done:
		t.Fatalf("server stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return s.NetSvr().Address(), auth
}

func get(t *testing.T, url string, hdr map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPRoutes(t *testing.T) {
	addr, _ := startServer(t)
	base := "http://" + addr

	resp := get(t, base+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}

	resp = get(t, base+"/v1/tables", nil)
	var list []catalog.Summary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode tables: %v", err)
	}
	if len(list) != 2 || list[0].TableID != "STGRHR101" {
		t.Fatalf("unexpected tables: %+v", list)
	}

	resp = get(t, base+"/v1/tables/NOPE", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown table should be 404, got %d", resp.StatusCode)
	}

	// 手動設定 Accept-Encoding 時 client 不會自動解壓
	resp = get(t, base+"/v1/tables/STGRHR101", map[string]string{"Accept-Encoding": "gzip"})
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got %q", resp.Header.Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var ts struct {
		Table struct {
			TableID string `json:"table_id"`
		} `json:"table"`
	}
	if err := json.NewDecoder(zr).Decode(&ts); err != nil || ts.Table.TableID != "STGRHR101" {
		t.Fatalf("decode table setting: %v %+v", err, ts)
	}

	resp = get(t, base+"/v1/tables", map[string]string{"Origin": "http://localhost:3000"})
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("cors header missing")
	}
}

func TestWebsocketRound(t *testing.T) {
	addr, auth := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := wsconn.Dial(ctx, "ws://"+addr+"/ws", wsconn.Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := protocol.NewClient(conn, nil)
	go func() { _ = client.Run(ctx) }()
	defer client.Close()

	start, err := client.RoundStart(ctx, "STGRHR101")
	if err != nil || start.RoundID == "" {
		t.Fatalf("round start: %v %+v", err, start)
	}
	if !start.Balance.Equal(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("initial balance %s", start.Balance)
	}
	stake := decimal.RequireFromString("0.5")
	bet, err := client.PlaceBet(ctx, protocol.PlaceBetRequest{RoundID: start.RoundID, TableID: "STGRHR101", Stake: stake})
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if !bet.Balance.Equal(start.Balance.Sub(stake)) || len(bet.Matrix) == 0 {
		t.Fatalf("unexpected bet response: %+v", bet)
	}
	end, err := client.RoundEnd(ctx, protocol.RoundEndRequest{TableID: "STGRHR101", RoundID: start.RoundID, ResultString: bet.WinCombo})
	if err != nil {
		t.Fatalf("round end: %v", err)
	}
	if !end.Balance.Equal(bet.Balance.Add(end.Reward)) || len(end.Paylines) != len(winline.Decode(bet.WinCombo, nil)) {
		t.Fatalf("unexpected settle: %+v", end)
	}
	if st := auth.Stats(); st.Rounds != 1 || st.Sessions != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
