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

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/reelround"
	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/configs"
	"github.com/zintix-labs/reelround/console"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/protocol/wsconn"
	"github.com/zintix-labs/reelround/recorder"
	"github.com/zintix-labs/reelround/sdk/core"
	"github.com/zintix-labs/reelround/server/app"
	"github.com/zintix-labs/reelround/server/logger"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/spin"
	"github.com/zintix-labs/reelround/stats"
	"golang.org/x/sync/errgroup"
)

// dialer 每個玩家一條獨立的連線
type dialer func(ctx context.Context) (protocol.Transport, error)

func play(cfg *config) error {
	mode, _ := logger.ParseMode(cfg.LogMode)
	log, ah := logger.NewAsync(4096, mode)
	defer ah.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts, dial, closeAuth, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAuth()

	var bar *pb.ProgressBar
	if !cfg.drawBoard() && cfg.rounds > 0 {
		bar = pb.Full.New(cfg.rounds * cfg.players).SetWriter(os.Stderr).Start()
	}

	recs := make([]*recorder.RoundRecorder, cfg.players)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.players)
	for i := 0; i < cfg.players; i++ {
		g.Go(func() error {
			rec, err := runPlayer(gctx, i, cfg, ts, dial, bar, log)
			recs[i] = rec
			return err
		})
	}
	runErr := g.Wait()
	if bar != nil {
		bar.Finish()
	}

	played := nonNil(recs)
	if len(played) == 0 {
		return runErr
	}
	merged, err := recorder.MergeRoundRecorder(played)
	if err != nil {
		return errs.Wrap(err, "merge recorders failed")
	}
	if err := writeReport(os.Stdout, cfg.format, merged.Done()); err != nil {
		return err
	}
	return runErr
}

// connect 取得桌台設定與連線方式。-local 時在行程內起 authority，否則走 websocket。
func connect(ctx context.Context, cfg *config, log *slog.Logger) (*setting.TableSetting, dialer, func(), error) {
	if !cfg.local {
		ts, err := fetchSetting(ctx, cfg.AuthorityURL, cfg.TableID, cfg.DialTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		dial := func(ctx context.Context) (protocol.Transport, error) {
			dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
			return wsconn.Dial(dctx, cfg.AuthorityURL, wsconn.Options{Log: log})
		}
		return ts, dial, func() {}, nil
	}

	cat, err := catalog.New(configs.FS)
	if err != nil {
		return nil, nil, nil, err
	}
	ts, err := cat.TableSetting(cfg.TableID)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := []authority.Option{authority.WithLogger(log.With(slog.String("side", "authority")))}
	if cfg.seed != 0 {
		opts = append(opts, authority.WithSeed(cfg.seed))
	}
	auth, err := authority.New(cat, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	sctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	dial := func(context.Context) (protocol.Transport, error) {
		client, srv := protocol.Pipe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer srv.Close()
			if err := auth.NewSession().Serve(sctx, srv); err != nil {
				log.Warn("local session stopped", slog.Any("err", err))
			}
		}()
		return client, nil
	}
	return ts, dial, func() { cancel(); wg.Wait() }, nil
}

// runPlayer 一位玩家：客戶端讀取迴圈、桌台 loop 與自動遊戲驅動交給 app 管理，任一結束即全部收尾。
func runPlayer(ctx context.Context, id int, cfg *config, ts *setting.TableSetting, dial dialer, bar *pb.ProgressBar, log *slog.Logger) (*recorder.RoundRecorder, error) {
	log = log.With(slog.Int("player", id))
	tr, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	client := protocol.NewClient(tr, log)
	cctx, cancel := context.WithCancel(context.Background())

	opts := []reelround.Option{
		reelround.WithLogger(log),
		reelround.WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.seed != 0 {
		opts = append(opts, reelround.WithRNG(core.Seeded(cfg.seed+int64(id))))
	}
	if cfg.drawBoard() {
		con := console.New(os.Stdout, &ts.Symbols)
		con.Verbose = cfg.verbose
		opts = append(opts,
			reelround.WithBoard(con),
			reelround.WithPopups(con),
			reelround.WithSurface(con),
			reelround.WithControlSink(con),
		)
	}
	t, err := reelround.New(ts, client, opts...)
	if err != nil {
		cancel()
		_ = client.Close()
		return nil, err
	}

	a := app.NewWith(
		app.Funcs{
			RunFn: func() error { return client.Run(cctx) },
			ShutdownFn: func(context.Context) error {
				cancel()
				return client.Close()
			},
		},
		t,
		app.Funcs{RunFn: func() error { return drive(ctx, t, cfg, bar, log) }},
	).WithLogger(log)
	return t.Recorder(), a.RunContext(ctx)
}

// drive 開始自動遊戲並等待收尾。餘額不足視為正常結束。
func drive(ctx context.Context, t *reelround.Table, cfg *config, bar *pb.ProgressBar, log *slog.Logger) error {
	t.SetTurbo(cfg.turbo)
	var (
		mu   sync.Mutex
		last error
	)
	err := t.OnAutoRound(ctx, func(r spin.Result) {
		if bar != nil {
			bar.Increment()
		}
		mu.Lock()
		last = r.Err
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	done, err := t.StartAutoPlay(ctx, cfg.rounds)
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if errs.IsCode(last, errs.CodeLowBalance) {
		log.Info("player ran out of balance", slog.Int("rounds", t.Recorder().Total()))
		return nil
	}
	return last
}

// fetchSetting 由 authority 的 /v1/tables/{id} 取得桌台設定。
func fetchSetting(ctx context.Context, wsURL, tableID string, timeout time.Duration) (*setting.TableSetting, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, errs.Wrap(err, "bad authority url").WithCode(errs.CodeConfig)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws") + "/v1/tables/" + url.PathEscape(tableID)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errs.Wrap(err, "build table request failed")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errs.WrapWithExtra(err, "fetch table setting failed", u.String()).WithCode(errs.CodeTransport)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(err, "read table setting failed").WithCode(errs.CodeTransport)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewWithExtra(errs.Warn, "fetch table setting: "+resp.Status, strings.TrimSpace(string(raw))).WithCode(errs.CodeStatus)
	}
	return setting.ParseByExt(tableID+".json", raw)
}

func writeReport(w io.Writer, format string, rep *stats.SessionReport) error {
	if format == "table" {
		rep.StdOut(w)
		return nil
	}
	r, _ := stats.RenderByName(format)
	return rep.WriteWith(w, r)
}

func nonNil(recs []*recorder.RoundRecorder) []*recorder.RoundRecorder {
	out := recs[:0:0]
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
