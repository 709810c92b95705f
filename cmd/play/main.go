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
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sdk/perf"
	"github.com/zintix-labs/reelround/setting"
	"github.com/zintix-labs/reelround/stats"
)

// play 以命令列驅動桌台客戶端：連上 authority（或在行程內起一個），跑自動遊戲並輸出統計報告。
//
//	go run ./cmd/play -rounds 50                  # 單一玩家，終端機顯示盤面
//	go run ./cmd/play -local -players 8 -rounds 200 -turbo -format json
func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := perf.Run(cfg.pprof, "", func() error { return play(cfg) }); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type config struct {
	setting.ClientConfig

	envFile string
	local   bool
	rounds  int
	players int
	turbo   bool
	seed    int64
	format  string
	verbose bool
	quiet   bool
	pprof   perf.Mode
}

// loadConfig 來源順序：預設值 < .env < 環境變數 < 命令列旗標（只有明確給的旗標才覆寫）。
func loadConfig(args []string) (*config, error) {
	def := setting.DefaultClientConfig()
	var (
		cfg            = new(config)
		url, table     string
		logMode, pprof string
		dialTimeout    time.Duration
		reqTimeout     time.Duration
	)
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.StringVar(&cfg.envFile, "env", "", ".env file, empty reads ./.env when present")
	fs.StringVar(&url, "url", def.AuthorityURL, "authority websocket url")
	fs.StringVar(&table, "table", def.TableID, "table id")
	fs.StringVar(&logMode, "log-mode", def.LogMode, "log mode: ModeDev|ModeProd|ModeSilence")
	fs.DurationVar(&dialTimeout, "dial-timeout", def.DialTimeout, "websocket dial timeout")
	fs.DurationVar(&reqTimeout, "request-timeout", def.RequestTimeout, "per request timeout")
	fs.BoolVar(&cfg.local, "local", false, "run an in-process authority instead of dialing")
	fs.IntVar(&cfg.rounds, "rounds", 20, "auto-play rounds per player, 0 for unlimited")
	fs.IntVar(&cfg.players, "players", 1, "number of concurrent players")
	fs.BoolVar(&cfg.turbo, "turbo", false, "turbo mode")
	fs.Int64Var(&cfg.seed, "seed", 0, "fixed seed for the in-process authority and reel blur, 0 for random")
	fs.StringVar(&cfg.format, "format", "table", "report format: table|json|yaml")
	fs.BoolVar(&cfg.verbose, "v", false, "print reel stops and button states")
	fs.BoolVar(&cfg.quiet, "q", false, "do not draw the board")
	fs.StringVar(&pprof, "p", "", "pprof: '', cpu, heap, allocs, goroutine")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var files []string
	if cfg.envFile != "" {
		files = append(files, cfg.envFile)
	}
	cc, err := setting.LoadClientConfig(files...)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cc.AuthorityURL = url
		case "table":
			cc.TableID = table
		case "log-mode":
			cc.LogMode = logMode
		case "dial-timeout":
			cc.DialTimeout = dialTimeout
		case "request-timeout":
			cc.RequestTimeout = reqTimeout
		}
	})
	if err := cc.Valid(); err != nil {
		return nil, err
	}
	cfg.ClientConfig = cc

	var ok bool
	if cfg.pprof, ok = perf.ParseMode(pprof); !ok {
		return nil, errs.Fatalf("unknown pprof mode %q", pprof).WithCode(errs.CodeConfig)
	}
	if cfg.players < 1 {
		return nil, errs.NewFatal("players must > 0").WithCode(errs.CodeConfig)
	}
	if cfg.rounds < 0 {
		return nil, errs.NewFatal("rounds must >= 0").WithCode(errs.CodeConfig)
	}
	if cfg.rounds == 0 && cfg.players > 1 {
		return nil, errs.NewFatal("unlimited rounds is only allowed for a single player").WithCode(errs.CodeConfig)
	}
	cfg.format = strings.ToLower(strings.TrimSpace(cfg.format))
	if cfg.format != "table" {
		if _, ok := stats.RenderByName(cfg.format); !ok {
			return nil, errs.Fatalf("unknown report format %q", cfg.format).WithCode(errs.CodeConfig)
		}
	}
	return cfg, nil
}

// drawBoard 只有單一玩家且未指定 -q 時在終端機畫盤面。
func (c *config) drawBoard() bool {
	return c.players == 1 && !c.quiet
}
