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
	"io/fs"
	"os"
	"strings"

	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/configs"
	"github.com/zintix-labs/reelround/server"
	"github.com/zintix-labs/reelround/server/logger"
	"github.com/zintix-labs/reelround/server/svrcfg"
)

// 本地開發用的 authority 伺服器：以內建桌台（可再加上 -tables 目錄）跑回合協議。
// 它不是正式的遊戲伺服器，不處理帳務持久化與公平性。
func main() {
	sCfg, closeLog, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closeLog()
	if err := server.Run(sCfg); err != nil {
		sCfg.Log.Error("server stopped", "err", err)
		closeLog()
		os.Exit(1)
	}
}

type config struct {
	Addr      string
	LogMode   string
	Seed      int64
	TablesDir string
	Origins   string
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, func(), error) {
	cfg := new(config)
	flag.StringVar(&cfg.Addr, "addr", svrcfg.DefaultAddr, "listen address")
	flag.StringVar(&cfg.LogMode, "log-mode", "ModeDev", "log mode: ModeDev|ModeProd|ModeSilence")
	flag.Int64Var(&cfg.Seed, "seed", 0, "fixed rng seed, 0 for random")
	flag.StringVar(&cfg.TablesDir, "tables", "", "extra directory of table yaml/json files")
	flag.StringVar(&cfg.Origins, "origins", "", "comma separated CORS origins, empty allows all")
	flag.Parse()

	mode, ok := logger.ParseMode(cfg.LogMode)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log mode %q, fallback to %s\n", cfg.LogMode, mode)
	}
	log, ah := logger.NewAsync(4096, mode)
	closeLog := ah.Close

	sources := []fs.FS{configs.FS}
	if cfg.TablesDir != "" {
		sources = append(sources, os.DirFS(cfg.TablesDir))
	}
	cat, err := catalog.New(sources...)
	if err != nil {
		return nil, closeLog, err
	}
	opts := []authority.Option{authority.WithLogger(log)}
	if cfg.Seed != 0 {
		opts = append(opts, authority.WithSeed(cfg.Seed))
	}
	auth, err := authority.New(cat, opts...)
	if err != nil {
		return nil, closeLog, err
	}

	var origins []string
	for _, o := range strings.Split(cfg.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return &svrcfg.SvrCfg{
		Log:            log,
		Addr:           cfg.Addr,
		Authority:      auth,
		AllowedOrigins: origins,
	}, closeLog, nil
}
