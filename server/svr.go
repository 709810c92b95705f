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

// Package server 組裝本地 authority 伺服器：HTTP 路由、websocket 回合協議與生命週期。
package server

import (
	"context"
	"log/slog"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/server/api"
	"github.com/zintix-labs/reelround/server/app"
	"github.com/zintix-labs/reelround/server/netsvr"
	"github.com/zintix-labs/reelround/server/svrcfg"
)

// Server 已組裝完成、尚未啟動的伺服器。
type Server struct {
	cfg *svrcfg.SvrCfg
	svr *netsvr.ChiAdapter
	app *app.App
}

// New 是 server 套件的「組裝器（assembler）」。
//
// 它負責：
//  1. 驗證輸入的 SvrCfg（包含必要依賴，例如 logger 與 authority）。
//  2. 建立 HTTP server（netsvr）。
//  3. 註冊路由與 middleware（api.RegisterRoutes）。
//  4. 把 HTTP server 與 websocket hub 交給 app 管理。
//
// New 不綁定任何「檔案路徑」或「環境變數」策略；所有依賴都透過 SvrCfg 明確注入。
func New(sCfg *svrcfg.SvrCfg) (*Server, error) {
	if sCfg == nil {
		return nil, errs.NewFatal("server config is required").WithCode(errs.CodeConfig)
	}
	if err := sCfg.Valid(); err != nil {
		return nil, err
	}
	svr := netsvr.NewChiServer(sCfg.Addr)
	if !svr.Ready() {
		return nil, errs.NewFatal("net server is not ready: " + sCfg.Addr).WithCode(errs.CodeConfig)
	}
	hub, err := api.RegisterRoutes(svr, sCfg)
	if err != nil {
		return nil, err
	}
	// 關閉時反序：先停 HTTP 再斷開 websocket
	a := app.NewWith(hub, svr).WithLogger(sCfg.Log)
	return &Server{cfg: sCfg, svr: svr, app: a}, nil
}

// Run 監聽 SIGINT/SIGTERM，阻塞直到停止。
func (s *Server) Run() error {
	s.logListening()
	return s.app.Run()
}

// RunContext ctx 結束時優雅關閉。
func (s *Server) RunContext(ctx context.Context) error {
	s.logListening()
	return s.app.RunContext(ctx)
}

// NetSvr 路由與實際監聽位址。
func (s *Server) NetSvr() *netsvr.ChiAdapter { return s.svr }

func (s *Server) logListening() {
	go func() {
		<-s.svr.Listening()
		s.cfg.Log.LogAttrs(context.Background(), slog.LevelInfo, "server.listening",
			slog.String("addr", s.svr.Address()),
			slog.Int("tables", len(s.cfg.Authority.Catalog().IDs())),
		)
	}()
}

// Run 組裝並啟動，供 cmd 直接使用。
func Run(sCfg *svrcfg.SvrCfg) error {
	s, err := New(sCfg)
	if err != nil {
		return err
	}
	return s.Run()
}
