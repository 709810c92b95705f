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

// Package api 註冊 HTTP 路由與 middleware。
package api

import (
	"net/http"

	"github.com/zintix-labs/reelround/protocol/wsconn"
	v1 "github.com/zintix-labs/reelround/server/api/v1"
	"github.com/zintix-labs/reelround/server/api/ws"
	"github.com/zintix-labs/reelround/server/netsvr"
	"github.com/zintix-labs/reelround/server/netsvr/middleware"
	"github.com/zintix-labs/reelround/server/svrcfg"
)

// RegisterRoutes 註冊所有路由，回傳的 Hub 需交給 app 管理生命週期。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) (*ws.Hub, error) {
	registerMiddleware(svr, sCfg) // 1. 註冊 middleware
	svr.Get("/healthz", healthz)  // 2. 健康檢查

	// 3. websocket 回合協議
	hub := ws.NewHub(sCfg.Authority, wsconn.Options{
		PingInterval: sCfg.PingInterval,
		PongWait:     sCfg.PongWait,
		Log:          sCfg.Log,
	}, sCfg.Log)
	svr.Get("/ws", hub.Serve)

	// 4. 註冊 v1 api
	if err := registerV1API(svr, sCfg); err != nil {
		return nil, err
	}
	return hub, nil
}

func registerMiddleware(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(sCfg.Log))
	svr.Use(middleware.Recover(sCfg.Log))
	svr.Use(middleware.CORS(sCfg.AllowedOrigins))
	svr.Use(middleware.Compression)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	th, err := v1.NewTableHandler(sCfg.Authority.Catalog())
	if err != nil {
		return err
	}
	st := v1.NewStatusHandler(sCfg.Authority)
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/tables", th.List)
		vOne.Get("/tables/{id}", th.Get)
		vOne.Get("/status", st.Status)
	})
	return nil
}
