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

// Package ws 把 websocket 連線接上 authority 的 Session。
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/protocol/wsconn"
	"github.com/zintix-labs/reelround/server/httperr"
)

// Hub 每條連線開一個 Session。Hub 本身是 app.Component：Shutdown 關閉所有連線並等待 Session 結束。
type Hub struct {
	auth *authority.Authority
	opts wsconn.Options
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewHub(auth *authority.Authority, opts wsconn.Options, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Log == nil {
		opts.Log = log
	}
	return &Hub{auth: auth, opts: opts, log: log, ctx: ctx, cancel: cancel}
}

// Serve GET /ws
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsconn.Upgrade(w, r, h.opts)
	if err != nil {
		// upgrader 已寫回錯誤狀態
		httperr.Log(h.log, "ws.upgrade", err)
		return
	}
	h.wg.Add(1)
	defer h.wg.Done()
	defer conn.Close()

	sess := h.auth.NewSession()
	if err := sess.Serve(h.ctx, conn); err != nil {
		h.log.LogAttrs(r.Context(), slog.LevelWarn, "ws.session_failed", slog.Any("err", err))
	}
}

// Run 阻塞直到 Shutdown。
func (h *Hub) Run() error {
	<-h.ctx.Done()
	return nil
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.closed.Store(true)
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
