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

package netsvr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ChiAdapter 以 chi (基於標準庫 net/http) 實作 NetSvr。
// handler / middleware 都走 net/http；websocket 升級後的連線不受 http.Server timeout 影響。
type ChiAdapter struct {
	router chi.Router
	server *http.Server
	addr   string

	mu    sync.Mutex
	bound net.Addr
	ready chan struct{}
}

// NewChiServer 建立自訂監聽位址的 ChiAdapter，含 http.Server 與預設 timeout。
// addr 可用 ":0" 讓系統挑選埠號，實際位址由 Address 取得。
func NewChiServer(addr string) *ChiAdapter {
	cr := chi.NewRouter()
	return &ChiAdapter{
		router: cr,
		server: &http.Server{
			Addr:              addr,
			Handler:           cr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		addr:  addr,
		ready: make(chan struct{}),
	}
}

func (c *ChiAdapter) Ready() bool {
	return (c != nil) && (c.router != nil) && (c.server != nil) &&
		(c.addr != "") && strings.Contains(c.addr, ":") &&
		(c.server.Handler != nil) && (c.server.Handler == c.router)
}

// Run 監聽並阻塞服務；Shutdown 造成的結束回傳 nil。
func (c *ChiAdapter) Run() error {
	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.bound = ln.Addr()
	c.mu.Unlock()
	close(c.ready)
	if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ChiAdapter) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

func (c *ChiAdapter) Use(mw func(http.Handler) http.Handler) {
	c.router.Use(mw)
}

func (c *ChiAdapter) Get(path string, h http.HandlerFunc) {
	c.router.Get(path, h)
}

func (c *ChiAdapter) Post(path string, h http.HandlerFunc) {
	c.router.Post(path, h)
}

func (c *ChiAdapter) Put(path string, h http.HandlerFunc) {
	c.router.Put(path, h)
}

func (c *ChiAdapter) Delete(path string, h http.HandlerFunc) {
	c.router.Delete(path, h)
}

func (c *ChiAdapter) Group(path string, fn func(subRouter NetRouter)) {
	c.router.Route(path, func(r chi.Router) {
		fn(&ChiAdapter{router: r})
	})
}

// Handler 完整的路由樹，給 httptest 使用。
func (c *ChiAdapter) Handler() http.Handler {
	return c.router
}

// Address 監聽前回傳設定值，監聽後回傳實際位址。
func (c *ChiAdapter) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound != nil {
		return c.bound.String()
	}
	return c.addr
}

// Listening 開始監聽後關閉。
func (c *ChiAdapter) Listening() <-chan struct{} {
	return c.ready
}
