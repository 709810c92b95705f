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

// Package wsconn 以 gorilla/websocket 實作 protocol.Transport，客戶端與伺服端共用。
package wsconn

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	PingInterval time.Duration // 預設 30s
	PongWait     time.Duration // 預設 60s，收到 pong 就延長讀取期限
	WriteWait    time.Duration // 預設 10s
	InboxSize    int
	Header       http.Header
	Log          *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 2
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 32
	}
	if o.Log == nil {
		o.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Conn 一條 websocket 連線。讀取與 ping 兩個 pump 由 errgroup 監管，任一失敗即關閉連線。
type Conn struct {
	ws   *websocket.Conn
	opts Options

	wmu    sync.Mutex
	in     chan protocol.Envelope
	done   chan struct{}
	cancel context.CancelFunc

	emu sync.Mutex
	err error

	closeOnce sync.Once
}

var _ protocol.Transport = (*Conn)(nil)

// Dial 連線到 authority。
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, errs.WrapWithExtra(err, "websocket dial failed", url).WithCode(errs.CodeTransport)
	}
	return newConn(ws, opts), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 本地開發用 authority，來源檢查交給上層 CORS 設定
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upgrade 伺服端把 HTTP 請求升級成 Conn。
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errs.Wrap(err, "websocket upgrade failed").WithCode(errs.CodeTransport)
	}
	return newConn(ws, opts), nil
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:     ws,
		opts:   opts,
		in:     make(chan protocol.Envelope, opts.InboxSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	ws.SetPongHandler(func(string) error {
		opts.Log.LogAttrs(context.Background(), slog.LevelDebug, "ws.pong")
		return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error { return c.pingPump(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// 解除 readPump 的阻塞讀取
		return ws.Close()
	})
	go func() {
		err := g.Wait()
		c.emu.Lock()
		c.err = err
		c.emu.Unlock()
		close(c.done)
		opts.Log.LogAttrs(context.Background(), slog.LevelDebug, "ws.closed", slog.Any("err", err))
	}()
	return c
}

// readPump 讀取錯誤會結束連線；單筆訊息解不開只記 warn 後丟棄。
func (c *Conn) readPump(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.opts.Log.LogAttrs(ctx, slog.LevelWarn, "ws.malformed",
				slog.Int("size", len(raw)), slog.Any("err", err))
			continue
		}
		select {
		case c.in <- env:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Conn) pingPump(ctx context.Context) error {
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				return err
			}
		}
	}
}

// Send 寫出一筆訊息；gorilla 的連線不允許並行寫入，這裡以 wmu 序列化。
func (c *Conn) Send(ctx context.Context, env protocol.Envelope) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}
	deadline := time.Now().Add(c.opts.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(env); err != nil {
		return errs.Wrap(err, "websocket write failed").WithCode(errs.CodeTransport)
	}
	return nil
}

func (c *Conn) Receive(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.done:
		// 關閉前已讀入的訊息仍要交付
		select {
		case env := <-c.in:
			return env, nil
		default:
		}
		return protocol.Envelope{}, c.closedErr()
	case <-ctx.Done():
		return protocol.Envelope{}, errs.Wrap(ctx.Err(), "websocket receive").WithCode(errs.CodeTimeout)
	}
}

// Close 送出 close frame 後關閉連線，並等待 pump 結束。可重複呼叫。
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.cancel()
	})
	<-c.done
	return nil
}

// Done 連線結束時關閉。
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err 連線結束的原因；正常關閉為 nil。
func (c *Conn) Err() error {
	c.emu.Lock()
	defer c.emu.Unlock()
	return c.err
}

func (c *Conn) closedErr() error {
	if err := c.Err(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return errs.Wrap(err, "websocket closed").WithCode(errs.CodeTransport)
	}
	return protocol.ErrTransportClosed
}
