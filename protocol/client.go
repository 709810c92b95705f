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

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/zintix-labs/reelround/errs"
)

var (
	// ErrListenerReplaced 同一個 key 的新請求取代了舊的等待者。
	ErrListenerReplaced = errs.NewWarn("pending listener replaced by a newer request").WithCode(errs.CodeRoundBusy)
	ErrClientClosed     = errs.NewFatal("protocol client closed").WithCode(errs.CodeTransport)
)

// StatusError 回應的 status 不是 "200 OK"。Raw 為完整回應，供呼叫端顯示細節。
type StatusError struct {
	Op     Key
	Status string
	Raw    json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %q", e.Op, e.Status)
}

// SchemaError 回應缺少必要欄位或欄位型別錯誤。
type SchemaError struct {
	Op     Key
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s response field %q: %s", e.Op, e.Field, e.Reason)
}

type result struct {
	raw json.RawMessage
	err error
}

type waiter struct {
	ch chan result
}

// Client 協定客戶端。Send 前必須先有 goroutine 在跑 Run。
type Client struct {
	tr  Transport
	log *slog.Logger

	mu      sync.Mutex
	pending map[Key]*waiter
	closed  bool
	once    sync.Once
}

func NewClient(tr Transport, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		tr:      tr,
		log:     log,
		pending: make(map[Key]*waiter, 4),
	}
}

// Run 讀取迴圈：逐筆把上行訊息交給對應的 listener，直到 transport 出錯或 ctx 結束。
func (c *Client) Run(ctx context.Context) error {
	for {
		env, err := c.tr.Receive(ctx)
		if err != nil {
			werr := errs.Wrap(err, "protocol receive failed").WithCode(errs.CodeTransport)
			if ctx.Err() != nil {
				werr = errs.Wrap(ctx.Err(), "protocol client stopped").WithCode(errs.CodeTimeout)
			}
			c.failAll(werr)
			return werr
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	key := env.Key()
	c.mu.Lock()
	w, ok := c.pending[key]
	if !ok {
		// 回應沒帶 eventType 時，找同 operation 下唯一的等待者
		if _, event := key.Split(); event == "" {
			key, w, ok = c.findByOperation(env.Operation)
		}
	}
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		c.log.LogAttrs(context.Background(), slog.LevelDebug, "protocol.unmatched",
			slog.String("operation", env.Operation),
			slog.String("key", string(env.Key())),
		)
		return
	}
	c.log.LogAttrs(context.Background(), slog.LevelDebug, "protocol.recv", slog.String("key", string(key)))
	w.ch <- result{raw: env.Data}
}

// findByOperation 呼叫端需持有 c.mu。
func (c *Client) findByOperation(op string) (Key, *waiter, bool) {
	var (
		found Key
		fw    *waiter
		n     int
	)
	for k, w := range c.pending {
		if kop, _ := k.Split(); kop == op {
			found, fw = k, w
			n++
		}
	}
	if n != 1 {
		return "", nil, false
	}
	return found, fw, true
}

// Send 註冊一次性 listener 後送出請求，等待同 key 的下一筆回應。
// 已有等待者時由新請求取代，舊呼叫端收到 ErrListenerReplaced。
func (c *Client) Send(ctx context.Context, key Key, payload any) (json.RawMessage, error) {
	env, err := NewEnvelope(key, payload)
	if err != nil {
		return nil, err
	}
	w := &waiter{ch: make(chan result, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if old, ok := c.pending[key]; ok {
		old.ch <- result{err: ErrListenerReplaced}
		c.log.LogAttrs(ctx, slog.LevelWarn, "protocol.replaced", slog.String("key", string(key)))
	}
	c.pending[key] = w
	c.mu.Unlock()

	c.log.LogAttrs(ctx, slog.LevelDebug, "protocol.send", slog.String("key", string(key)))
	if err := c.tr.Send(ctx, env); err != nil {
		c.remove(key, w)
		return nil, errs.Wrap(err, "protocol send failed").WithCode(errs.CodeTransport)
	}

	select {
	case r := <-w.ch:
		if r.err != nil {
			return nil, r.err
		}
		if err := checkStatus(key, r.raw); err != nil {
			return nil, err
		}
		return r.raw, nil
	case <-ctx.Done():
		c.remove(key, w)
		return nil, errs.Wrap(ctx.Err(), fmt.Sprintf("%s aborted", key)).WithCode(errs.CodeTimeout)
	}
}

// Pending 目前等待中的 key 數量。
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close 關閉 transport 並讓所有等待者失敗，可重複呼叫。
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.failAll(ErrClientClosed)
		err = c.tr.Close()
	})
	return err
}

func (c *Client) remove(key Key, w *waiter) {
	c.mu.Lock()
	if cur, ok := c.pending[key]; ok && cur == w {
		delete(c.pending, key)
	}
	c.mu.Unlock()
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[Key]*waiter)
	c.mu.Unlock()
	for _, w := range pending {
		w.ch <- result{err: err}
	}
}

func checkStatus(key Key, raw json.RawMessage) error {
	var peek struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return schemaErr(key, "status", "response is not a json object")
	}
	if peek.Status == nil {
		return schemaErr(key, "status", "required")
	}
	if strings.TrimSpace(*peek.Status) != StatusOK {
		e := errs.NewWarn("authority rejected request").WithCode(errs.CodeStatus)
		e.Cause = &StatusError{Op: key, Status: *peek.Status, Raw: raw}
		return e
	}
	return nil
}

func schemaErr(key Key, field, reason string) error {
	e := errs.NewWarn("invalid response").WithCode(errs.CodeSchema)
	e.Cause = &SchemaError{Op: key, Field: field, Reason: reason}
	return e
}
