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

package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
)

// echoServer 把收到的每筆訊息原封不動送回。
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, Options{})
		if err != nil {
			return
		}
		defer c.Close()
		for {
			env, err := c.Receive(context.Background())
			if err != nil {
				return
			}
			if err := c.Send(context.Background(), env); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestDialEchoRoundTrip(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), Options{PingInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	env, _ := protocol.NewEnvelope(protocol.KeyRoundStart, map[string]string{"tableId": "T"})
	if err := c.Send(ctx, env); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Key() != protocol.KeyRoundStart {
		t.Fatalf("unexpected key %s", got.Key())
	}
	var data map[string]string
	_ = json.Unmarshal(got.Data, &data)
	if data["tableId"] != "T" {
		t.Fatalf("unexpected data %s", got.Data)
	}

	// 讓 ping 至少跑過幾輪，連線仍應存活
	time.Sleep(80 * time.Millisecond)
	if err := c.Send(ctx, env); err != nil {
		t.Fatalf("send after pings: %v", err)
	}
	if _, err := c.Receive(ctx); err != nil {
		t.Fatalf("receive after pings: %v", err)
	}

	_ = c.Close()
	_ = c.Close()
	if err := c.Send(ctx, env); err == nil {
		t.Fatalf("send after close should fail")
	}
	if _, err := c.Receive(ctx); !errs.IsCode(err, errs.CodeTransport) {
		t.Fatalf("receive after close should be a transport error, got %v", err)
	}
}

func TestClientOverWebsocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, Options{})
		if err != nil {
			return
		}
		defer c.Close()
		env, err := c.Receive(context.Background())
		if err != nil {
			return
		}
		resp := protocol.Envelope{Operation: env.Operation, Data: json.RawMessage(`{"eventType":"round_start","status":"200 OK","roundId":"abc","balance":"12.5"}`)}
		_ = c.Send(context.Background(), resp)
		<-c.Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, wsURL(srv), Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	cli := protocol.NewClient(conn, nil)
	go func() { _ = cli.Run(ctx) }()
	defer cli.Close()

	resp, err := cli.RoundStart(ctx, "T")
	if err != nil {
		t.Fatalf("round start: %v", err)
	}
	if resp.RoundID != "abc" || resp.Balance.String() != "12.5" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, Options{})
		if err != nil {
			return
		}
		defer c.Close()
		c.wmu.Lock()
		_ = c.ws.WriteMessage(websocket.TextMessage, []byte(`{"operation":`))
		c.wmu.Unlock()
		env, _ := protocol.NewEnvelope(protocol.KeyRoundEnd, map[string]string{"status": "200 OK"})
		_ = c.Send(context.Background(), env)
		<-c.Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	got, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("a bad frame should not close the connection: %v", err)
	}
	if got.Key() != protocol.KeyRoundEnd {
		t.Fatalf("unexpected key %s", got.Key())
	}
	select {
	case <-c.Done():
		t.Fatalf("connection closed after a bad frame")
	default:
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/ws", Options{}); !errs.IsCode(err, errs.CodeTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
