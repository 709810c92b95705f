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
	"sync"

	"github.com/zintix-labs/reelround/errs"
)

// Transport 持久的雙向訊息通道。Send 可被多個 goroutine 同時呼叫；Receive 只由讀取迴圈呼叫。
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

var ErrTransportClosed = errs.NewFatal("transport closed").WithCode(errs.CodeTransport)

// Pipe 建立一對記憶體內互連的 Transport，關閉任一端兩端都失效。
func Pipe() (Transport, Transport) {
	ab := make(chan Envelope, 16)
	ba := make(chan Envelope, 16)
	shared := &pipeState{closed: make(chan struct{})}
	return &pipeEnd{in: ba, out: ab, st: shared}, &pipeEnd{in: ab, out: ba, st: shared}
}

type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

type pipeEnd struct {
	in  <-chan Envelope
	out chan<- Envelope
	st  *pipeState
}

func (p *pipeEnd) Send(ctx context.Context, env Envelope) error {
	select {
	case <-p.st.closed:
		return ErrTransportClosed
	default:
	}
	select {
	case p.out <- env:
		return nil
	case <-p.st.closed:
		return ErrTransportClosed
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "pipe send").WithCode(errs.CodeTimeout)
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-p.st.closed:
		return Envelope{}, ErrTransportClosed
	case <-ctx.Done():
		return Envelope{}, errs.Wrap(ctx.Err(), "pipe receive").WithCode(errs.CodeTimeout)
	}
}

func (p *pipeEnd) Close() error {
	p.st.once.Do(func() { close(p.st.closed) })
	return nil
}
