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

// Package controls 管理桌台上各個按鈕的可操作狀態。
package controls

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type Control uint8

const (
	Settings Control = iota
	Rules
	BetValue
	BetMinus
	BetPlus
	Spin
	AutoPlay
	controlCount
)

var controlName = [...]string{"settings", "rules", "bet_value", "bet_minus", "bet_plus", "spin", "autoplay"}

func (c Control) String() string {
	if c < controlCount {
		return controlName[c]
	}
	return fmt.Sprintf("control(%d)", c)
}

// All 所有按鈕，依固定順序。
func All() []Control {
	out := make([]Control, controlCount)
	for i := range out {
		out[i] = Control(i)
	}
	return out
}

// ParseControl 由名稱取得按鈕。
func ParseControl(name string) (Control, bool) {
	for i, n := range controlName {
		if n == name {
			return Control(i), true
		}
	}
	return 0, false
}

// Sink UI 端，每次狀態改變都會被通知。
type Sink interface {
	SetInteractiveDisabled(c Control, disabled bool)
}

// SinkFunc 讓一般函式可以當作 Sink 使用。
type SinkFunc func(c Control, disabled bool)

func (f SinkFunc) SetInteractiveDisabled(c Control, disabled bool) { f(c, disabled) }

type Panel struct {
	mu       sync.Mutex
	disabled [controlCount]bool
	sink     Sink
	log      *slog.Logger
}

func NewPanel(sink Sink, log *slog.Logger) *Panel {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Panel{sink: sink, log: log}
}

// SetInteractiveDisabled 設定單一按鈕；狀態沒變時不通知 Sink。
func (p *Panel) SetInteractiveDisabled(c Control, disabled bool) {
	if c >= controlCount {
		return
	}
	p.mu.Lock()
	if p.disabled[c] == disabled {
		p.mu.Unlock()
		return
	}
	p.disabled[c] = disabled
	p.mu.Unlock()
	p.forward(c, disabled)
}

// StartSpin 回合開始時全部鎖住；自動遊戲中保留自動按鈕讓玩家可以停止。
func (p *Panel) StartSpin(autoActive bool) {
	for _, c := range All() {
		p.SetInteractiveDisabled(c, !(autoActive && c == AutoPlay))
	}
}

// EndSpin 回合結束。自動遊戲仍在跑時只開放自動按鈕。
func (p *Panel) EndSpin(autoActive bool) {
	for _, c := range All() {
		if autoActive && c != AutoPlay {
			p.SetInteractiveDisabled(c, true)
			continue
		}
		p.SetInteractiveDisabled(c, false)
	}
}

// AutoPlayStopped 自動遊戲結束後全部開放。
func (p *Panel) AutoPlayStopped() {
	for _, c := range All() {
		p.SetInteractiveDisabled(c, false)
	}
}

func (p *Panel) Disabled(c Control) bool {
	if c >= controlCount {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabled[c]
}

// States 以名稱回傳每個按鈕是否被鎖住。
func (p *Panel) States() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, controlCount)
	for i, d := range p.disabled {
		out[Control(i).String()] = d
	}
	return out
}

func (p *Panel) forward(c Control, disabled bool) {
	if p.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.LogAttrs(context.Background(), slog.LevelError, "controls.sink.panic",
				slog.String("control", c.String()),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	p.sink.SetInteractiveDisabled(c, disabled)
}
