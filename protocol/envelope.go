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

// Package protocol 實作回合協定：以 operation 名稱配對請求與回應，
// 每個名稱同時只允許一個等待中的 listener。
package protocol

import (
	"encoding/json"
	"strings"

	"github.com/zintix-labs/reelround/errs"
)

const (
	OpRoundEvents = "round_events"
	OpPlaceBet    = "placebet"

	EventRoundStart = "round_start"
	EventRoundEnd   = "round_end"

	// StatusOK 成功標記，其他值一律視為失敗。
	StatusOK = "200 OK"
)

// Key 回應配對鍵：operation，有 eventType 時再加上 "/eventType"。
type Key string

const (
	KeyRoundStart Key = OpRoundEvents + "/" + EventRoundStart
	KeyRoundEnd   Key = OpRoundEvents + "/" + EventRoundEnd
	KeyPlaceBet   Key = OpPlaceBet
)

func MakeKey(op, event string) Key {
	if event == "" {
		return Key(op)
	}
	return Key(op + "/" + event)
}

func (k Key) Split() (op, event string) {
	op, event, _ = strings.Cut(string(k), "/")
	return op, event
}

// Envelope 上下行共用的外層格式 {"operation": ..., "data": {...}}。
type Envelope struct {
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Key 依 data.eventType 推出配對鍵。data 不是物件時只回傳 operation。
func (e Envelope) Key() Key {
	var peek struct {
		EventType string `json:"eventType"`
	}
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &peek)
	}
	return MakeKey(e.Operation, peek.EventType)
}

// NewEnvelope 包裝 payload；key 帶有 event 時寫入 data.eventType。
func NewEnvelope(key Key, payload any) (Envelope, error) {
	op, event := key.Split()
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errs.Wrap(err, "marshal payload failed").WithCode(errs.CodeSchema)
	}
	if event != "" {
		obj := map[string]json.RawMessage{}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &obj); err != nil {
				return Envelope{}, errs.Wrap(err, "payload must be a json object").WithCode(errs.CodeSchema)
			}
		}
		ev, _ := json.Marshal(event)
		obj["eventType"] = ev
		if raw, err = json.Marshal(obj); err != nil {
			return Envelope{}, errs.Wrap(err, "marshal payload failed").WithCode(errs.CodeSchema)
		}
	}
	return Envelope{Operation: op, Data: raw}, nil
}
