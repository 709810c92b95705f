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

package state

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Subscription 訂閱憑證，Unsubscribe 可重複呼叫。
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// listeners 依註冊順序呼叫；呼叫時不持有任何鎖，listener 內可以再訂閱或退訂。
type listeners[T any] struct {
	name string
	mu   sync.Mutex
	seq  uint64
	fns  []entry[T]
}

func (l *listeners[T]) add(fn func(T)) *Subscription {
	l.mu.Lock()
	l.seq++
	id := l.seq
	l.fns = append(l.fns, entry[T]{id: id, fn: fn})
	l.mu.Unlock()
	return &Subscription{cancel: func() { l.remove(id) }}
}

func (l *listeners[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = slices.DeleteFunc(l.fns, func(e entry[T]) bool { return e.id == id })
}

func (l *listeners[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

func (l *listeners[T]) emit(log *slog.Logger, v T) {
	l.mu.Lock()
	snap := slices.Clone(l.fns)
	l.mu.Unlock()
	for _, e := range snap {
		call(log, l.name, e.fn, v)
	}
}

// call 單一 listener 失敗只記錄，不影響其他 listener。
func call[T any](log *slog.Logger, name string, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "state.listener.panic",
				slog.String("kind", name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(v)
}
