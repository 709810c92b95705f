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
package authority

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sdk/core"
)

// Authority 持有所有桌台的 Engine，並為每條連線建立 Session。
type Authority struct {
	cat     *catalog.Catalog
	engines map[string]*Engine
	log     *slog.Logger
	seed    int64
	seeded  bool

	nextID   atomic.Int64
	sessions atomic.Int64
	rounds   atomic.Int64
}

type Option func(*Authority)

func WithLogger(log *slog.Logger) Option {
	return func(a *Authority) {
		if log != nil {
			a.log = log
		}
	}
}

// WithSeed 固定亂數種子，第 n 個 Session 使用 seed+n，供測試重現盤面。
func WithSeed(seed int64) Option {
	return func(a *Authority) {
		a.seed = seed
		a.seeded = true
	}
}

func New(cat *catalog.Catalog, opts ...Option) (*Authority, error) {
	if cat == nil {
		return nil, errs.NewFatal("authority: catalog is required").WithCode(errs.CodeConfig)
	}
	a := &Authority{
		cat:     cat,
		engines: make(map[string]*Engine, len(cat.IDs())),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, id := range cat.IDs() {
		ts, err := cat.TableSetting(id)
		if err != nil {
			return nil, err
		}
		eng, err := NewEngine(ts)
		if err != nil {
			return nil, err
		}
		a.engines[id] = eng
	}
	return a, nil
}

func (a *Authority) Catalog() *catalog.Catalog { return a.cat }

func (a *Authority) Engine(tableID string) (*Engine, bool) {
	e, ok := a.engines[tableID]
	return e, ok
}

// NewSession 一條連線一個 Session。
func (a *Authority) NewSession() *Session {
	n := a.nextID.Add(1)
	var rng *core.Core
	if a.seeded {
		rng = core.Seeded(a.seed + n)
	} else {
		rng = core.Random()
	}
	return newSession(a, n, rng)
}

// Stats 給狀態端點使用。
type Stats struct {
	Tables   int   `json:"tables"`
	Sessions int64 `json:"sessions"`
	Rounds   int64 `json:"rounds"`
}

func (a *Authority) Stats() Stats {
	return Stats{
		Tables:   len(a.engines),
		Sessions: a.sessions.Load(),
		Rounds:   a.rounds.Load(),
	}
}
