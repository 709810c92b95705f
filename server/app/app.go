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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const DefaultShutdownTimeout = 5 * time.Second

// App 是一個簡單的生命週期管理器，負責啟動所有註冊的 Component，並在收到 OS 信號、ctx 結束
// 或任一 Component 返回時，協調優雅關閉。
type App struct {
	comps   []Component
	log     *slog.Logger
	timeout time.Duration
}

// New 建立一個新的 App 實例。
func New() *App {
	return &App{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultShutdownTimeout,
	}
}

// NewWith 是 New 的語法糖，允許在建立時直接註冊多個 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 將一個 Component 註冊到 App 中，關閉時依註冊的反序呼叫 Shutdown。
func (a *App) Register(c Component) {
	if c != nil {
		a.comps = append(a.comps, c)
	}
}

func (a *App) WithLogger(log *slog.Logger) *App {
	if log != nil {
		a.log = log
	}
	return a
}

func (a *App) WithShutdownTimeout(d time.Duration) *App {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// Run 同 RunContext，並監聽 SIGINT/SIGTERM。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 以 goroutine 並行啟動所有 Component，阻塞直到：
//   - ctx 結束：優雅關閉並返回 nil，代表正常結束。
//   - 任一 Component Run 返回：優雅關閉並返回該錯誤（正常返回則為 nil）。
//
// 假設每個 Component.Run 是阻塞調用，代表該元件的生命週期。
func (a *App) RunContext(ctx context.Context) error {
	if len(a.comps) == 0 {
		return nil
	}
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.LogAttrs(context.Background(), slog.LevelInfo, "app.signal")
	case runErr = <-errCh:
		if runErr != nil {
			a.log.LogAttrs(context.Background(), slog.LevelError, "app.component_failed", slog.Any("err", runErr))
		}
	}
	return errors.Join(runErr, a.gracefulShutdown())
}

// gracefulShutdown 在 timeout 內依反序呼叫所有 Component.Shutdown。
func (a *App) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	var all []error
	for i := len(a.comps) - 1; i >= 0; i-- {
		if err := a.comps[i].Shutdown(ctx); err != nil {
			a.log.LogAttrs(ctx, slog.LevelWarn, "app.shutdown_failed", slog.Any("err", err))
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}
