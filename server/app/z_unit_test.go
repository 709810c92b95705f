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

package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeComp struct {
	name   string
	runErr error
	stop   chan struct{}
	order  *[]string
}

func (f *fakeComp) Run() error {
	if f.runErr != nil {
		return f.runErr
	}
	<-f.stop
	return nil
}

func (f *fakeComp) Shutdown(ctx context.Context) error {
	*f.order = append(*f.order, f.name)
	close(f.stop)
	return nil
}

func TestShutdownInReverseOrder(t *testing.T) {
	var order []string
	a := NewWith(
		&fakeComp{name: "hub", stop: make(chan struct{}), order: &order},
		&fakeComp{name: "http", stop: make(chan struct{}), order: &order},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.RunContext(ctx); err != nil {
		t.Fatalf("signal stop should return nil, got %v", err)
	}
	if len(order) != 2 || order[0] != "http" || order[1] != "hub" {
		t.Fatalf("unexpected shutdown order %v", order)
	}
}

func TestComponentErrorStopsAll(t *testing.T) {
	var order []string
	boom := errors.New("listen failed")
	a := NewWith(
		&fakeComp{name: "hub", stop: make(chan struct{}), order: &order},
		Funcs{RunFn: func() error { return boom }},
	)
	err := a.RunContext(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("component error should surface, got %v", err)
	}
	if len(order) != 1 {
		t.Fatalf("remaining components should shut down: %v", order)
	}
}
