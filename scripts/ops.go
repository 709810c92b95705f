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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// 開發用任務：go run scripts/ops.go <task>
//
// 測試類任務都會先清除 test cache。
type task struct {
	help  string
	clean bool
	args  []string
	// filter 回傳 false 的行不輸出；nil 表示全部輸出
	filter func(line string) bool
}

var tasks = map[string]task{
	"test": {
		help:   "go test ./... -cover, only package results",
		clean:  true,
		args:   []string{"test", "./...", "-cover", "-count=1"},
		filter: summaryOnly,
	},
	"race": {
		help:   "go test ./... -race, scheduler and websocket code is concurrent",
		clean:  true,
		args:   []string{"test", "./...", "-race", "-count=1"},
		filter: summaryOnly,
	},
	"test-detail": {
		help:   "go test ./... -v without [no test files] lines",
		clean:  true,
		args:   []string{"test", "./...", "-v", "-count=1"},
		filter: func(line string) bool { return !strings.Contains(line, "[no test files]") },
	},
	"vet": {
		help: "go vet ./...",
		args: []string{"vet", "./..."},
	},
	"svr": {
		help: "run the local authority server",
		args: []string{"run", "./cmd/svr"},
	},
	"play": {
		help: "play 20 rounds against an in-process authority",
		args: []string{"run", "./cmd/play", "-local", "-rounds", "20"},
	},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		color.Yellow("Unknown task: %s", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[1], t, os.Args[2:]); err != nil {
		color.Red("\n%s finished with errors: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: go run scripts/ops.go [task] [extra args]")
	names := make([]string, 0, len(tasks))
	for n := range tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-12s %s\n", n, tasks[n].help)
	}
}

func run(name string, t task, extra []string) error {
	color.Green("running %s", name)
	if t.clean {
		clean := exec.Command("go", "clean", "-testcache")
		clean.Stdout, clean.Stderr = os.Stdout, os.Stderr
		if err := clean.Run(); err != nil {
			return fmt.Errorf("go clean -testcache: %w", err)
		}
	}
	cmd := exec.Command("go", append(t.args, extra...)...)
	cmd.Stdin = os.Stdin
	if t.filter == nil {
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		return cmd.Run()
	}

	// 合併 stdout/stderr，編譯錯誤（通常在 stderr）才看得到
	pr, pw := io.Pipe()
	cmd.Stdout, cmd.Stderr = pw, pw
	if err := cmd.Start(); err != nil {
		return err
	}
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()
	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		line := sc.Text()
		if !t.filter(line) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ok"):
			color.Green("%s", line)
		case strings.HasPrefix(line, "FAIL"), strings.Contains(line, "DATA RACE"):
			color.Red("%s", line)
		default:
			fmt.Println(line)
		}
	}
	// 掃描中斷（例如單行過長）時仍要讀完，子行程才不會卡在寫入
	_, _ = io.Copy(io.Discard, pr)
	return <-waitErr
}

// summaryOnly 只留套件結果與嚴重錯誤，過濾太乾淨會看不出為什麼沒反應
func summaryOnly(line string) bool {
	return strings.HasPrefix(line, "ok") || strings.HasPrefix(line, "FAIL") ||
		strings.Contains(line, "build failed") || strings.Contains(line, "setup failed") ||
		strings.Contains(line, "DATA RACE") || strings.HasPrefix(line, "#")
}
