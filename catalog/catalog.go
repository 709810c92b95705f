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

package catalog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/setting"
)

var (
	ErrDupID   = errs.NewFatal("duplicate table id").WithCode(errs.CodeConfig)
	ErrDupName = errs.NewFatal("duplicate table name").WithCode(errs.CodeConfig)
)

type Entry struct {
	TableID    string
	Name       string
	ConfigName string
}

// Summary 提供給 /v1/tables 的精簡資訊。
type Summary struct {
	TableID  string   `json:"table_id" yaml:"table_id"`
	Name     string   `json:"name"     yaml:"name"`
	Columns  int      `json:"columns"  yaml:"columns"`
	Rows     int      `json:"rows"     yaml:"rows"`
	Lines    int      `json:"lines"    yaml:"lines"`
	BetSteps []string `json:"bet_steps" yaml:"bet_steps"`
}

// Catalog 由一組平坦的 fs.FS 建立桌台索引，載入時即解析並驗證每個設定檔。
type Catalog struct {
	byID     map[string]Entry
	byName   map[string]Entry
	settings map[string]*setting.TableSetting
	ids      []string // 用來穩定排序
	config   *multiFS
}

// New 掃描所有來源並解析每個 yaml/json，table_id 或名稱重複即失敗。
func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	c := &Catalog{
		byID:     map[string]Entry{},
		byName:   map[string]Entry{},
		settings: map[string]*setting.TableSetting{},
		ids:      make([]string, 0, len(multFS.index)),
		config:   multFS,
	}
	for _, name := range multFS.names() {
		src, _ := multFS.GetFS(name)
		raw, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, errs.Wrap(err, "catalog read file error")
		}
		ts, err := setting.ParseByExt(name, raw)
		if err != nil {
			return nil, errs.WrapWithExtra(err, "catalog parse file error", name)
		}
		if err := c.register(Entry{TableID: ts.Table.TableID, Name: ts.Table.Name, ConfigName: name}, ts); err != nil {
			return nil, err
		}
	}
	sort.Strings(c.ids)
	return c, nil
}

func (c *Catalog) register(e Entry, ts *setting.TableSetting) error {
	key := strings.ToLower(strings.TrimSpace(e.Name))
	if _, ok := c.byID[e.TableID]; ok {
		return errs.WrapWithExtra(ErrDupID, "register table", e.TableID)
	}
	if _, ok := c.byName[key]; ok {
		return errs.WrapWithExtra(ErrDupName, "register table", e.Name)
	}
	c.byID[e.TableID] = e
	c.byName[key] = e
	c.settings[e.TableID] = ts
	c.ids = append(c.ids, e.TableID)
	return nil
}

func (c *Catalog) GetByID(id string) (Entry, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	m, ok := c.byName[name]
	return m, ok
}

func (c *Catalog) IDs() []string {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]string(nil), c.ids...)
}

func (c *Catalog) All() []Entry {
	m := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		m = append(m, c.byID[id])
	}
	return m
}

// TableSetting 回傳已驗證的設定。設定在載入後視為唯讀。
func (c *Catalog) TableSetting(id string) (*setting.TableSetting, error) {
	ts, ok := c.settings[id]
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("table id %q does not exist in catalog", id)).WithCode(errs.CodeNotFound)
	}
	return ts, nil
}

func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.ids))
	for _, id := range c.ids {
		ts := c.settings[id]
		out = append(out, Summary{
			TableID:  ts.Table.TableID,
			Name:     ts.Table.Name,
			Columns:  ts.Screen.Columns,
			Rows:     ts.Screen.Rows,
			Lines:    len(ts.Paylines),
			BetSteps: append([]string(nil), ts.Bet.Steps...),
		})
	}
	return out
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
	}

	m := &multiFS{
		src:   src,
		index: make(map[string]int, 16),
	}

	for i := 0; i < len(src); i++ {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// 桌台設定目錄必須是平坦的，只允許根目錄
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			if !isConfigName(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], ok
	}
	return nil, false
}

func (m *multiFS) names() []string {
	out := make([]string, 0, len(m.index))
	for n := range m.index {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func isConfigName(file string) bool {
	if strings.HasPrefix(file, ".") {
		return false
	}
	lower := strings.ToLower(file)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}
