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

package catalog_test

import (
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/configs"
	"github.com/zintix-labs/reelround/errs"
)

const miniTable = `
table:
  table_id: %s
  name: %s
screen:
  columns: 3
  rows: 1
symbols:
  codes: [A, B]
paylines:
  - [[0, 0], [0, 1], [0, 2]]
`

func mini(id, name string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(fmt.Sprintf(miniTable, id, name))}
}

func TestCatalogLoadsEmbeddedTables(t *testing.T) {
	c, err := catalog.New(configs.FS)
	if err != nil {
		t.Fatalf("load embedded configs: %v", err)
	}
	ts, err := c.TableSetting("STGRHR101")
	if err != nil {
		t.Fatalf("default table missing: %v", err)
	}
	if ts.Screen.Columns != 5 || ts.Screen.Rows != 4 {
		t.Fatalf("unexpected screen %+v", ts.Screen)
	}
	if len(ts.Lines()) != 20 {
		t.Fatalf("expected 20 paylines, got %d", len(ts.Lines()))
	}
	if _, ok := c.GetByName("  Fruit Rush "); !ok {
		t.Fatalf("lookup by name should be case-insensitive")
	}
	sums := c.Summaries()
	if len(sums) != 2 || sums[0].TableID != "STGRHR101" {
		t.Fatalf("unexpected summaries %+v", sums)
	}
}

func TestCatalogRejectsDuplicateID(t *testing.T) {
	a := fstest.MapFS{"a.yaml": mini("T1", "one")}
	b := fstest.MapFS{"b.yaml": mini("T1", "two")}
	_, err := catalog.New(a, b)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if !errs.IsCode(err, errs.CodeConfig) {
		t.Fatalf("expected config code, got %v", err)
	}
}

func TestCatalogRejectsDuplicateFileAndSubdir(t *testing.T) {
	a := fstest.MapFS{"a.yaml": mini("T1", "one")}
	b := fstest.MapFS{"a.yaml": mini("T2", "two")}
	if _, err := catalog.New(a, b); err == nil {
		t.Fatalf("expected duplicate file error")
	}
	sub := fstest.MapFS{"dir/a.yaml": mini("T1", "one")}
	if _, err := catalog.New(sub); err == nil {
		t.Fatalf("expected flat fs error")
	}
	if _, err := catalog.New(); err == nil {
		t.Fatalf("expected error with no fs")
	}
}

func TestCatalogIgnoresOtherFiles(t *testing.T) {
	m := fstest.MapFS{
		"a.yaml":       mini("T1", "one"),
		"README.md":    &fstest.MapFile{Data: []byte("# notes")},
		".hidden.yaml": &fstest.MapFile{Data: []byte("::")},
	}
	c, err := catalog.New(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids := c.IDs(); len(ids) != 1 || ids[0] != "T1" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := c.TableSetting("nope"); err == nil {
		t.Fatalf("expected unknown table error")
	}
}
