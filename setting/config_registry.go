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

package setting

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/reelround/errs"
	"gopkg.in/yaml.v3"
)

// GetTableSettingByYAML 嚴格解析：多寫/拼錯欄位就報錯。
func GetTableSettingByYAML(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(ts); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml").WithCode(errs.CodeConfig)
	}

	// 設定檔初始化
	if err := ts.init(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}
	return ts, nil
}

func GetTableSettingByJSON(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ts); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte").WithCode(errs.CodeConfig)
	}

	// 設定檔初始化
	if err := ts.init(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}
	return ts, nil
}

// ParseByExt 依副檔名選擇解析器。
func ParseByExt(filename string, raw []byte) (*TableSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return GetTableSettingByYAML(raw)
	case ".json":
		return GetTableSettingByJSON(raw)
	default:
		return nil, errs.NewFatal("unsupported config format: " + filename).WithCode(errs.CodeConfig)
	}
}
