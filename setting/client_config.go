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
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zintix-labs/reelround/errs"
)

const (
	EnvAuthorityURL   = "REELROUND_AUTHORITY_URL"
	EnvTableID        = "REELROUND_TABLE_ID"
	EnvLogMode        = "REELROUND_LOG_MODE"
	EnvDialTimeout    = "REELROUND_DIAL_TIMEOUT"
	EnvRequestTimeout = "REELROUND_REQUEST_TIMEOUT"
)

// ClientConfig 客戶端執行期設定，來源順序：預設值 < .env < 環境變數 < 命令列旗標。
type ClientConfig struct {
	AuthorityURL   string
	TableID        string
	LogMode        string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		AuthorityURL:   "ws://127.0.0.1:5808/ws",
		TableID:        DefaultTableID,
		LogMode:        "ModeDev",
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// LoadClientConfig 讀取 .env（檔案不存在不算錯誤）後再套用環境變數。
// files 為空時讀取工作目錄下的 .env。
func LoadClientConfig(files ...string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, errs.Wrap(err, "load .env failed").WithCode(errs.CodeConfig)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Valid()
}

func (c *ClientConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAuthorityURL); ok && strings.TrimSpace(v) != "" {
		c.AuthorityURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTableID); ok && strings.TrimSpace(v) != "" {
		c.TableID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogMode); ok && strings.TrimSpace(v) != "" {
		c.LogMode = strings.TrimSpace(v)
	}
	for key, dst := range map[string]*time.Duration{
		EnvDialTimeout:    &c.DialTimeout,
		EnvRequestTimeout: &c.RequestTimeout,
	} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(err, key+" is not a duration").WithCode(errs.CodeConfig)
		}
		*dst = d
	}
	return nil
}

func (c *ClientConfig) Valid() error {
	if !strings.HasPrefix(c.AuthorityURL, "ws://") && !strings.HasPrefix(c.AuthorityURL, "wss://") {
		return errs.NewFatal("authority url must start with ws:// or wss://").WithCode(errs.CodeConfig)
	}
	if c.TableID == "" {
		return errs.NewFatal("table id is required").WithCode(errs.CodeConfig)
	}
	if c.DialTimeout <= 0 || c.RequestTimeout <= 0 {
		return errs.NewFatal("timeouts must > 0").WithCode(errs.CodeConfig)
	}
	return nil
}
