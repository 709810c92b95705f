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

// Package v1 提供唯讀的桌台目錄與狀態查詢。
package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/catalog"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/server/httperr"
)

// TableHandler GET /v1/tables 與 /v1/tables/{id}
type TableHandler struct {
	cat *catalog.Catalog
}

func NewTableHandler(cat *catalog.Catalog) (*TableHandler, error) {
	if cat == nil {
		return nil, errs.NewFatal("catalog is required").WithCode(errs.CodeConfig)
	}
	return &TableHandler{cat: cat}, nil
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	httperr.JSON(w, h.cat.Summaries())
}

// Get 回傳完整的桌台設定，客戶端據此組裝 Table。
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	ts, err := h.cat.TableSetting(chi.URLParam(r, "id"))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	httperr.JSON(w, ts)
}

// StatusHandler GET /v1/status
type StatusHandler struct {
	auth    *authority.Authority
	started time.Time
}

type statusResponse struct {
	authority.Stats
	Uptime string `json:"uptime"`
}

func NewStatusHandler(auth *authority.Authority) *StatusHandler {
	return &StatusHandler{auth: auth, started: time.Now()}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	httperr.JSON(w, statusResponse{
		Stats:  h.auth.Stats(),
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}
