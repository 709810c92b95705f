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

package svrcfg

import (
	"log/slog"
	"strings"
	"time"

	"github.com/zintix-labs/reelround/authority"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/server/logger"
)

const DefaultAddr = ":5808"

type SvrCfg struct {
	Log       *slog.Logger
	Addr      string
	Authority *authority.Authority

	// AllowedOrigins CORS 白名單，空值代表允許所有來源（本地開發用）
	AllowedOrigins []string

	// websocket 心跳
	PingInterval time.Duration
	PongWait     time.Duration
}

func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	sc.Addr = strings.TrimSpace(sc.Addr)
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if !strings.Contains(sc.Addr, ":") {
		return errs.NewFatal("listen address must contain a port: " + sc.Addr).WithCode(errs.CodeConfig)
	}
	if len(sc.AllowedOrigins) == 0 {
		sc.AllowedOrigins = []string{"*"}
	}
	if sc.PingInterval < 0 || sc.PongWait < 0 {
		return errs.NewFatal("websocket heartbeat must >= 0").WithCode(errs.CodeConfig)
	}
	if sc.Authority == nil {
		return errs.NewFatal("authority is required").WithCode(errs.CodeConfig)
	}
	return nil
}
