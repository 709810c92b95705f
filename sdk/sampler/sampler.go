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

// Package sampler 加權抽樣。本地 authority 以此為每個格子抽取圖示。
//
// 兩種結構：
//   - LUT：權重總和小時使用，抽樣只需一次 IntN。
//   - AliasTable：權重總和大時使用，記憶體與權重總和無關。
//
// Build 依權重總和自動選擇。
package sampler

import (
	"fmt"
	"math"

	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/sdk/core"
)

// LUTLimit 權重總和不超過此值時 Build 使用 LUT。
const LUTLimit = 100_000

// Picker 回傳被抽中的索引。
type Picker interface {
	Pick(c *core.Core) int
}

// Integers 所有底層為整數的型別。
type Integers interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Build 驗證權重後建立 Picker。負權重、全為零或總和溢位都回傳錯誤。
func Build(weights []int) (Picker, error) {
	total, err := sum(weights)
	if err != nil {
		return nil, err
	}
	if total <= LUTLimit {
		return BuildLUT(weights), nil
	}
	return BuildAliasTable(weights), nil
}

func sum(weights []int) (uint64, error) {
	if len(weights) == 0 {
		return 0, errs.NewFatal("sampler: empty weights").WithCode(errs.CodeConfig)
	}
	total := uint64(0)
	for i, w := range weights {
		if w < 0 {
			return 0, errs.NewFatal(fmt.Sprintf("sampler: negative weight at %d", i)).WithCode(errs.CodeConfig)
		}
		if total > uint64(math.MaxInt)-uint64(w) {
			return 0, errs.NewFatal("sampler: total weight overflow").WithCode(errs.CodeConfig)
		}
		total += uint64(w)
	}
	if total == 0 {
		return 0, errs.NewFatal("sampler: all weights are zero").WithCode(errs.CodeConfig)
	}
	return total, nil
}
