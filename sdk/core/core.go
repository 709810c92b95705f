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

// Package core 亂數來源。轉輪捲動的模糊圖示與本地 authority 的盤面抽樣都由這裡取數。
package core

// PRNG 取樣能力加上狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

type Restorable interface {
	Snapshot() ([]byte, error)
	Restore([]byte) error
}

type RAND interface {
	// Uint64 回傳 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max)，max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max)，max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 相同 seed 必須產生相同序列，測試與重播依賴這點。
	New(int64) PRNG
}

type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// Core 封裝 PRNG，並提供常用取樣方法。
type Core struct {
	PRNG
}

func New(rng PRNG) *Core {
	return &Core{rng}
}

// Seeded 等同 New(Default().New(seed))。
func Seeded(seed int64) *Core {
	return New(Default().New(seed))
}

// Random 以加密亂數播種。
func Random() *Core {
	return New(NewPCG64())
}

// Pick 從列表中隨機選取一個元素，列表為空回傳 -1。
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	return src[c.IntN(len(src))]
}

// PickString 從列表中隨機選取一個字串，列表為空回傳空字串。
func (c *Core) PickString(src []string) string {
	if len(src) == 0 {
		return ""
	}
	return src[c.IntN(len(src))]
}
