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

package core

import (
	"crypto/rand"
	"encoding/binary"
	r2 "math/rand/v2"
)

// PCG64 以 math/rand/v2 的 PCG 為來源，有界取樣交給 rand.Rand。
type PCG64 struct {
	src *r2.PCG
	rnd *r2.Rand
}

// NewPCG64 以加密亂數產生 seed。
func NewPCG64() *PCG64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return NewPCG64WithSeed(int64(binary.LittleEndian.Uint64(b[:]) >> 1))
}

// NewPCG64WithSeed 相同 seed 產生相同序列。
func NewPCG64WithSeed(seed int64) *PCG64 {
	x := uint64(seed) ^ 0x9e3779b97f4a7c15
	src := r2.NewPCG(splitmix64(x), splitmix64(x^0xDA942042E4DD58B5))
	return &PCG64{src: src, rnd: r2.New(src)}
}

func (r *PCG64) Uint64() uint64 { return r.src.Uint64() }

// Float64 [0,1)，53 bits 精度。
func (r *PCG64) Float64() float64 { return r.rnd.Float64() }

// UintN [0,max)，max == 0 回傳 0。
func (r *PCG64) UintN(max uint) uint {
	if max == 0 {
		return 0
	}
	return r.rnd.UintN(max)
}

// IntN [0,max)，max <= 0 回傳 -1。
func (r *PCG64) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	return r.rnd.IntN(max)
}

func (r *PCG64) Snapshot() ([]byte, error) { return r.src.MarshalBinary() }

func (r *PCG64) Restore(data []byte) error { return r.src.UnmarshalBinary(data) }

// splitmix64 種子展開。
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
