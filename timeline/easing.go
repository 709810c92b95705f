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

package timeline

import (
	"math"
	"time"
)

const (
	// 捲動速度以 40ms 為一個基準格
	baseFrame = 40 * time.Millisecond

	minSpeedMul = 0.8
	maxSpeedMul = 2.0
)

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func easeInOutSine(t float64) float64 {
	return -(math.Cos(math.Pi*t) - 1) / 2
}

// speedMul 慢→快→慢；超過 duration 後維持最高速直到被停下。
func speedMul(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return maxSpeedMul
	}
	p := min(float64(elapsed)/float64(duration), 1)
	return minSpeedMul + (maxSpeedMul-minSpeedMul)*easeInOutCubic(p)
}

// pulseScale p ∈ [0,1]，兩端為 1，中段到達 scale。
func pulseScale(scale, p float64) float64 {
	return 1 + (scale-1)*math.Sin(easeInOutSine(p)*math.Pi)
}

// bounceOffset 先衝高再衰減回 0。
func bounceOffset(height, p float64) float64 {
	return height * math.Sin(p*math.Pi) * (1 - p)
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
