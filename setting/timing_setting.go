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
	"fmt"
	"strings"
	"time"

	"github.com/zintix-labs/reelround/errs"
)

// SettleStyle 停輪後的收尾效果。
type SettleStyle uint8

const (
	SettlePulse SettleStyle = iota
	SettleBounce
)

var settleStyleMap = map[string]SettleStyle{
	"pulse":  SettlePulse,
	"bounce": SettleBounce,
}

func ParseSettleStyle(s string) (SettleStyle, bool) {
	st, ok := settleStyleMap[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s SettleStyle) String() string {
	if s == SettleBounce {
		return "bounce"
	}
	return "pulse"
}

// SettleSetting 收尾效果參數。Scale 用於 pulse，Height 用於 bounce。
type SettleSetting struct {
	StyleStr string      `yaml:"style"    json:"style"`
	Style    SettleStyle `yaml:"-"        json:"-"`
	Scale    float64     `yaml:"scale"    json:"scale"`
	Height   float64     `yaml:"height"   json:"height"`
	Duration Duration    `yaml:"duration" json:"duration"`
	Delay    Duration    `yaml:"delay"    json:"delay"`
}

func (ss *SettleSetting) init(name string, def SettleSetting) error {
	if ss.StyleStr == "" {
		ss.StyleStr = def.StyleStr
	}
	st, ok := ParseSettleStyle(ss.StyleStr)
	if !ok {
		return errs.NewFatal(fmt.Sprintf("%s.style error: %s", name, ss.StyleStr)).WithCode(errs.CodeConfig)
	}
	ss.Style = st
	if ss.Scale == 0 {
		ss.Scale = def.Scale
	}
	if ss.Height == 0 {
		ss.Height = def.Height
	}
	if ss.Duration == 0 {
		ss.Duration = def.Duration
	}
	if ss.Delay == 0 {
		ss.Delay = def.Delay
	}
	if ss.Scale < 1 {
		return errs.NewFatal(fmt.Sprintf("%s.scale must >= 1", name)).WithCode(errs.CodeConfig)
	}
	if ss.Height < 0 || ss.Duration < 0 || ss.Delay < 0 {
		return errs.NewFatal(fmt.Sprintf("%s has negative value", name)).WithCode(errs.CodeConfig)
	}
	return nil
}

// TimingSetting 回合節奏。這些都是產品調校值，不是架構限制，所以全部放在設定檔。
type TimingSetting struct {
	ScrollDuration    Duration      `yaml:"scroll_duration"     json:"scroll_duration"`
	ScrollSpeed       float64       `yaml:"scroll_speed"        json:"scroll_speed"`
	ScrollColumnDelay Duration      `yaml:"scroll_column_delay" json:"scroll_column_delay"`
	LinearScroll      bool          `yaml:"linear_scroll"       json:"linear_scroll"`
	StopDelay         Duration      `yaml:"stop_delay"          json:"stop_delay"`
	StopColumnDelay   Duration      `yaml:"stop_column_delay"   json:"stop_column_delay"`
	RevealDelay       Duration      `yaml:"reveal_delay"        json:"reveal_delay"`
	TurboRevealDelay  Duration      `yaml:"turbo_reveal_delay"  json:"turbo_reveal_delay"`
	Settle            SettleSetting `yaml:"settle"              json:"settle"`
	TurboSettle       SettleSetting `yaml:"turbo_settle"        json:"turbo_settle"`
	AutoPlayPause     Duration      `yaml:"autoplay_pause"      json:"autoplay_pause"`
	BigWinHoldAuto    Duration      `yaml:"big_win_hold_auto"   json:"big_win_hold_auto"`
	BigWinHoldManual  Duration      `yaml:"big_win_hold_manual" json:"big_win_hold_manual"`
	FrameInterval     Duration      `yaml:"frame_interval"      json:"frame_interval"`
}

// DefaultTiming 預設節奏。
func DefaultTiming() TimingSetting {
	return TimingSetting{
		ScrollDuration:    Duration(1300 * time.Millisecond),
		ScrollSpeed:       0.4,
		ScrollColumnDelay: Duration(250 * time.Millisecond),
		StopDelay:         Duration(1000 * time.Millisecond),
		StopColumnDelay:   Duration(300 * time.Millisecond),
		RevealDelay:       Duration(2000 * time.Millisecond),
		TurboRevealDelay:  Duration(500 * time.Millisecond),
		Settle: SettleSetting{
			StyleStr: "bounce",
			Style:    SettleBounce,
			Scale:    1.1,
			Height:   70,
			Duration: Duration(300 * time.Millisecond),
			Delay:    Duration(30 * time.Millisecond),
		},
		TurboSettle: SettleSetting{
			StyleStr: "pulse",
			Style:    SettlePulse,
			Scale:    1.1,
			Height:   70,
			Duration: Duration(400 * time.Millisecond),
			Delay:    Duration(50 * time.Millisecond),
		},
		AutoPlayPause:    Duration(500 * time.Millisecond),
		BigWinHoldAuto:   Duration(1500 * time.Millisecond),
		BigWinHoldManual: Duration(3000 * time.Millisecond),
		FrameInterval:    Duration(16 * time.Millisecond),
	}
}

// Normalize 補上預設值並檢查，供不經過桌台設定檔的呼叫端使用。
func (ts *TimingSetting) Normalize() error { return ts.init() }

func (ts *TimingSetting) init() error {
	def := DefaultTiming()
	fill := func(dst *Duration, v Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&ts.ScrollDuration, def.ScrollDuration)
	fill(&ts.ScrollColumnDelay, def.ScrollColumnDelay)
	fill(&ts.StopDelay, def.StopDelay)
	fill(&ts.StopColumnDelay, def.StopColumnDelay)
	fill(&ts.RevealDelay, def.RevealDelay)
	fill(&ts.TurboRevealDelay, def.TurboRevealDelay)
	fill(&ts.AutoPlayPause, def.AutoPlayPause)
	fill(&ts.BigWinHoldAuto, def.BigWinHoldAuto)
	fill(&ts.BigWinHoldManual, def.BigWinHoldManual)
	fill(&ts.FrameInterval, def.FrameInterval)
	if ts.ScrollSpeed == 0 {
		ts.ScrollSpeed = def.ScrollSpeed
	}

	if ts.ScrollSpeed < 0 {
		return errs.NewFatal("timing.scroll_speed must > 0").WithCode(errs.CodeConfig)
	}
	for name, d := range map[string]Duration{
		"scroll_duration":     ts.ScrollDuration,
		"scroll_column_delay": ts.ScrollColumnDelay,
		"stop_delay":          ts.StopDelay,
		"stop_column_delay":   ts.StopColumnDelay,
		"reveal_delay":        ts.RevealDelay,
		"turbo_reveal_delay":  ts.TurboRevealDelay,
		"autoplay_pause":      ts.AutoPlayPause,
		"big_win_hold_auto":   ts.BigWinHoldAuto,
		"big_win_hold_manual": ts.BigWinHoldManual,
		"frame_interval":      ts.FrameInterval,
	} {
		if d < 0 {
			return errs.NewFatal(fmt.Sprintf("timing.%s must not be negative", name)).WithCode(errs.CodeConfig)
		}
	}
	if err := ts.Settle.init("timing.settle", def.Settle); err != nil {
		return err
	}
	return ts.TurboSettle.init("timing.turbo_settle", def.TurboSettle)
}
