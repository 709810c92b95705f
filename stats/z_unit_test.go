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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/stats"
	"gopkg.in/yaml.v3"
)

// buildReport 以固定押注 1 與給定贏倍建立報告
func buildReport(mults []float64) *stats.SessionReport {
	r := stats.NewSessionReport("STGRHR101", "fruit", decimal.NewFromInt(100))
	for _, m := range mults {
		r.Summary.Rounds++
		r.Summary.TotalStake = r.Summary.TotalStake.Add(decimal.NewFromInt(1))
		r.Summary.TotalReward = r.Summary.TotalReward.Add(decimal.NewFromFloat(m))
		if m == 0 {
			r.Summary.NoWinRounds++
		}
		r.Dist.Collect[stats.Buckets.Index(m)]++
		r.Multiples = append(r.Multiples, m)
	}
	r.Done()
	return r
}

func TestBucketIndex(t *testing.T) {
	cases := map[float64]string{
		0:     "[0,0]",
		0.5:   "(0,1)",
		1:     "[1,2)",
		4.99:  "[2,5)",
		5:     "[5,10)",
		20000: "[10000,+inf)",
	}
	labels := stats.Buckets.WinBucketStr()
	for m, want := range cases {
		if got := labels[stats.Buckets.Index(m)]; got != want {
			t.Fatalf("mult %v: got bucket %s want %s", m, got, want)
		}
	}
}

func TestSessionCoreMetrics(t *testing.T) {
	rep := buildReport([]float64{0, 0, 1, 2, 7})
	if got := rep.Rtp(); math.Abs(got-2.0) > 1e-12 {
		t.Fatalf("RTP got %.6f want 2", got)
	}
	if math.Abs(rep.Summary.HitRate-0.6) > 1e-12 {
		t.Fatalf("hit rate got %.3f", rep.Summary.HitRate)
	}
	if rep.Summary.HitRateCI.Lo > 0.6 || rep.Summary.HitRateCI.Hi < 0.6 {
		t.Fatalf("CI should bracket the estimate: %+v", rep.Summary.HitRateCI)
	}
	if math.Abs(rep.Mult.Mean-2.0) > 1e-12 {
		t.Fatalf("mean mult got %.6f", rep.Mult.Mean)
	}
	wantStd := math.Sqrt((4 + 4 + 1 + 0 + 25) / 4.0)
	if math.Abs(rep.Mult.Std-wantStd) > 1e-9 {
		t.Fatalf("std got %.6f want %.6f", rep.Mult.Std, wantStd)
	}
	if rep.Mult.Max != 7 {
		t.Fatalf("max mult got %v", rep.Mult.Max)
	}
	total := 0
	for _, c := range rep.Dist.Collect {
		total += c
	}
	if total != rep.Summary.Rounds || len(rep.Dist.Dist) != len(rep.Dist.WinBucket) {
		t.Fatalf("distribution does not add up")
	}
	share := rep.ShareAtMost(0)
	if math.Abs(share.Hat-0.4) > 1e-12 {
		t.Fatalf("share of no-win rounds got %.3f", share.Hat)
	}
	// 0, 0, 1 三回合派彩不超過押注
	if math.Abs(rep.Mult.AtMostStake.Hat-0.6) > 1e-12 || rep.Mult.AtMostStake.CI.Hi < 0.6 {
		t.Fatalf("at-most-stake share got %+v", rep.Mult.AtMostStake)
	}
}

func TestEmptyAndSingleRound(t *testing.T) {
	empty := buildReport(nil)
	if empty.Rtp() != 0 || empty.Summary.HitRate != 0 {
		t.Fatalf("empty report should be zero")
	}
	one := buildReport([]float64{3})
	if one.Mult.Std != 0 || one.Mult.Median.Hat != 3 {
		t.Fatalf("single round report unexpected: %+v", one.Mult)
	}
}

func TestTableAndRenderers(t *testing.T) {
	rep := buildReport([]float64{0, 1.5, 10})
	tbl := rep.Table()
	for _, want := range []string{"fruit", "Total RTP", "Hit Rate", "Big Wins", "Mult <= 1x"} {
		if !strings.Contains(tbl, want) {
			t.Fatalf("table missing %q:\n%s", want, tbl)
		}
	}
	lines := strings.Split(strings.TrimSpace(tbl), "\n")
	for _, l := range lines[1:] {
		if len(l) != len(lines[0]) {
			t.Fatalf("table rows should align:\n%s", tbl)
		}
	}

	var buf bytes.Buffer
	if err := rep.WriteWith(&buf, &stats.JsonReportRender{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil || back["Summary"] == nil {
		t.Fatalf("json output not decodable: %v", err)
	}

	buf.Reset()
	r, ok := stats.RenderByName("yaml")
	if !ok {
		t.Fatalf("yaml renderer missing")
	}
	if err := rep.WriteWith(&buf, r); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var node map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &node); err != nil || node["Dist"] == nil {
		t.Fatalf("yaml output not decodable: %v", err)
	}
	if _, ok := stats.RenderByName("xml"); ok {
		t.Fatalf("unknown renderer should not resolve")
	}
}
