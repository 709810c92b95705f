package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo" yaml:"Lo"`
	Hi float64 `json:"Hi" yaml:"Hi"`
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64 `json:"Hat" yaml:"Hat"`
	CI  CI      `json:"CI"  yaml:"CI"`
}

// SessionReport 一段遊玩（單桌、連續回合）的統計報告
type SessionReport struct {
	Summary *SummaryReport `json:"Summary" yaml:"Summary"`
	Mult    *MultReport    `json:"Mult"    yaml:"Mult"`
	Dist    *DistReport    `json:"Dist"    yaml:"Dist"`
	Player  *PlayerReport  `json:"Player"  yaml:"Player"`

	// Multiples 每回合的贏倍（派彩 / 押注），Done 由此計算 Mult
	Multiples []float64 `json:"-" yaml:"-"`
	isDone    bool
}

type SummaryReport struct {
	TableID     string          `json:"TableID"     yaml:"TableID"`
	TableName   string          `json:"TableName"   yaml:"TableName"`
	Rounds      int             `json:"Rounds"      yaml:"Rounds"`
	Failures    int             `json:"Failures"    yaml:"Failures"`
	Cancelled   int             `json:"Cancelled"   yaml:"Cancelled"`
	TurboRounds int             `json:"TurboRounds" yaml:"TurboRounds"`
	AutoRounds  int             `json:"AutoRounds"  yaml:"AutoRounds"`
	BigWins     int             `json:"BigWins"     yaml:"BigWins"`
	TotalStake  decimal.Decimal `json:"TotalStake"  yaml:"TotalStake"`
	TotalReward decimal.Decimal `json:"TotalReward" yaml:"TotalReward"`
	RTP         float64         `json:"RTP"         yaml:"RTP"`
	RtpCI       CI              `json:"RtpCI"       yaml:"RtpCI"`
	NoWinRounds int             `json:"NoWinRounds" yaml:"NoWinRounds"`
	HitRate     float64         `json:"HitRate"     yaml:"HitRate"`
	HitRateCI   CI              `json:"HitRateCI"   yaml:"HitRateCI"`
	Elapsed     time.Duration   `json:"Elapsed"     yaml:"Elapsed"`
}

// MultReport 贏倍統計，Done() 時由 Multiples 計算
type MultReport struct {
	Mean   float64   `json:"Mean"   yaml:"Mean"`
	Std    float64   `json:"Std"    yaml:"Std"`
	Cv     float64   `json:"Cv"     yaml:"Cv"`
	Max    float64   `json:"Max"    yaml:"Max"`
	Median PointStat `json:"Median" yaml:"Median"`
	P90    PointStat `json:"P90"    yaml:"P90"`

	// AtMostStake 派彩不超過押注（贏倍 <= 1）的回合比例
	AtMostStake PointStat `json:"AtMostStake" yaml:"AtMostStake"`
}

// DistReport 贏倍區間落點統計
type DistReport struct {
	WinBucket []string  `json:"WinBucket" yaml:"WinBucket"`
	Collect   []int     `json:"Collect"   yaml:"Collect"`
	Dist      []float64 `json:"Dist"      yaml:"Dist"`
}

// PlayerReport 餘額軌跡
type PlayerReport struct {
	InitBalance decimal.Decimal `json:"InitBalance" yaml:"InitBalance"`
	Balance     decimal.Decimal `json:"Balance"     yaml:"Balance"`
	MaxBalance  decimal.Decimal `json:"MaxBalance"  yaml:"MaxBalance"`
	MinBalance  decimal.Decimal `json:"MinBalance"  yaml:"MinBalance"`
}

// NewSessionReport 建立空報告
func NewSessionReport(tableID, name string, initBalance decimal.Decimal) *SessionReport {
	return &SessionReport{
		Summary: &SummaryReport{TableID: tableID, TableName: name},
		Mult:    &MultReport{},
		Dist: &DistReport{
			WinBucket: Buckets.WinBucketStr(),
			Collect:   make([]int, len(Buckets.WinBucketStr())),
		},
		Player: &PlayerReport{
			InitBalance: initBalance,
			Balance:     initBalance,
			MaxBalance:  initBalance,
			MinBalance:  initBalance,
		},
	}
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
func (s *SessionReport) Done() {
	if s.isDone {
		return
	}
	n := s.Summary.Rounds

	s.Summary.RTP = s.Rtp()
	s.Summary.RtpCI = s.Ci()
	if n > 0 {
		s.Summary.HitRate, s.Summary.HitRateCI = proportionCICP(n-s.Summary.NoWinRounds, n, 0.95)
	}

	if len(s.Multiples) > 0 {
		mean, std := stat.MeanStdDev(s.Multiples, nil)
		if len(s.Multiples) < 2 || math.IsNaN(std) {
			std = 0
		}
		s.Mult.Mean = mean
		s.Mult.Std = std
		if mean > 0 {
			s.Mult.Cv = std / mean
		}
		sorted := make([]float64, len(s.Multiples))
		copy(sorted, s.Multiples)
		sort.Float64s(sorted)
		s.Mult.Max = sorted[len(sorted)-1]
		s.Mult.Median = quantileStat(sorted, 0.5)
		s.Mult.P90 = quantileStat(sorted, 0.9)
		s.Mult.AtMostStake = s.ShareAtMost(1)
	}

	s.Dist.Dist = make([]float64, len(s.Dist.Collect))
	if n > 0 {
		for i, c := range s.Dist.Collect {
			s.Dist.Dist[i] = float64(c) / float64(n)
		}
	}
	s.isDone = true
}

// Rtp 回傳整體 RTP（總派彩 / 總押注）
func (s *SessionReport) Rtp() float64 {
	if s.Summary.Rounds == 0 || s.Summary.TotalStake.IsZero() {
		return 0
	}
	return s.Summary.TotalReward.Div(s.Summary.TotalStake).InexactFloat64()
}

// Ci 回傳(95% Rtp)信賴區間，以贏倍標準差近似
func (s *SessionReport) Ci() CI {
	rtp := s.Rtp()
	n := len(s.Multiples)
	if n < 2 {
		return CI{Lo: rtp, Hi: rtp}
	}
	std := stat.StdDev(s.Multiples, nil)
	se := std / math.Sqrt(float64(n))
	return CI{
		Lo: max(rtp-1.96*se, 0.0),
		Hi: rtp + 1.96*se,
	}
}

func (s *SessionReport) WriteWith(w io.Writer, rep ReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// Table 以對齊表格輸出摘要
func (s *SessionReport) Table() string {
	s.Done()
	sk, sm := s.fmtBasic()
	title := s.Summary.TableName
	if title == "" {
		title = s.Summary.TableID
	}
	return fmtTable(title, sk, sm)
}

// StdOut 輸出耗時與摘要表格
func (s *SessionReport) StdOut(w io.Writer) {
	formatDuration(w, s.Summary.Elapsed, s.Summary.Rounds)
	fmt.Fprintln(w, s.Table())
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(w io.Writer, d time.Duration, rounds int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rpm := float64(rounds) / sec * 60
	if sec < 60.0 {
		p.Fprintf(w, "used: %.2f seconds\npace: %.1f rounds/min\n", sec, rpm)
		return
	}
	ss := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		p.Fprintf(w, "used: %dm %ds\npace: %.1f rounds/min\n", m, ss, rpm)
		return
	}
	p.Fprintf(w, "used: %dh:%dm:%ds\npace: %.1f rounds/min\n", h, m, ss, rpm)
}

func (s *SessionReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sum := s.Summary
	basic := map[string]string{
		"Table ID":      sum.TableID,
		"Total Rounds":  p.Sprintf("%d", sum.Rounds),
		"Failed Rounds": p.Sprintf("%d", sum.Failures),
		"Stopped Early": p.Sprintf("%d", sum.Cancelled),
		"Total Stake":   sum.TotalStake.StringFixed(2),
		"Total Reward":  sum.TotalReward.StringFixed(2),
		"Total RTP":     p.Sprintf("%.2f %%", 100.0*sum.RTP),
		"RTP 95% CI":    p.Sprintf("[%.2f%%,%.2f%%]", 100.0*sum.RtpCI.Lo, 100.0*sum.RtpCI.Hi),
		"Hit Rate":      fmtHatCIpct01(sum.HitRate, sum.HitRateCI),
		"Big Wins":      p.Sprintf("%d", sum.BigWins),
		"Mean Mult":     p.Sprintf("%.3f", s.Mult.Mean),
		"STD":           p.Sprintf("%.3f", s.Mult.Std),
		"Median Mult":   p.Sprintf("%.2f [%.2f, %.2f]", s.Mult.Median.Hat, s.Mult.Median.CI.Lo, s.Mult.Median.CI.Hi),
		"Max Mult":      p.Sprintf("%.2f", s.Mult.Max),
		"Mult <= 1x":    fmtHatCIpct01(s.Mult.AtMostStake.Hat, s.Mult.AtMostStake.CI),
		"Balance":       p.Sprintf("%s -> %s", s.Player.InitBalance.StringFixed(2), s.Player.Balance.StringFixed(2)),
	}
	keys := []string{"Table ID", "Total Rounds", "Failed Rounds", "Stopped Early", "Total Stake", "Total Reward", "Total RTP", "RTP 95% CI", "Hit Rate", "Big Wins", "Mean Mult", "STD", "Median Mult", "Max Mult", "Mult <= 1x", "Balance"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := runewidth.StringWidth(title)
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var b strings.Builder
	b.WriteString(top)
	b.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	b.WriteString(divider)
	for _, k := range keys {
		b.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
