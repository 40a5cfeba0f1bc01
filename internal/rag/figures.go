package rag

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// figurePairRe matches a primary financial term followed by two figures,
// the prior-period and current-period values as they appear in the
// comparative tables of a filing. Matched on width-folded text.
// The separator excludes the comma so a single grouped figure like
// 350,925 cannot be split into a fake pair.
var figurePairRe = regexp.MustCompile(`(売上高|営業利益|経常利益|当期純利益|純利益|営業収益)[^0-9]{0,10}([0-9][0-9,]*(?:\.[0-9]+)?)[^0-9,]{1,10}([0-9][0-9,]*(?:\.[0-9]+)?)`)

// FigureComparison is a prior/current figure pair for one P&L line.
type FigureComparison struct {
	Term      string
	Prior     float64
	Current   float64
	ChangePct float64 // signed, rounded to one decimal
}

// Direction returns the Japanese direction word for the change.
func (f FigureComparison) Direction() string {
	if f.ChangePct < 0 {
		return "減少"
	}
	return "増加"
}

// Summary renders the comparison as one Japanese sentence, e.g.
// 営業利益: 前期 350,925 → 当期 314,807（前期比 10.3% 減少）.
func (f FigureComparison) Summary() string {
	return fmt.Sprintf("%s: 前期 %s → 当期 %s（前期比 %.1f%% %s）",
		f.Term, groupDigits(f.Prior), groupDigits(f.Current), math.Abs(f.ChangePct), f.Direction())
}

// ExtractFigureComparison finds the first prior/current figure pair in a
// fragment and computes the period-over-period change. Returns nil when
// no pair is present or the prior value is zero.
func ExtractFigureComparison(s string) *FigureComparison {
	m := figurePairRe.FindStringSubmatch(foldWidth(s))
	if m == nil {
		return nil
	}
	prior, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil || prior == 0 {
		return nil
	}
	current, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
	if err != nil {
		return nil
	}

	change := (current - prior) / prior * 100
	return &FigureComparison{
		Term:      m[1],
		Prior:     prior,
		Current:   current,
		ChangePct: math.Round(change*10) / 10,
	}
}

// groupDigits formats a value with comma grouping, dropping the fraction
// when it is integral (filing tables are whole millions of yen).
func groupDigits(v float64) string {
	neg := v < 0
	v = math.Abs(v)

	intPart := int64(v)
	frac := v - float64(intPart)

	s := strconv.FormatInt(intPart, 10)
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String()
	if frac >= 0.05 {
		out += strconv.FormatFloat(frac, 'f', 1, 64)[1:]
	}
	if neg {
		out = "-" + out
	}
	return out
}
