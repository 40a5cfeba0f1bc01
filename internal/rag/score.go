package rag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/irdesk/ir-assist/internal/model"
)

// Scoring weights. The relative magnitudes are deliberate and encode the
// prioritization numeric financial data >> keyword match >> term
// presence >> length shaping. Do not normalize them.
const (
	weightKeywordHit = 10

	weightYoYPattern          = 50
	weightCurrencyPattern     = 30
	weightPercentPattern      = 25
	weightFiscalPeriodPattern = 20

	penaltyShortFragment = -15
	bonusSentenceBand    = 10
	shortFragmentRunes   = 30
	sentenceBandMinRunes = 50
	sentenceBandMaxRunes = 300
	maxSelectedFragments = 5
)

// Numeric/financial patterns, matched on width-folded text.
var (
	currencyAmountRe = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?\s*(?:兆円|億円|百万円|千円|万円|円|ドル|million|billion)`)
	percentRe        = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?\s*[%％]`)
	yoyRe            = regexp.MustCompile(`前年同期比|前期比|前年比|対前年|同期比|YoY|yoy`)
	fiscalPeriodRe   = regexp.MustCompile(`FY[0-9]{2,4}|20[0-9]{2}年(?:3月期|[0-9]{1,2}月期|度)?|第[1-4１-４]四半期|通期|上期|下期|上半期|下半期|Q[1-4]`)
	anyDigitRe       = regexp.MustCompile(`[0-9]`)
)

// primaryFinancialTerms are the headline P&L lines. An answer about
// results is expected to cite at least one of these.
var primaryFinancialTerms = map[string]int{
	"売上高":              30,
	"営業利益":             30,
	"経常利益":             25,
	"当期純利益":            25,
	"純利益":              20,
	"営業収益":             20,
	"revenue":          15,
	"operating profit": 15,
	"net income":       15,
	"ordinary income":  15,
}

// secondaryFinancialTerms carry weaker context signal.
var secondaryFinancialTerms = map[string]int{
	"利益":           10,
	"業績":           10,
	"増収":           10,
	"増益":           10,
	"減収":           10,
	"減益":           10,
	"配当":           8,
	"前年":           5,
	"決算":           5,
	"profit":      5,
	"performance": 5,
	"dividend":    5,
}

// negativeBoilerplate marks fragments that assert the absence of
// information. These must be suppressed, not surfaced.
var negativeBoilerplate = map[string]int{
	"記載を省略":           -100,
	"記載しておりません":       -80,
	"該当事項はありません":      -80,
	"該当なし":            -80,
	"該当ありません":         -60,
	"開示しておりません":       -60,
	"省略しております":        -50,
	"未定":              -30,
	"not applicable": -60,
	"not stated":     -30,
	"omitted":        -30,
}

// queryPunctRe strips Japanese and ASCII punctuation before tokenizing.
var queryPunctRe = regexp.MustCompile(`[、。！？．，・「」『』（）()\[\]!?.,:;"']`)

// queryKeywords tokenizes the query on whitespace after stripping
// punctuation and keeps tokens longer than one rune.
func queryKeywords(query string) []string {
	cleaned := queryPunctRe.ReplaceAllString(foldWidth(query), " ")
	var keywords []string
	for _, tok := range strings.Fields(cleaned) {
		if len([]rune(tok)) > 1 {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}

// ScoreFragment assigns the additive relevance/quality score for one
// fragment against the query. The result is signed; negative scores mark
// boilerplate that should be suppressed.
func ScoreFragment(query, fragment string) int {
	folded := foldWidth(fragment)
	lower := strings.ToLower(folded)
	score := 0

	for _, kw := range queryKeywords(query) {
		score += weightKeywordHit * strings.Count(lower, strings.ToLower(kw))
	}

	score += weightYoYPattern * len(yoyRe.FindAllString(folded, -1))
	score += weightCurrencyPattern * len(currencyAmountRe.FindAllString(folded, -1))
	score += weightPercentPattern * len(percentRe.FindAllString(folded, -1))
	score += weightFiscalPeriodPattern * len(fiscalPeriodRe.FindAllString(folded, -1))

	for term, w := range primaryFinancialTerms {
		score += w * strings.Count(lower, term)
	}
	for term, w := range secondaryFinancialTerms {
		score += w * strings.Count(lower, term)
	}
	for term, w := range negativeBoilerplate {
		score += w * strings.Count(lower, term)
	}

	runes := len([]rune(fragment))
	if runes < shortFragmentRunes {
		score += penaltyShortFragment
	} else if runes >= sentenceBandMinRunes && runes <= sentenceBandMaxRunes {
		score += bonusSentenceBand
	}

	return score
}

// HasNumericFinancialData reports whether a fragment contains currency,
// percentage, or a primary financial term adjacent to digits — the rescue
// predicate that overrides a non-positive score.
func HasNumericFinancialData(s string) bool {
	folded := foldWidth(s)
	if currencyAmountRe.MatchString(folded) || percentRe.MatchString(folded) {
		return true
	}
	if !anyDigitRe.MatchString(folded) {
		return false
	}
	return HasFinancialTerm(s)
}

// HasFinancialTerm reports whether a fragment names a primary financial
// term.
func HasFinancialTerm(s string) bool {
	lower := strings.ToLower(foldWidth(s))
	for term := range primaryFinancialTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// hasFinancialContext is the looser check used by fallback tier (b).
func hasFinancialContext(s string) bool {
	if HasFinancialTerm(s) {
		return true
	}
	lower := strings.ToLower(foldWidth(s))
	for term := range secondaryFinancialTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// HasStrongNegative reports whether a fragment contains boilerplate that
// asserts the absence of information.
func HasStrongNegative(s string) bool {
	lower := strings.ToLower(foldWidth(s))
	for term := range negativeBoilerplate {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// SelectFragments scores candidates against the query and returns the
// fragments suitable for inclusion in context, best first, capped at max
// (default 5 when max <= 0).
//
// Primary selection keeps positive-scored fragments plus any fragment
// rescued by numeric financial content. A fragment carrying strong
// negative boilerplate is excluded from primary selection outright
// unless rescued, no matter how high keyword overlap pushes its score:
// it asserts the absence of information. When the primary set is empty
// the fallback tiers apply in order: (a) numeric data without strong
// negatives, (b) financial-context terms without strong negatives,
// (c) the first fragment without strong negatives, (d) the first
// fragment. The pipeline always has something to show.
func SelectFragments(query string, candidates []string, max int) []model.ScoredFragment {
	if max <= 0 {
		max = maxSelectedFragments
	}

	ordered := make([]model.ScoredFragment, 0, len(candidates))
	for _, c := range candidates {
		clean := Sanitize(c)
		if !Usable(clean) {
			continue
		}
		ordered = append(ordered, model.ScoredFragment{
			Fragment: model.TextEvidence{Content: clean, Origin: model.OriginSnippet},
			Score:    ScoreFragment(query, clean),
			Query:    query,
		})
	}
	if len(ordered) == 0 {
		return nil
	}

	// Stable sort keeps retrieval order among equal scores.
	scored := make([]model.ScoredFragment, len(ordered))
	copy(scored, ordered)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	var selected []model.ScoredFragment
	for _, f := range scored {
		rescued := HasNumericFinancialData(f.Fragment.Content) || HasFinancialTerm(f.Fragment.Content)
		if HasStrongNegative(f.Fragment.Content) && !rescued {
			continue
		}
		if f.Score > 0 || rescued {
			selected = append(selected, f)
			if len(selected) == max {
				return selected
			}
		}
	}
	if len(selected) > 0 {
		return selected
	}

	// Fallback tiers, evaluated in the original candidate order.
	for _, f := range ordered {
		if HasNumericFinancialData(f.Fragment.Content) && !HasStrongNegative(f.Fragment.Content) {
			return []model.ScoredFragment{f}
		}
	}
	for _, f := range ordered {
		if hasFinancialContext(f.Fragment.Content) && !HasStrongNegative(f.Fragment.Content) {
			return []model.ScoredFragment{f}
		}
	}
	for _, f := range ordered {
		if !HasStrongNegative(f.Fragment.Content) {
			return []model.ScoredFragment{f}
		}
	}
	return []model.ScoredFragment{ordered[0]}
}
