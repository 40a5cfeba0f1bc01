package rag

import (
	"strings"

	"github.com/irdesk/ir-assist/internal/model"
)

// terminalPunctReplacer strips Japanese and ASCII sentence-terminal
// punctuation before comparison.
var terminalPunctReplacer = strings.NewReplacer(
	"。", "", "？", "", "！", "", "．", "", "、", "",
	"?", "", "!", "", ".", "", ",", "",
)

// DirectMatch is a stored Q&A record judged equivalent to the query.
type DirectMatch struct {
	Item       model.EvidenceItem
	Similarity float64
	Exact      bool
}

// Confidence is 1.0 for an exact match, the similarity otherwise.
func (m DirectMatch) Confidence() float64 {
	if m.Exact {
		return 1.0
	}
	return m.Similarity
}

// DetectDirectHit compares the query against every retrieved Q&A
// question and returns the first record meeting the similarity
// threshold, in retrieval order — stored answers are authoritative, so
// no re-ranking across candidates. Returns nil when nothing qualifies.
//
// The detector is stateless: identical inputs always yield identical
// output.
func DetectDirectHit(query string, items []model.EvidenceItem, threshold float64) *DirectMatch {
	normQuery := normalizeQuestion(query)
	if normQuery == "" {
		return nil
	}
	queryTokens := strings.Fields(normQuery)

	for _, item := range items {
		if item.Kind != model.EvidenceQA || item.QA == nil {
			continue
		}
		normStored := normalizeQuestion(item.QA.Question)
		if normStored == "" {
			continue
		}

		if normStored == normQuery {
			return &DirectMatch{Item: item, Similarity: 1.0, Exact: true}
		}

		sim := tokenOverlap(strings.Fields(normStored), queryTokens)
		if sim >= threshold {
			return &DirectMatch{Item: item, Similarity: sim}
		}
	}
	return nil
}

// normalizeQuestion lowercases, folds width, strips terminal
// punctuation, and collapses whitespace.
func normalizeQuestion(s string) string {
	s = strings.ToLower(foldWidth(s))
	s = terminalPunctReplacer.Replace(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// tokenOverlap counts tokens where either side contains the other as a
// substring, normalized by the larger token count. Substring containment
// matters for Japanese, where inflection makes exact token equality too
// strict.
func tokenOverlap(stored, query []string) float64 {
	if len(stored) == 0 || len(query) == 0 {
		return 0
	}

	matched := 0
	for _, qt := range query {
		for _, st := range stored {
			if strings.Contains(st, qt) || strings.Contains(qt, st) {
				matched++
				break
			}
		}
	}

	denom := len(stored)
	if len(query) > denom {
		denom = len(query)
	}
	return float64(matched) / float64(denom)
}
