package rag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/irdesk/ir-assist/internal/model"
)

// Candidate field names, probed in order, first non-empty match wins.
// The index mixes records migrated from several generations of the Q&A
// database, so both English and Japanese key spellings occur.
var (
	questionFieldNames = []string{"question", "質問", "question_text", "questionText", "q"}
	answerFieldNames   = []string{"answer", "回答", "answer_text", "answerText", "a", "response"}
	companyFieldNames  = []string{"company", "会社名", "企業名", "company_name", "companyName"}
	titleFieldNames    = []string{"title", "タイトル", "document_title", "documentTitle", "name"}
	linkFieldNames     = []string{"link", "url", "uri", "source_url", "sourceUrl"}
	contentFieldNames  = []string{"content", "text", "body", "本文", "page_content", "pageContent", "description"}

	extractiveFieldNames = []string{"extractive_answers", "extractiveAnswers", "extractive_segments", "extractiveSegments"}
	snippetFieldNames    = []string{"snippets", "snippet"}
)

// identifierLikeKeyRe matches field names that hold identifiers or URLs
// rather than prose; the last-resort content tier skips them.
var identifierLikeKeyRe = regexp.MustCompile(`(?i)(id$|url$|uri|^link$|^mime|^type$|^category$|token|^path$)`)

// minRawFieldRunes is the last-resort tier threshold: any unnamed string
// field at least this long is taken as content rather than losing the
// hit entirely.
const minRawFieldRunes = 50

// ExtractEvidence normalizes one retrieval hit into typed evidence.
//
// A hit is classified qa when any question-like or answer-like field is
// non-empty; everything else is pdf, including hits matching neither
// shape, so retrieval signal is never silently dropped. A qa hit whose
// answer is unusable after sanitization yields nil (discarded).
//
// The query is needed because the snippet content tier reuses the
// fragment scorer. Malformed nested structures degrade to "not found";
// no access path panics.
func ExtractEvidence(hit model.RetrievalHit, query string, maxSnippets int) *model.EvidenceItem {
	question := probeEither(hit, questionFieldNames)
	answer := probeEither(hit, answerFieldNames)

	if question != "" || answer != "" {
		if !Usable(answer) {
			return nil
		}
		return &model.EvidenceItem{
			HitID:          hit.ID,
			Kind:           model.EvidenceQA,
			RelevanceScore: hit.RelevanceScore,
			QA: &model.QAEvidence{
				Question: question,
				Answer:   answer,
				Company:  probeEither(hit, companyFieldNames),
			},
		}
	}

	content, origin := resolvePDFContent(hit, query, maxSnippets)
	return &model.EvidenceItem{
		HitID:          hit.ID,
		Kind:           model.EvidencePDF,
		RelevanceScore: hit.RelevanceScore,
		Text: &model.TextEvidence{
			Content: content,
			Title:   probeEither(hit, titleFieldNames),
			Link:    probeEither(hit, linkFieldNames),
			Origin:  origin,
		},
	}
}

// resolvePDFContent resolves filing-derived content in strict priority
// order, stopping at the first tier that yields usable text:
// structured text fields, derived text fields, extractive answers,
// scored snippets, then any long unnamed string field.
func resolvePDFContent(hit model.RetrievalHit, query string, maxSnippets int) (string, model.TextOrigin) {
	if s := probeMap(hit.StructuredFields, contentFieldNames); Usable(s) {
		return s, model.OriginRawField
	}
	if s := probeMap(hit.DerivedFields, contentFieldNames); Usable(s) {
		return s, model.OriginRawField
	}

	if answers := textList(hit, extractiveFieldNames, "content"); len(answers) > 0 {
		if s := joinUsable(answers, maxSnippets); Usable(s) {
			return s, model.OriginExtractive
		}
	}

	if snippets := textList(hit, snippetFieldNames, "snippet"); len(snippets) > 0 {
		selected := SelectFragments(query, snippets, maxSnippets)
		parts := make([]string, 0, len(selected))
		for _, f := range selected {
			parts = append(parts, f.Fragment.Content)
		}
		if s := strings.Join(parts, "\n"); Usable(s) {
			return s, model.OriginSnippet
		}
	}

	if s := longestRawField(hit); s != "" {
		return s, model.OriginRawField
	}

	return "", model.OriginRawField
}

// probeEither probes the structured payload first, then the derived one.
func probeEither(hit model.RetrievalHit, keys []string) string {
	if s := probeMap(hit.StructuredFields, keys); s != "" {
		return s
	}
	return probeMap(hit.DerivedFields, keys)
}

// probeMap returns the first non-empty sanitized text among the
// candidate keys, also checking one nesting level under a "fields"
// wrapper.
func probeMap(m map[string]any, keys []string) string {
	for _, layer := range fieldLayers(m) {
		for _, key := range keys {
			if s := Sanitize(asText(layer[key])); s != "" {
				return s
			}
		}
	}
	return ""
}

// fieldLayers returns the map itself plus its "fields" wrapper, if any.
func fieldLayers(m map[string]any) []map[string]any {
	if m == nil {
		return nil
	}
	layers := []map[string]any{m}
	if inner, ok := m["fields"].(map[string]any); ok {
		layers = append(layers, inner)
	}
	return layers
}

// textList collects the raw strings of a list-valued payload, where each
// entry may be a plain string or an object keyed by itemKey.
func textList(hit model.RetrievalHit, keys []string, itemKey string) []string {
	for _, m := range [2]map[string]any{hit.StructuredFields, hit.DerivedFields} {
		for _, layer := range fieldLayers(m) {
			for _, key := range keys {
				list, ok := asList(layer[key])
				if !ok {
					continue
				}
				var out []string
				for _, entry := range list {
					switch v := entry.(type) {
					case string:
						out = append(out, v)
					case map[string]any:
						if s := asText(v[itemKey]); s != "" {
							out = append(out, s)
						} else if s := asText(v); s != "" {
							out = append(out, s)
						}
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
	}
	return nil
}

// longestRawField is the last-resort content tier: the longest sanitized
// string field over the threshold whose name does not look like an
// identifier or URL. Keys are visited in sorted order so the choice is
// deterministic.
func longestRawField(hit model.RetrievalHit) string {
	best := ""
	for _, m := range [2]map[string]any{hit.StructuredFields, hit.DerivedFields} {
		for _, layer := range fieldLayers(m) {
			keys := make([]string, 0, len(layer))
			for k := range layer {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if identifierLikeKeyRe.MatchString(k) {
					continue
				}
				s := Sanitize(asText(layer[k]))
				if len([]rune(s)) >= minRawFieldRunes && len([]rune(s)) > len([]rune(best)) {
					best = s
				}
			}
		}
	}
	return best
}

// joinUsable joins the first max sanitized-usable entries with newlines.
func joinUsable(items []string, max int) string {
	if max <= 0 {
		max = maxSelectedFragments
	}
	var parts []string
	for _, item := range items {
		clean := Sanitize(item)
		if !Usable(clean) {
			continue
		}
		parts = append(parts, clean)
		if len(parts) == max {
			break
		}
	}
	return strings.Join(parts, "\n")
}

// asText converts an arbitrary payload value into plain text. Protobuf
// struct encodings ({"stringValue": ...}) and string arrays are
// unwrapped; anything else is not text.
func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, entry := range t {
			if s := asText(entry); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		for _, key := range []string{"stringValue", "string_value", "text", "content", "snippet"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
		if values, ok := t["values"].([]any); ok {
			return asText(values)
		}
	}
	return ""
}

// asList tolerates a list arriving directly or wrapped in a protobuf
// listValue encoding.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		if values, ok := t["values"].([]any); ok {
			return values, true
		}
		if inner, ok := t["listValue"].(map[string]any); ok {
			if values, ok := inner["values"].([]any); ok {
				return values, true
			}
		}
	}
	return nil, false
}
