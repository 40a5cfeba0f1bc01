package rag

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/irdesk/ir-assist/internal/model"
	"github.com/irdesk/ir-assist/pkg/anthropic"
)

// Confidence heuristic parameters. The baseline is a coin-flip prior;
// numeric evidence in the output is the strongest upgrade because
// financial answers are expected to cite figures.
const (
	confidenceBaseline      = 0.5
	confidenceNumericBonus  = 0.2
	confidenceCompareBonus  = 0.1
	confidenceQABonus       = 0.1
	confidenceFragmentBonus = 0.05
	confidenceCeiling       = 0.95

	// fallbackConfidence is fixed for verbatim stored answers surfaced
	// when generation is unavailable.
	fallbackConfidence = 0.8
	// weakEvidenceCeiling caps answers built only from fallback-tier
	// evidence; the 0.9+ range is reserved for clean generative or
	// extractive success.
	weakEvidenceCeiling = 0.8
)

const (
	fallbackLeadIn = "回答の自動生成ができなかったため、関連する登録済みの回答をそのまま表示します。\n\n"
	apologyMessage = "申し訳ございません。ご質問にお答えするための情報を見つけることができませんでした。"
)

// comparisonLanguageRe detects period-comparison wording in an answer.
var comparisonLanguageRe = regexp.MustCompile(`前年同期比|前期比|前年比|増加|減少|増収|増益|減収|減益|改善|悪化`)

// EvidenceStats summarizes the quality of the evidence that went into
// the prompt, for the confidence heuristic.
type EvidenceStats struct {
	QACount           int
	PositiveFragments int
	NumericEvidence   bool
	// WeakFallback is set when the context only exists because of the
	// snippet filter's fallback tiers.
	WeakFallback bool
}

// SynthesisResult is the outcome of one synthesis attempt.
type SynthesisResult struct {
	Text       string
	Confidence float64
	// Degraded is true when the generative service failed and a
	// fallback tier produced the text.
	Degraded bool
}

// Synthesizer turns a built prompt into a final answer, absorbing
// generation failures into fallback tiers. Synthesis never returns an
// error to the caller; failure is reported, not fatal.
type Synthesizer struct {
	gen         anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(gen anthropic.Client, model string, maxTokens int64, temperature float64) *Synthesizer {
	return &Synthesizer{
		gen:         gen,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Synthesize runs the generation call and falls back gracefully:
// generated text with heuristic confidence; else the best stored raw
// answer at fixed confidence; else a fixed apology at confidence zero.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, items []model.EvidenceItem, stats EvidenceStats) SynthesisResult {
	text, err := s.generate(ctx, prompt)
	if err == nil {
		return SynthesisResult{Text: text, Confidence: s.confidence(text, stats)}
	}
	zap.L().Warn("rag: generation unavailable, falling back",
		zap.String("model", s.model),
		zap.Error(err),
	)

	if answer := bestRawAnswer(items); answer != "" {
		return SynthesisResult{
			Text:       fallbackLeadIn + answer,
			Confidence: fallbackConfidence,
			Degraded:   true,
		}
	}

	return SynthesisResult{Text: apologyMessage, Confidence: 0, Degraded: true}
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.gen == nil {
		return "", eris.New("rag: no generation client configured")
	}

	temp := s.temperature
	resp, err := s.gen.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Messages:    []anthropic.Message{{Role: model.RoleUser, Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("rag: empty generation output")
	}
	resp.Usage.LogUsage(s.model)
	return text, nil
}

// confidence derives a heuristic confidence from the answer content and
// the evidence that produced it.
func (s *Synthesizer) confidence(text string, stats EvidenceStats) float64 {
	conf := confidenceBaseline
	folded := foldWidth(text)

	if currencyAmountRe.MatchString(folded) || percentRe.MatchString(folded) {
		conf += confidenceNumericBonus
	}
	if comparisonLanguageRe.MatchString(folded) {
		conf += confidenceCompareBonus
	}
	if stats.QACount > 0 {
		conf += confidenceQABonus
	}
	if stats.PositiveFragments >= 2 || stats.NumericEvidence {
		conf += confidenceFragmentBonus
	}

	if stats.WeakFallback && conf > weakEvidenceCeiling {
		conf = weakEvidenceCeiling
	}
	if conf > confidenceCeiling {
		conf = confidenceCeiling
	}
	return conf
}

// bestRawAnswer returns the first stored Q&A answer long enough to stand
// alone, in retrieval order.
func bestRawAnswer(items []model.EvidenceItem) string {
	for _, item := range items {
		if item.Kind == model.EvidenceQA && item.QA != nil && Usable(item.QA.Answer) {
			return item.QA.Answer
		}
	}
	return ""
}
