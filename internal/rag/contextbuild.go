package rag

import (
	"fmt"
	"strings"

	"github.com/irdesk/ir-assist/internal/model"
)

// contentUnavailable marks a PDF hit that yielded no usable content
// after every extraction tier. The block is still emitted so the
// caller's source accounting stays complete.
const contentUnavailable = "（内容を取得できませんでした）"

// AssembleConfig bounds the assembled context so the downstream prompt
// stays within the generation input budget.
type AssembleConfig struct {
	MaxBlockChars int // per-PDF-block rune cap, ellipsized beyond
	MaxBlocks     int // total block cap
}

// AssembleContext merges classified evidence into one ordered context:
// the Q&A group first, then the filing-derived group, each block tagged
// by evidence type. Input order is preserved within each group; groups
// are never interleaved.
func AssembleContext(items []model.EvidenceItem, cfg AssembleConfig) model.AssembledContext {
	if cfg.MaxBlockChars <= 0 {
		cfg.MaxBlockChars = 800
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = 8
	}

	var out model.AssembledContext
	qaN, extractedN, pdfN := 0, 0, 0

	appendBlock := func(tag, text string) bool {
		if len(out.Blocks) >= cfg.MaxBlocks {
			return false
		}
		out.Blocks = append(out.Blocks, model.ContextBlock{Tag: tag, Text: text})
		out.Chars += len([]rune(tag)) + len([]rune(text))
		return true
	}

	for _, item := range items {
		if item.Kind != model.EvidenceQA || item.QA == nil {
			continue
		}
		qaN++
		var b strings.Builder
		if item.QA.Company != "" {
			fmt.Fprintf(&b, "会社: %s\n", item.QA.Company)
		}
		fmt.Fprintf(&b, "質問: %s\n回答: %s", item.QA.Question, item.QA.Answer)
		if !appendBlock(fmt.Sprintf("[Q&A %d]", qaN), b.String()) {
			return out
		}
	}

	for _, item := range items {
		if item.Kind != model.EvidencePDF || item.Text == nil {
			continue
		}

		var b strings.Builder
		if item.Text.Title != "" {
			b.WriteString(item.Text.Title)
			if item.Text.Link != "" {
				fmt.Fprintf(&b, "（%s）", item.Text.Link)
			}
			b.WriteString("\n")
		}

		content := item.Text.Content
		if content == "" {
			content = contentUnavailable
		} else {
			content = truncateRunes(content, cfg.MaxBlockChars)
			if fc := ExtractFigureComparison(content); fc != nil {
				content += "\n" + fc.Summary()
			}
		}
		b.WriteString(content)

		var tag string
		if item.Text.Origin == model.OriginExtractive {
			extractedN++
			tag = fmt.Sprintf("[Extracted %d]", extractedN)
		} else {
			pdfN++
			tag = fmt.Sprintf("[PDF %d]", pdfN)
		}
		if !appendBlock(tag, b.String()) {
			return out
		}
	}

	return out
}

// RenderContext concatenates the blocks with blank-line separation.
func RenderContext(ctx model.AssembledContext) string {
	parts := make([]string, 0, len(ctx.Blocks))
	for _, block := range ctx.Blocks {
		parts = append(parts, block.Tag+"\n"+block.Text)
	}
	return strings.Join(parts, "\n\n")
}

// HasUsableContent reports whether any block carries real evidence text
// rather than only unavailable markers.
func HasUsableContent(ctx model.AssembledContext) bool {
	for _, block := range ctx.Blocks {
		if block.Text != contentUnavailable && !strings.HasSuffix(block.Text, contentUnavailable) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
