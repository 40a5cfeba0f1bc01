package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irdesk/ir-assist/internal/model"
)

func pdfItem(id, content, title string, origin model.TextOrigin) model.EvidenceItem {
	return model.EvidenceItem{
		HitID: id,
		Kind:  model.EvidencePDF,
		Text:  &model.TextEvidence{Content: content, Title: title, Origin: origin},
	}
}

func TestAssembleContextGrouping(t *testing.T) {
	items := []model.EvidenceItem{
		pdfItem("p1", "営業利益は堅調に推移しました。", "決算短信", model.OriginSnippet),
		qaItem("q1", "配当方針を教えてください", "安定配当を基本方針としております。"),
		pdfItem("p2", "売上高は増加しました。", "説明資料", model.OriginExtractive),
	}

	out := AssembleContext(items, AssembleConfig{})
	require.Len(t, out.Blocks, 3)

	// Q&A group precedes filing-derived blocks regardless of input order.
	assert.Equal(t, "[Q&A 1]", out.Blocks[0].Tag)
	assert.Contains(t, out.Blocks[0].Text, "質問: 配当方針を教えてください")
	assert.Contains(t, out.Blocks[0].Text, "回答: 安定配当を基本方針としております。")

	assert.Equal(t, "[PDF 1]", out.Blocks[1].Tag)
	assert.Equal(t, "[Extracted 1]", out.Blocks[2].Tag)
	assert.Positive(t, out.Chars)
}

func TestAssembleContextQACompanyLine(t *testing.T) {
	item := qaItem("q1", "配当方針を教えてください", "安定配当を基本方針としております。")
	item.QA.Company = "サンプル株式会社"

	out := AssembleContext([]model.EvidenceItem{item}, AssembleConfig{})
	require.Len(t, out.Blocks, 1)
	assert.True(t, strings.HasPrefix(out.Blocks[0].Text, "会社: サンプル株式会社\n"))
}

func TestAssembleContextTruncation(t *testing.T) {
	long := strings.Repeat("あ", 900)
	out := AssembleContext(
		[]model.EvidenceItem{pdfItem("p1", long, "", model.OriginSnippet)},
		AssembleConfig{MaxBlockChars: 100},
	)
	require.Len(t, out.Blocks, 1)
	runes := []rune(out.Blocks[0].Text)
	assert.Len(t, runes, 101)
	assert.Equal(t, '…', runes[100])
}

func TestAssembleContextFigureSummaryAppended(t *testing.T) {
	out := AssembleContext(
		[]model.EvidenceItem{pdfItem("p1", "営業利益 350,925 314,807", "決算短信", model.OriginSnippet)},
		AssembleConfig{},
	)
	require.Len(t, out.Blocks, 1)
	assert.Contains(t, out.Blocks[0].Text, "前期比 10.3% 減少")
}

func TestAssembleContextBlockCap(t *testing.T) {
	items := make([]model.EvidenceItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, pdfItem("p", "営業利益は堅調に推移しました。", "", model.OriginSnippet))
	}
	out := AssembleContext(items, AssembleConfig{MaxBlocks: 3})
	assert.Len(t, out.Blocks, 3)
}

func TestAssembleContextUnavailableMarker(t *testing.T) {
	items := []model.EvidenceItem{
		pdfItem("p1", "", "決算短信", model.OriginRawField),
	}
	out := AssembleContext(items, AssembleConfig{})
	require.Len(t, out.Blocks, 1)
	assert.Contains(t, out.Blocks[0].Text, contentUnavailable)
	assert.False(t, HasUsableContent(out))
}

func TestHasUsableContent(t *testing.T) {
	empty := AssembleContext(nil, AssembleConfig{})
	assert.True(t, empty.Empty())
	assert.False(t, HasUsableContent(empty))

	mixed := AssembleContext([]model.EvidenceItem{
		pdfItem("p1", "", "決算短信", model.OriginRawField),
		pdfItem("p2", "営業利益は堅調に推移しました。", "", model.OriginSnippet),
	}, AssembleConfig{})
	assert.False(t, mixed.Empty())
	assert.True(t, HasUsableContent(mixed))
}

func TestRenderContext(t *testing.T) {
	out := AssembleContext([]model.EvidenceItem{
		qaItem("q1", "配当方針を教えてください", "安定配当を基本方針としております。"),
		pdfItem("p1", "営業利益は堅調に推移しました。", "", model.OriginSnippet),
	}, AssembleConfig{})

	rendered := RenderContext(out)
	assert.Contains(t, rendered, "[Q&A 1]\n")
	assert.Contains(t, rendered, "\n\n[PDF 1]\n")
}
