package rag

import (
	"fmt"
	"strings"

	"github.com/irdesk/ir-assist/internal/model"
)

// promptPreamble is the fixed instruction block. It mandates preferring
// stored Q&A evidence over inferred filing content, citing concrete
// figures whenever present, suppressing disclosure-omitted boilerplate,
// naming evidence origin, and refusing to speculate.
const promptPreamble = `あなたは上場企業のIR担当アシスタントです。以下の参考情報のみに基づいて、投資家からの質問に日本語で回答してください。

回答にあたっての指示:
1. [Q&A] の情報を最優先してください。PDFからの推測より登録済みの回答が優先です。
2. 参考情報に具体的な数値（金額・前年比較・増減率）がある場合は、必ず回答に含めてください。
3. 「記載を省略」「該当なし」等の定型文をそのまま回答に使わないでください。
4. どの参考情報（Q&A / Extracted / PDF）に基づく回答か明示してください。
5. 参考情報にない内容を推測で補わないでください。情報がない場合はその旨を述べてください。`

// BuildPrompt renders the generation prompt: instruction preamble,
// assembled context, the trailing conversation turns (oldest first),
// and the current query. Pure template rendering, no scoring.
func BuildPrompt(contextText string, history []model.ConversationMessage, query string, historyTurns int) string {
	var b strings.Builder

	b.WriteString(promptPreamble)
	b.WriteString("\n\n## 参考情報\n")
	if contextText == "" {
		b.WriteString("（参考情報なし）\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}

	recent := model.LastTurns(history, historyTurns)
	if len(recent) > 0 {
		b.WriteString("\n## これまでの会話\n")
		for _, msg := range recent {
			label := "投資家"
			if msg.Role == model.RoleAssistant {
				label = "アシスタント"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, msg.Content)
		}
	}

	b.WriteString("\n## 質問\n")
	b.WriteString(query)
	b.WriteString("\n\n回答:")

	return b.String()
}
