package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips highlight markup and entities",
			input: "<b>営業利益</b>&nbsp;100&nbsp;百万円",
			want:  "営業利益 100 百万円",
		},
		{
			name:  "collapses mixed whitespace including ideographic space",
			input: "売上高　  は\t増加\nしました",
			want:  "売上高 は 増加 しました",
		},
		{
			name:  "decodes entities",
			input: "A&amp;B &lt;test&gt; &quot;q&quot;",
			want:  `A&B <test> "q"`,
		},
		{
			name:  "trims",
			input: "  前期比 10.3% 減少  ",
			want:  "前期比 10.3% 減少",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only markup",
			input: "<em></em>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestUsable(t *testing.T) {
	assert.True(t, Usable("営業利益 100 百万円"), "12 runes")
	assert.False(t, Usable("営業利益は増加"), "7 runes")
	assert.False(t, Usable(""))
}
