package company

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directoryYAML = `
companies:
  - id: sample
    name: サンプル株式会社
    ticker: "1234"
    routing_key: rk-sample
    aliases: [sample-co, さんぷる]
  - id: other
    name: アザー工業
    ticker: "5678"
    routing_key: rk-other
`

func TestParseAndLookup(t *testing.T) {
	dir, err := Parse([]byte(directoryYAML))
	require.NoError(t, err)
	require.Len(t, dir.All(), 2)

	tests := []struct {
		key  string
		want string
	}{
		{key: "sample", want: "sample"},
		{key: "1234", want: "sample"},
		{key: "サンプル株式会社", want: "sample"},
		{key: "sample-co", want: "sample"},
		{key: "さんぷる", want: "sample"},
		{key: "SAMPLE", want: "sample"},
		{key: "  other  ", want: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := dir.Lookup(tt.key)
			require.NotNil(t, c)
			assert.Equal(t, tt.want, c.ID)
		})
	}

	assert.Nil(t, dir.Lookup("unknown"))
	assert.Nil(t, dir.Lookup(""))
}

func TestParseMissingRoutingKey(t *testing.T) {
	_, err := Parse([]byte("companies:\n  - id: broken\n    name: 壊れた会社\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing_key")
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("companies: [unterminated"))
	assert.Error(t, err)
}

func TestLookupNilDirectory(t *testing.T) {
	var dir *Directory
	assert.Nil(t, dir.Lookup("sample"))
}
