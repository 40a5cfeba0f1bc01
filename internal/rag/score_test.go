package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreFragment(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		fragment string
		positive bool
	}{
		{
			name:     "financial term with currency amount",
			query:    "営業利益について",
			fragment: "当期の営業利益は350,925百万円となりました",
			positive: true,
		},
		{
			name:     "yoy comparison with percentage",
			query:    "業績",
			fragment: "売上高は前期比12.5%増加し、過去最高を更新しました",
			positive: true,
		},
		{
			name:     "disclosure-omitted boilerplate",
			query:    "営業利益",
			fragment: "該当事項はありません。",
			positive: false,
		},
		{
			name:     "omission boilerplate outweighs terms",
			query:    "配当",
			fragment: "配当に関する記載を省略しております。",
			positive: false,
		},
		{
			name:     "unrelated short text",
			query:    "営業利益",
			fragment: "本日は晴天なり",
			positive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreFragment(tt.query, tt.fragment)
			if tt.positive {
				assert.Positive(t, score)
			} else {
				assert.LessOrEqual(t, score, 0)
			}
		})
	}
}

func TestScoreFragmentKeywordOverlap(t *testing.T) {
	// The same fragment scores higher when the query keywords occur in it.
	frag := "2025年3月期のdividendの方針は安定配当です。"
	with := ScoreFragment("dividend 方針", frag)
	without := ScoreFragment("roadmap", frag)
	assert.Greater(t, with, without)
}

func TestScoreFragmentFullWidthDigits(t *testing.T) {
	// Full-width figures score the same as half-width after folding.
	half := ScoreFragment("売上高", "売上高は1,000百万円でした。前期は900百万円でした。")
	full := ScoreFragment("売上高", "売上高は１,０００百万円でした。前期は９００百万円でした。")
	assert.Equal(t, half, full)
}

func TestHasNumericFinancialData(t *testing.T) {
	assert.True(t, HasNumericFinancialData("営業利益は350,925百万円"))
	assert.True(t, HasNumericFinancialData("前期比10.3%の減少"))
	assert.True(t, HasNumericFinancialData("売上高 314,807"))
	assert.False(t, HasNumericFinancialData("該当なし"))
	assert.False(t, HasNumericFinancialData("営業利益は増加しました"))
}

func TestHasStrongNegative(t *testing.T) {
	assert.True(t, HasStrongNegative("記載を省略しております"))
	assert.True(t, HasStrongNegative("該当事項はありません"))
	assert.True(t, HasStrongNegative("This item is Not Applicable."))
	assert.False(t, HasStrongNegative("営業利益は350,925百万円"))
}

func TestSelectFragmentsOrdering(t *testing.T) {
	candidates := []string{
		"当社の概要については以下の通りをご参照ください。",
		"営業利益は前期比10.3%減少し314,807百万円となりました。",
		"売上高は前期比2.1%増加し1,234,567百万円となりました。",
	}

	selected := SelectFragments("営業利益の状況", candidates, 5)
	require.NotEmpty(t, selected)

	// Scores must be non-increasing.
	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t, selected[i-1].Score, selected[i].Score)
	}
	// The keyword-matching fragment outranks the rest.
	assert.Contains(t, selected[0].Fragment.Content, "営業利益")
}

func TestSelectFragmentsSuppressesBoilerplate(t *testing.T) {
	candidates := []string{
		"該当事項はありません。記載を省略しております。",
		"営業利益は前期比10.3%減少し314,807百万円となりました。",
	}

	selected := SelectFragments("営業利益", candidates, 5)
	require.Len(t, selected, 1)
	assert.Contains(t, selected[0].Fragment.Content, "314,807")
}

func TestSelectFragmentsExcludesPositiveScoringBoilerplate(t *testing.T) {
	// Keyword repetition can push a boilerplate fragment's additive score
	// positive (+10 per hit vs -80 for the phrase). Without numeric or
	// financial-term rescue content it must still be excluded from the
	// top-K selection.
	boilerplate := "成長戦略、成長戦略、成長戦略、成長戦略、成長戦略、成長戦略、成長戦略、成長戦略、成長戦略、成長戦略については該当事項はありません。"
	require.Positive(t, ScoreFragment("成長戦略", boilerplate))
	require.True(t, HasStrongNegative(boilerplate))
	require.False(t, HasNumericFinancialData(boilerplate))
	require.False(t, HasFinancialTerm(boilerplate))

	candidates := []string{
		boilerplate,
		"成長戦略の詳細は決算説明資料に記載のとおり、売上高1,000百万円を目指します。",
	}
	selected := SelectFragments("成長戦略", candidates, 5)
	require.Len(t, selected, 1)
	assert.Contains(t, selected[0].Fragment.Content, "1,000百万円")

	// Rescue content still admits a fragment despite the boilerplate.
	rescued := SelectFragments("成長戦略", []string{
		"営業利益は1,000百万円でした。その他は該当事項はありません。",
	}, 5)
	require.Len(t, rescued, 1)
	assert.Contains(t, rescued[0].Fragment.Content, "営業利益")
}

func TestSelectFragmentsFallbackTiers(t *testing.T) {
	t.Run("plain text over boilerplate when nothing scores", func(t *testing.T) {
		candidates := []string{
			"該当事項はありません。記載を省略しております。",
			"本日の天気は晴れです。詳細は以下をご覧ください。",
		}
		selected := SelectFragments("営業利益", candidates, 5)
		require.Len(t, selected, 1)
		assert.Contains(t, selected[0].Fragment.Content, "天気")
	})

	t.Run("boilerplate only still yields one fragment", func(t *testing.T) {
		candidates := []string{
			"該当事項はありません。記載を省略しております。",
			"開示しておりませんのでご了承ください。",
		}
		selected := SelectFragments("営業利益", candidates, 5)
		require.Len(t, selected, 1)
		assert.Equal(t, Sanitize(candidates[0]), selected[0].Fragment.Content)
	})

	t.Run("no usable candidates yields nothing", func(t *testing.T) {
		assert.Empty(t, SelectFragments("営業利益", []string{"短い", ""}, 5))
		assert.Empty(t, SelectFragments("営業利益", nil, 5))
	})
}

func TestSelectFragmentsCap(t *testing.T) {
	candidates := []string{
		"売上高は1,000百万円でした。前期から増加しています。",
		"営業利益は500百万円でした。前期から増加しています。",
		"経常利益は450百万円でした。前期から増加しています。",
	}
	selected := SelectFragments("業績", candidates, 2)
	assert.Len(t, selected, 2)
}
