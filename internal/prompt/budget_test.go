package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"pricecorpus/pkg/contract"
)

// UT-PRM-01: 默认预算
func TestDefaultBudget(t *testing.T) {
	b := DefaultBudget()
	assert.NoError(t, b.Validate())
	assert.Equal(t, 1120, b.CharCeiling())
}

// UT-PRM-02: 非法预算
func TestBudgetValidate(t *testing.T) {
	cases := map[string]Budget{
		"min_chars<0":        {MinChars: -1, MinTokens: 1, MaxTokens: 2, CharsPerToken: 1},
		"min_tokens<0":       {MinChars: 0, MinTokens: -1, MaxTokens: 2, CharsPerToken: 1},
		"max<=min":           {MinChars: 0, MinTokens: 5, MaxTokens: 5, CharsPerToken: 1},
		"chars_per_token<=0": {MinChars: 0, MinTokens: 1, MaxTokens: 2, CharsPerToken: 0},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(b.Validate(), contract.ErrInvalidInput))
		})
	}
}
