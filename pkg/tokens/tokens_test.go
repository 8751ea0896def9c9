package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens_Total(t *testing.T) {
	tok := Tokens{Prompt: 10, Completion: 5}
	assert.Equal(t, 15, tok.Total())
}

func TestTokens_IsZero(t *testing.T) {
	assert.True(t, Tokens{}.IsZero())
	assert.False(t, Tokens{Prompt: 1}.IsZero())
}

func TestAccumulator_DedupesRepeatedPrompt(t *testing.T) {
	var acc Accumulator
	acc.Observe(Tokens{Prompt: 100, Completion: 3})
	acc.Observe(Tokens{Prompt: 100, Completion: 4})
	acc.Observe(Tokens{Prompt: 100, Completion: 2})

	got := acc.Total()
	assert.Equal(t, 100, got.Prompt)
	assert.Equal(t, 9, got.Completion)
}

func TestAccumulator_ZeroPromptSkipped(t *testing.T) {
	var acc Accumulator
	acc.Observe(Tokens{Prompt: 0, Completion: 1})
	acc.Observe(Tokens{Prompt: 50, Completion: 1})

	got := acc.Total()
	assert.Equal(t, 50, got.Prompt)
	assert.Equal(t, 2, got.Completion)
}
