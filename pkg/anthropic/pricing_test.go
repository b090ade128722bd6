package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_EstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{
			name:  "haiku input and output",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			want:  4.80,
		},
		{
			name:  "sonnet cache write billed at 1.25x input",
			model: "claude-sonnet-4-5-20250929",
			usage: TokenUsage{CacheCreationInputTokens: 1_000_000},
			want:  3.75,
		},
		{
			name:  "sonnet cache read billed at 0.1x input",
			model: "claude-sonnet-4-5-20250929",
			usage: TokenUsage{CacheReadInputTokens: 1_000_000},
			want:  0.30,
		},
		{
			name:  "opus all buckets",
			model: "claude-opus-4-6",
			usage: TokenUsage{
				InputTokens:              100_000,
				OutputTokens:             10_000,
				CacheCreationInputTokens: 200_000,
				CacheReadInputTokens:     400_000,
			},
			want: 1.5 + 0.75 + 3.75 + 0.60,
		},
		{
			name:  "unknown model",
			model: "claude-0",
			usage: TokenUsage{InputTokens: 1_000_000},
			want:  0,
		},
		{
			name:  "zero usage",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 1e-9)
		})
	}
}
