package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single block with a
// 1-hour cache breakpoint. Scoring batches reuse the same system prompt
// across hundreds of calls, so everything after the first call reads the
// prompt from cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{Text: text, CacheControl: &CacheControl{TTL: "1h"}},
	}
}
