package anthropic

// CachedSystem returns a system prompt marked as a prompt-cache breakpoint.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "5m"},
		},
	}
}
