package provider

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "o200k_base"

// TruncateTokens caps a context string at maxTokens. Disambiguation
// context is advisory, so a string that cannot be encoded is passed
// through unchanged rather than failing the request.
func TruncateTokens(s string, maxTokens int) string {
	if s == "" || maxTokens <= 0 {
		return ""
	}
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return s
	}
	tokens := enc.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return enc.Decode(tokens[:maxTokens])
}

// JoinContextTitles renders neighbor titles as a single budgeted hint.
func JoinContextTitles(titles []string, maxTokens int) string {
	if len(titles) == 0 {
		return ""
	}
	return TruncateTokens(strings.Join(titles, ", "), maxTokens)
}
