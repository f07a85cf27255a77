package prompts

import (
	"strings"
	"unicode"
)

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		tagEnd := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
		if tagEnd > 0 && strings.ContainsRune(" \t\r\n{[", rune(rest[tagEnd])) {
			rest = rest[tagEnd:]
		}
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
