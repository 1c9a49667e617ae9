package agents

import (
	"regexp"
	"strings"
)

// Structured output makes the improver emit only the improved idea, but
// non-structured local models occasionally wrap it in meta-commentary
// ("Here's the improved version: ..."). This legacy cleaner strips the
// common prefixes and nothing more.
var metaPrefixRe = regexp.MustCompile(`(?i)^(here(?:'s| is) (?:the |an |my )?(?:improved|revised|updated|enhanced) (?:idea|version)[:.]?\s*|improved idea[:.]?\s*|sure[,!.]?\s*)`)

// SanitizeImprovedIdea removes leading meta-commentary and surrounding
// whitespace from an improved idea.
func SanitizeImprovedIdea(text string) string {
	text = strings.TrimSpace(text)
	for {
		cleaned := metaPrefixRe.ReplaceAllString(text, "")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned == text || cleaned == "" {
			break
		}
		text = cleaned
	}
	return text
}
