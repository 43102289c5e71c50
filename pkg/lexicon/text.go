package lexicon

import (
	"regexp"
	"strings"
)

var (
	reWordToken = regexp.MustCompile(`\b\w+\b`)
	// [term] marks an internal link in slang feed text.
	reBracketLink = regexp.MustCompile(`\[([^\]]+)\]`)
	reLineBreaks  = regexp.MustCompile(`\s*[\r\n]+\s*`)
	reSpaces      = regexp.MustCompile(`[ \t]{2,}`)

	stopWords = map[string]bool{
		"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
		"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
		"for": true, "with": true, "from": true, "as": true, "is": true, "was": true,
	}
)

// NormalizeWord returns the canonical lemma form used as a Word's identity.
func NormalizeWord(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsMultiWord reports whether s contains more than one token.
func IsMultiWord(s string) bool {
	return len(strings.Fields(s)) > 1
}

// ComponentWords extracts the content words of a phrase in order of first
// appearance. Stop words and tokens of two characters or fewer are dropped.
func ComponentWords(phrase string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range reWordToken.FindAllString(strings.ToLower(phrase), -1) {
		if len(tok) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// CleanDefinition strips link brackets and line breaks from feed text.
func CleanDefinition(s string) string {
	s = reBracketLink.ReplaceAllString(s, "$1")
	s = reLineBreaks.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
