package entity

import (
	"strings"

	"github.com/steveyegge/strata/internal/types"
)

// ReadOrigin returns the document's **Origin** badge, if any.
func ReadOrigin(text string) (types.Origin, bool) {
	for _, tok := range Lex(text) {
		if tok.Kind == TokenMetadata && strings.EqualFold(tok.Key, KeyOrigin) {
			return types.Origin(strings.ToLower(tok.Value)), true
		}
	}
	return "", false
}

// StampOrigin adds an **Origin** badge after the first heading (or after the
// frontmatter when there is no heading). A document that already carries a
// badge is never modified; the existing origin is returned instead.
func StampOrigin(text string, origin types.Origin) (string, types.Origin, bool) {
	if existing, ok := ReadOrigin(text); ok {
		return text, existing, false
	}
	tokens := Lex(text)
	at := 0
	for i, tok := range tokens {
		if tok.Kind == TokenFrontmatter {
			at = i + 1
			continue
		}
		if tok.Kind.IsHeading() {
			at = i + 1
			break
		}
		if tok.Kind != TokenBlank {
			break
		}
	}
	if len(tokens) == 0 {
		return "**" + KeyOrigin + "**: " + string(origin) + "\n", origin, true
	}
	tokens = insertLine(tokens, at, "**"+KeyOrigin+"**: "+string(origin))
	return Join(tokens), origin, true
}

// Frontmatter returns the YAML between the leading "---" fences, without the
// fences, and the byte offset where the body starts.
func Frontmatter(text string) (string, int, bool) {
	tokens := Lex(text)
	if len(tokens) < 2 || tokens[0].Kind != TokenFrontmatter {
		return "", 0, false
	}
	var b strings.Builder
	for i := 1; i < len(tokens) && tokens[i].Kind == TokenFrontmatter; i++ {
		tok := tokens[i]
		if strings.TrimRight(tok.Raw, " \t") == "---" {
			return b.String(), tok.Offset + len(tok.Raw) + len(tok.Newline), true
		}
		b.WriteString(tok.Raw)
		b.WriteString("\n")
	}
	return "", 0, false
}
