// Package resolve builds the normalized entity-name keys used to join a
// roster against the corporation registry.
package resolve

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Punctuation lists every rune removed from names and suffix tokens.
const Punctuation = ".?!'-+&/, "

// leadingArticle is stripped once from the start of a name. The match is
// case-sensitive: "the Acme" keeps its article until the stopword pass.
const leadingArticle = "The "

// DefaultStopwords are the whole-word tokens removed from every name.
var DefaultStopwords = []string{"and", "or", "the", "of"}

// Normalizer turns an entity name into its join key. The same value must be
// used to materialize the registry column and to build query keys.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer creates a Normalizer removing the given stopwords. A nil or
// empty list falls back to DefaultStopwords.
func NewNormalizer(stopwords []string) *Normalizer {
	set := wordSet(stopwords)
	if len(set) == 0 {
		set = wordSet(DefaultStopwords)
	}
	return &Normalizer{stopwords: set}
}

// Clean normalizes an entity name:
//  1. Strip one leading "The " (case-sensitive)
//  2. Remove stopwords as whole words, case-insensitively
//  3. Remove every rune in Punctuation
//
// Steps 2 and 3 repeat until the name stops changing, since dropping a
// separator can glue letters into a new stopword ("(an d)" -> "(and)").
// Word boundaries are Unicode-aware: a word is a run of letters, numbers
// and underscores, so "Caféor" is one word. Letter case is preserved.
func (n *Normalizer) Clean(name string) string {
	name = strings.TrimPrefix(name, leadingArticle)
	for {
		next := stripPunctuation(n.removeStopwords(name))
		if next == name {
			return name
		}
		name = next
	}
}

// removeStopwords drops every maximal word run equal to a stopword.
func (n *Normalizer) removeStopwords(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	word := -1
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isWordRune(r) {
			if word < 0 {
				word = i
			}
		} else {
			if word >= 0 {
				n.writeWord(&sb, s[word:i])
				word = -1
			}
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	if word >= 0 {
		n.writeWord(&sb, s[word:])
	}
	return sb.String()
}

func (n *Normalizer) writeWord(sb *strings.Builder, w string) {
	if _, stop := n.stopwords[strings.ToLower(w)]; !stop {
		sb.WriteString(w)
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// wordSet lower-cases and trims the configured stopwords. Entries are single
// words; one containing a separator can never equal a word run.
func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// stripPunctuation drops every rune of Punctuation from s.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(Punctuation, r) {
			return -1
		}
		return r
	}, s)
}
