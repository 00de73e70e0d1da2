package resolve

import (
	"strings"
)

// DefaultSuffixes lists the legal-form tokens stripped from roster names.
var DefaultSuffixes = []string{
	"LLC", "CORP",
	"INC", "CORPORATION",
	"PLLC", "PC",
	"LLP", "CO", "COMPANY", "LTD",
}

// SuffixStripper removes a trailing legal-form token ("LLC", "Inc.") from a name.
type SuffixStripper struct {
	vocab map[string]struct{}
}

// NewSuffixStripper creates a SuffixStripper for the given vocabulary. Entries
// are compared after punctuation removal and uppercasing. A nil or empty list
// falls back to DefaultSuffixes.
func NewSuffixStripper(suffixes []string) *SuffixStripper {
	vocab := suffixSet(suffixes)
	if len(vocab) == 0 {
		vocab = suffixSet(DefaultSuffixes)
	}
	return &SuffixStripper{vocab: vocab}
}

func suffixSet(suffixes []string) map[string]struct{} {
	vocab := make(map[string]struct{}, len(suffixes))
	for _, s := range suffixes {
		if tok := suffixToken(s); tok != "" {
			vocab[tok] = struct{}{}
		}
	}
	return vocab
}

// Strip returns name without its trailing legal-form token. The text after
// the last comma is tried first, then the text after the last space; the
// name comes back unchanged when neither is a known suffix.
func (s *SuffixStripper) Strip(name string) string {
	if head, ok := s.splitOn(name, ","); ok {
		return head
	}
	if head, ok := s.splitOn(name, " "); ok {
		return head
	}
	return name
}

// splitOn splits name at the last sep and reports whether the tail is a suffix.
func (s *SuffixStripper) splitOn(name, sep string) (string, bool) {
	i := strings.LastIndex(name, sep)
	if i < 0 {
		return "", false
	}
	_, ok := s.vocab[suffixToken(name[i+len(sep):])]
	return name[:i], ok
}

// suffixToken canonicalizes a candidate suffix: punctuation removed, uppercased.
func suffixToken(s string) string {
	return strings.ToUpper(stripPunctuation(s))
}
