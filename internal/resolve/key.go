package resolve

// Keyer builds lookup keys for roster names: suffix first, then normalization.
type Keyer struct {
	Normalizer *Normalizer
	Stripper   *SuffixStripper
}

// NewKeyer creates a Keyer from stopword and suffix vocabularies.
func NewKeyer(stopwords, suffixes []string) *Keyer {
	return &Keyer{
		Normalizer: NewNormalizer(stopwords),
		Stripper:   NewSuffixStripper(suffixes),
	}
}

// Key returns the normalized, suffix-stripped form of a roster name.
func (k *Keyer) Key(name string) string {
	return k.Normalizer.Clean(k.Stripper.Strip(name))
}
