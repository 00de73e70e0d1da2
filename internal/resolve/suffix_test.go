package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip(t *testing.T) {
	t.Parallel()

	s := NewSuffixStripper(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"comma LLC", "Alpha Services, LLC", "Alpha Services"},
		{"space Corp", "Beta Corp", "Beta"},
		{"no suffix", "Gamma Industries", "Gamma Industries"},
		{"single word", "Delta", "Delta"},
		{"suffix only", "LLC", "LLC"},
		{"comma with punctuation", "Epsilon, Inc.", "Epsilon"},
		{"dotted suffix", "Theta L.L.C.", "Theta"},
		{"lowercase suffix", "Kappa co", "Kappa"},
		{"company", "Iota Company", "Iota"},
		{"no space after comma", "Mu,LLC", "Mu"},
		{"only one suffix removed", "Zeta Holdings Co, Ltd", "Zeta Holdings Co"},
		{"comma tail not a suffix", "Eta, Partners LLC", "Eta, Partners"},
		{"unknown legal form", "Lambda Incorporated", "Lambda Incorporated"},
		{"trailing comma", "Alpha,", "Alpha,"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.Strip(tt.in))
		})
	}
}

func TestStrip_CommaWinsOverSpace(t *testing.T) {
	s := NewSuffixStripper(nil)
	// Both splits end in a suffix; the comma split keeps "Xi Corp".
	assert.Equal(t, "Xi Corp", s.Strip("Xi Corp, Inc"))
}

func TestStrip_CustomVocabulary(t *testing.T) {
	s := NewSuffixStripper([]string{"gmbh", "A.G."})
	assert.Equal(t, "Omicron", s.Strip("Omicron GmbH"))
	assert.Equal(t, "Pi", s.Strip("Pi, AG"))
	assert.Equal(t, "Omicron LLC", s.Strip("Omicron LLC"))
}

func TestKey(t *testing.T) {
	k := NewKeyer(nil, nil)
	assert.Equal(t, "AlphaBeta", k.Key("The Alpha and Beta Co."))
	assert.Equal(t, "AlphaServices", k.Key("Alpha Services, LLC"))
	assert.Equal(t, "Beta", k.Key("Beta Corp"))
	assert.Equal(t, "GammaIndustries", k.Key("Gamma Industries"))
	assert.Equal(t, "", k.Key("The Co"))
}

func TestKey_MatchesBulkNormalization(t *testing.T) {
	k := NewKeyer(nil, nil)
	// A roster name without a suffix keys exactly like the registry column.
	name := "Bank of the West"
	assert.Equal(t, k.Normalizer.Clean(name), k.Key(name))
}
