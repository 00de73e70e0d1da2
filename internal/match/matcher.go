package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/model"
	"github.com/sells-group/corpmatch/internal/resolve"
	"github.com/sells-group/corpmatch/internal/store"
)

// Lookup finds the registry row for a normalized prefix.
type Lookup interface {
	FirstByPrefix(ctx context.Context, prefix string, tb store.TieBreak) (model.Record, error)
}

// Stats counts match outcomes for a roster.
type Stats struct {
	Total        int `json:"total"`
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	EmptyKeys    int `json:"empty_keys"`
	MissingNames int `json:"missing_names"`
}

// Rate returns the share of roster rows that matched.
func (s Stats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// Matcher resolves roster names to registry rows.
type Matcher struct {
	lookup   Lookup
	keyer    *resolve.Keyer
	tieBreak store.TieBreak
	width    int
}

// NewMatcher creates a Matcher. Width is the registry column count, used to
// shape the all-null record returned for misses.
func NewMatcher(lookup Lookup, keyer *resolve.Keyer, tb store.TieBreak, width int) *Matcher {
	return &Matcher{lookup: lookup, keyer: keyer, tieBreak: tb, width: width}
}

// MatchOne looks up a single roster name. A key that normalizes to the
// empty string never matches.
func (m *Matcher) MatchOne(ctx context.Context, name string) (model.MatchResult, error) {
	key := m.keyer.Key(name)
	res := model.MatchResult{Key: key, Record: model.NullRecord(m.width)}
	if key == "" {
		return res, nil
	}

	rec, err := m.lookup.FirstByPrefix(ctx, key, m.tieBreak)
	if err != nil {
		return res, eris.Wrapf(err, "match: lookup %q", name)
	}
	if rec == nil {
		return res, nil
	}
	if len(rec) != m.width {
		return res, eris.Errorf("match: lookup %q returned %d columns, want %d", name, len(rec), m.width)
	}
	res.Matched = true
	res.Record = rec
	return res, nil
}

// Match resolves every name in order. NULL names produce a miss.
func (m *Matcher) Match(ctx context.Context, names []*string) ([]model.MatchResult, Stats, error) {
	log := zap.L()
	results := make([]model.MatchResult, 0, len(names))
	stats := Stats{Total: len(names)}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, stats, eris.Wrap(err, "match: cancelled")
		}

		if name == nil {
			stats.MissingNames++
			stats.Unmatched++
			log.Warn("roster row has no name", zap.Int("row", i+1))
			results = append(results, model.MatchResult{Record: model.NullRecord(m.width)})
			continue
		}

		res, err := m.MatchOne(ctx, *name)
		if err != nil {
			return nil, stats, err
		}
		switch {
		case res.Matched:
			stats.Matched++
		case res.Key == "":
			stats.EmptyKeys++
			stats.Unmatched++
			log.Debug("name normalizes to empty key", zap.String("name", *name))
		default:
			stats.Unmatched++
		}
		results = append(results, res)
	}

	if stats.EmptyKeys > 0 {
		log.Info("roster names with an empty key were not looked up", zap.Int("count", stats.EmptyKeys))
	}
	log.Info("match complete",
		zap.Int("total", stats.Total),
		zap.Int("matched", stats.Matched),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("empty_keys", stats.EmptyKeys),
		zap.Int("missing_names", stats.MissingNames),
		zap.Float64("match_rate", stats.Rate()),
	)
	return results, stats, nil
}
