package match

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/corpmatch/internal/model"
)

// JoinOptions shapes the joined output.
type JoinOptions struct {
	Drop  []string // columns removed from the output, every occurrence
	Front string   // first column with this name is moved to position 0
}

// Join concatenates each roster row with its match record, position by
// position. Columns are the registry column names the records follow.
func Join(roster *model.Table, columns []string, results []model.MatchResult, opts JoinOptions) (*model.Table, error) {
	if len(roster.Rows) != len(results) {
		return nil, eris.Errorf("join: %d roster rows but %d results", len(roster.Rows), len(results))
	}

	header := slices.Concat(roster.Header, columns)
	keep := make([]int, 0, len(header))
	for i, h := range header {
		if !slices.Contains(opts.Drop, h) {
			keep = append(keep, i)
		}
	}

	if opts.Front != "" {
		pos := slices.IndexFunc(keep, func(i int) bool { return header[i] == opts.Front })
		if pos < 0 {
			return nil, eris.Errorf("join: front column %q not in output", opts.Front)
		}
		front := keep[pos]
		keep = slices.Insert(slices.Delete(keep, pos, pos+1), 0, front)
	}

	out := &model.Table{
		Header: make([]string, len(keep)),
		Rows:   make([]model.Record, len(results)),
	}
	for j, i := range keep {
		out.Header[j] = header[i]
	}

	for r, res := range results {
		rec := res.Record
		if rec == nil {
			rec = model.NullRecord(len(columns))
		}
		if len(rec) != len(columns) {
			return nil, eris.Errorf("join: result %d has %d values for %d columns", r, len(rec), len(columns))
		}
		if len(roster.Rows[r]) != len(roster.Header) {
			return nil, eris.Errorf("join: roster row %d has %d values for %d columns", r, len(roster.Rows[r]), len(roster.Header))
		}

		full := slices.Concat(roster.Rows[r], rec)
		row := make(model.Record, len(keep))
		for j, i := range keep {
			row[j] = full[i]
		}
		out.Rows[r] = row
	}
	return out, nil
}
