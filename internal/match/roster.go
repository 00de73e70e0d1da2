// Package match looks roster names up in the indexed registry table and
// joins each roster row with the registry row it matched.
package match

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/fetcher"
	"github.com/sells-group/corpmatch/internal/model"
)

// RosterOptions configures roster reading.
type RosterOptions struct {
	Sheet string // XLSX sheet name; empty means the first sheet
	CSV   fetcher.CSVOptions
}

// ReadRoster reads a roster from a local .xlsx or delimited file. The first
// row is the header. Blank cells become NULL and fully blank rows are dropped.
func ReadRoster(path string, opts RosterOptions) (*model.Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = fetcher.ReadXLSX(path, opts.Sheet)
	default:
		rows, err = readCSV(path, opts.CSV)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "roster: read %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("roster: %s has no header row", path)
	}

	t := &model.Table{Header: rows[0]}
	width := len(t.Header)
	for i, raw := range rows[1:] {
		rec := model.NullRecord(width)
		for j, v := range raw {
			if v == "" {
				continue
			}
			if j >= width {
				zap.L().Warn("roster: dropping cell beyond header",
					zap.Int("row", i+2), zap.Int("column", j+1))
				continue
			}
			rec[j] = model.Str(v)
		}
		if rec.IsNull() {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func readCSV(path string, opts fetcher.CSVOptions) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	r, err := fetcher.NewCSVReader(f, opts)
	if err != nil {
		return nil, err
	}
	header, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	rows := [][]string{header}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			if fetcher.IsRowError(err) {
				zap.L().Warn("roster: skipping malformed row", zap.Int("line", r.Line()), zap.Error(err))
				continue
			}
			return nil, eris.Wrapf(err, "line %d", r.Line())
		}
		rows = append(rows, rec)
	}
}

// Names returns the roster's name column, one entry per row.
func Names(t *model.Table, column string) ([]*string, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, eris.Errorf("roster: name column %q not found in %v", column, t.Header)
	}
	names := make([]*string, len(t.Rows))
	for i, row := range t.Rows {
		names[i] = row[idx]
	}
	return names, nil
}
