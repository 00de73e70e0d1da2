// Package loader streams a delimited registry file into the store in
// fixed-size chunks, assigning each accepted row a global offset.
package loader

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/fetcher"
	"github.com/sells-group/corpmatch/internal/model"
	"github.com/sells-group/corpmatch/internal/store"
)

// DefaultChunkSize is the number of rows appended per store call.
const DefaultChunkSize = 100000

// ErrNameColumn is returned when the header lacks the configured name column.
var ErrNameColumn = errors.New("loader: name column not found in header")

// Sink is the part of store.Store the loader writes through.
type Sink interface {
	Table() string
	CreateTable(ctx context.Context, columns []string) error
	Columns(ctx context.Context) ([]string, error)
	MaxOffset(ctx context.Context) (int64, error)
	AppendChunk(ctx context.Context, columns []string, rows [][]any) (int64, error)
	DeleteAfter(ctx context.Context, offset int64) (int64, error)
}

// Options configures a Loader.
type Options struct {
	ChunkSize  int
	NameColumn string
	CSV        fetcher.CSVOptions
}

// Result summarizes a load.
type Result struct {
	Rows        int64 `json:"rows"`
	Chunks      int   `json:"chunks"`
	Skipped     int   `json:"skipped"`
	FirstOffset int64 `json:"first_offset"` // 0 when no rows were loaded
	LastOffset  int64 `json:"last_offset"`
}

// Loader copies a source file into a Sink chunk by chunk.
type Loader struct {
	sink Sink
	opts Options
}

// New creates a Loader. A non-positive chunk size falls back to DefaultChunkSize.
func New(sink Sink, opts Options) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Loader{sink: sink, opts: opts}
}

// Load reads r to the end. Only one chunk is held in memory at a time. Any
// failure after the first chunk was committed, cancellation included,
// deletes the rows this load appended so the table is left as it was.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*Result, error) {
	log := zap.L().With(zap.String("table", l.sink.Table()))
	start := time.Now()

	reader, err := fetcher.NewCSVReader(r, l.opts.CSV)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open source")
	}

	raw, err := reader.ReadHeader()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read header")
	}
	header := CleanHeader(raw)
	nameIdx, err := validateHeader(header, l.opts.NameColumn)
	if err != nil {
		return nil, err
	}

	if err := l.prepareTable(ctx, header); err != nil {
		return nil, err
	}

	maxOff, err := l.sink.MaxOffset(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "loader: read max offset")
	}

	columns := append([]string{store.OffsetColumn}, header...)
	next := maxOff + 1
	res := &Result{}
	batch := make([][]any, 0, l.opts.ChunkSize)

	abort := func(cause error) (*Result, error) {
		if res.Chunks == 0 {
			return nil, cause
		}
		n, err := l.sink.DeleteAfter(context.WithoutCancel(ctx), maxOff)
		if err != nil {
			log.Error("rollback of partial load failed", zap.Int64("after_offset", maxOff), zap.Error(err))
			return nil, eris.Wrapf(cause, "loader: rows after offset %d left in place: %v", maxOff, err)
		}
		log.Warn("rolled back partial load", zap.Int64("rows", n), zap.Int64("after_offset", maxOff))
		return nil, cause
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: cancelled")
		}
		n, err := l.sink.AppendChunk(ctx, columns, batch)
		if err != nil {
			return eris.Wrapf(err, "loader: append chunk %d", res.Chunks+1)
		}
		res.Chunks++
		res.Rows += n
		log.Info("loaded chunk",
			zap.Int("chunk", res.Chunks),
			zap.Int("rows", len(batch)),
			zap.Int64("total_rows", res.Rows),
			zap.Float64("elapsed_secs", time.Since(start).Seconds()),
		)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if fetcher.IsRowError(err) {
				res.Skipped++
				log.Warn("skipping malformed row", zap.Int("line", reader.Line()), zap.Error(err))
				continue
			}
			return abort(eris.Wrap(err, "loader: read source"))
		}

		if len(record) <= nameIdx || len(record) > len(header) {
			res.Skipped++
			log.Warn("skipping row with wrong field count",
				zap.Int("line", reader.Line()),
				zap.Int("fields", len(record)),
				zap.Int("expected", len(header)),
			)
			continue
		}

		batch = append(batch, buildRow(next, record, len(header)))
		next++

		if len(batch) >= l.opts.ChunkSize {
			if err := flush(); err != nil {
				return abort(err)
			}
		}
	}

	if err := flush(); err != nil {
		return abort(err)
	}

	if res.Rows > 0 {
		res.FirstOffset = maxOff + 1
		res.LastOffset = maxOff + res.Rows
	}

	log.Info("load complete",
		zap.Int64("rows", res.Rows),
		zap.Int("chunks", res.Chunks),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// prepareTable creates the destination table, or checks that an existing one
// has the same shape and has not been indexed yet.
func (l *Loader) prepareTable(ctx context.Context, header []string) error {
	existing, err := l.sink.Columns(ctx)
	if err != nil {
		return eris.Wrap(err, "loader: inspect table")
	}
	if len(existing) == 0 {
		return eris.Wrap(l.sink.CreateTable(ctx, header), "loader: create table")
	}
	if slices.Contains(existing, store.CleanedColumn) {
		return eris.Wrapf(store.ErrTableIndexed, "loader: append to %s", l.sink.Table())
	}
	want := append([]string{store.OffsetColumn}, header...)
	if !slices.Equal(existing, want) {
		return eris.Errorf("loader: table %s has columns %v, source has %v", l.sink.Table(), existing, want)
	}
	return nil
}

// buildRow prefixes the record with its offset and pads short records with
// NULLs. Empty fields are stored as NULL.
func buildRow(offset int64, record []string, width int) []any {
	row := make([]any, width+1)
	row[0] = offset
	for i := range width {
		var v *string
		if i < len(record) && record[i] != "" {
			v = model.Str(strings.ToValidUTF8(record[i], ""))
		}
		row[i+1] = v
	}
	return row
}

// CleanHeader removes every space from each header name.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ReplaceAll(h, " ", "")
	}
	return out
}

// validateHeader returns the position of the name column.
func validateHeader(header []string, nameColumn string) (int, error) {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		switch {
		case h == "":
			return 0, eris.Errorf("loader: header column %d is blank", i+1)
		case h == store.OffsetColumn || h == store.CleanedColumn:
			return 0, eris.Errorf("loader: header column %q is reserved", h)
		case seen[h]:
			return 0, eris.Errorf("loader: duplicate header column %q", h)
		}
		seen[h] = true
	}

	idx := model.IndexOf(header, nameColumn)
	if idx < 0 {
		return 0, eris.Wrapf(ErrNameColumn, "loader: looking for %q in %v", nameColumn, header)
	}
	return idx, nil
}
