// Package index materializes the normalized name column on a loaded registry
// table and indexes it for prefix lookups.
package index

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/model"
	"github.com/sells-group/corpmatch/internal/resolve"
	"github.com/sells-group/corpmatch/internal/store"
)

// DefaultBatchSize is the number of rows normalized per round trip.
const DefaultBatchSize = 50000

// Target is the part of store.Store the builder needs.
type Target interface {
	Table() string
	HasColumn(ctx context.Context, name string) (bool, error)
	AddColumn(ctx context.Context, name string) error
	ScanUncleaned(ctx context.Context, nameColumn string, after int64, limit int) ([]model.NameRow, error)
	UpdateCleaned(ctx context.Context, rows []model.CleanedName) (int64, error)
	CreateIndex(ctx context.Context) error
	HasIndex(ctx context.Context) (bool, error)
}

// Result summarizes an index build.
type Result struct {
	Rows    int64 `json:"rows"`
	Batches int   `json:"batches"`
	Resumed bool  `json:"resumed"`
}

// Builder adds, fills and indexes the CleanedEntityName column.
type Builder struct {
	target     Target
	normalizer *resolve.Normalizer
	nameColumn string
	batchSize  int
}

// NewBuilder creates a Builder reading raw names from nameColumn.
func NewBuilder(target Target, normalizer *resolve.Normalizer, nameColumn string, batchSize int) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		target:     target,
		normalizer: normalizer,
		nameColumn: nameColumn,
		batchSize:  batchSize,
	}
}

// Build fails with store.ErrColumnExists if the table was already indexed.
// A column left behind by an interrupted build is resumed: only rows whose
// normalized name is still NULL are filled, then the index is created.
// A NULL source name yields an empty normalized name.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("table", b.target.Table()))
	start := time.Now()
	res := &Result{}

	resume, err := b.prepareColumn(ctx)
	if err != nil {
		return nil, err
	}
	if resume {
		res.Resumed = true
		log.Warn("resuming interrupted index build")
	}

	cleaned := make([]model.CleanedName, 0, b.batchSize)
	var after int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "index: cancelled")
		}

		names, err := b.target.ScanUncleaned(ctx, b.nameColumn, after, b.batchSize)
		if err != nil {
			return nil, eris.Wrapf(err, "index: read batch after offset %d", after)
		}
		if len(names) == 0 {
			break
		}

		cleaned = cleaned[:0]
		for _, n := range names {
			var c string
			if n.Name != nil {
				c = b.normalizer.Clean(*n.Name)
			}
			cleaned = append(cleaned, model.CleanedName{Offset: n.Offset, Cleaned: c})
		}

		if _, err := b.target.UpdateCleaned(ctx, cleaned); err != nil {
			return nil, eris.Wrapf(err, "index: write batch after offset %d", after)
		}

		after = names[len(names)-1].Offset
		res.Batches++
		res.Rows += int64(len(names))
		log.Info("normalized batch",
			zap.Int("batch", res.Batches),
			zap.Int64("total_rows", res.Rows),
			zap.Float64("elapsed_secs", time.Since(start).Seconds()),
		)

		if len(names) < b.batchSize {
			break
		}
	}

	if err := b.target.CreateIndex(ctx); err != nil {
		return nil, eris.Wrap(err, "index: create index")
	}

	log.Info("index build complete",
		zap.Int64("rows", res.Rows),
		zap.Int("batches", res.Batches),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// prepareColumn adds the normalized column, or reports a resume when the
// column exists without its index.
func (b *Builder) prepareColumn(ctx context.Context) (bool, error) {
	exists, err := b.target.HasColumn(ctx, store.CleanedColumn)
	if err != nil {
		return false, eris.Wrap(err, "index: inspect table")
	}
	if !exists {
		return false, eris.Wrap(b.target.AddColumn(ctx, store.CleanedColumn), "index: add column")
	}

	indexed, err := b.target.HasIndex(ctx)
	if err != nil {
		return false, eris.Wrap(err, "index: inspect index")
	}
	if indexed {
		return false, eris.Wrapf(store.ErrColumnExists, "index: %s on %s", store.CleanedColumn, b.target.Table())
	}
	return true, nil
}
