// Package pipeline wires the load, index and match phases together over a
// single store.
package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/config"
	"github.com/sells-group/corpmatch/internal/export"
	"github.com/sells-group/corpmatch/internal/fetcher"
	"github.com/sells-group/corpmatch/internal/index"
	"github.com/sells-group/corpmatch/internal/loader"
	"github.com/sells-group/corpmatch/internal/match"
	"github.com/sells-group/corpmatch/internal/resolve"
	"github.com/sells-group/corpmatch/internal/store"
)

// PhaseResult records the outcome of one phase.
type PhaseResult struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// MatchReport summarizes the match phase.
type MatchReport struct {
	Stats      match.Stats `json:"stats"`
	OutputPath string      `json:"output_path"`
}

// Report collects the results of a run.
type Report struct {
	RunID  string         `json:"run_id"`
	Load   *loader.Result `json:"load,omitempty"`
	Index  *index.Result  `json:"index,omitempty"`
	Match  *MatchReport   `json:"match,omitempty"`
	Phases []PhaseResult  `json:"phases"`
}

// Pipeline runs phases against one registry table.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	fetcher fetcher.Fetcher
	keyer   *resolve.Keyer
	runID   string
	log     *zap.Logger
}

// New creates a Pipeline. The store is owned by the caller.
func New(cfg *config.Config, st store.Store, f fetcher.Fetcher) *Pipeline {
	runID := uuid.New().String()
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		fetcher: f,
		keyer:   resolve.NewKeyer(cfg.Match.Stopwords, cfg.Match.Suffixes),
		runID:   runID,
		log:     zap.L().With(zap.String("run_id", runID), zap.String("table", st.Table())),
	}
}

// RunID identifies this pipeline's log lines.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Load streams the configured source into the store.
func (p *Pipeline) Load(ctx context.Context) (*loader.Result, error) {
	p.log.Info("pipeline: loading source", zap.String("source", p.cfg.Source.Path))

	r, err := fetcher.Open(ctx, p.fetcher, p.cfg.Source.Path, p.cfg.Fetch.TempDir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open source")
	}
	defer r.Close() //nolint:errcheck

	l := loader.New(p.store, loader.Options{
		ChunkSize:  p.cfg.Source.ChunkSize,
		NameColumn: p.cfg.Source.NameColumn,
		CSV: fetcher.CSVOptions{
			Delimiter: p.cfg.Source.DelimiterRune(),
			Encoding:  p.cfg.Source.Encoding,
		},
	})
	res, err := l.Load(ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load")
	}
	return res, nil
}

// Index materializes and indexes the normalized name column.
func (p *Pipeline) Index(ctx context.Context) (*index.Result, error) {
	p.log.Info("pipeline: building index")

	b := index.NewBuilder(p.store, p.keyer.Normalizer, p.cfg.Source.NameColumn, p.cfg.Index.BatchSize)
	res, err := b.Build(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: index")
	}
	return res, nil
}

// Match looks up every roster name and writes the joined output file.
func (p *Pipeline) Match(ctx context.Context) (*MatchReport, error) {
	p.log.Info("pipeline: matching roster", zap.String("roster", p.cfg.Roster.Path))

	tb, err := store.ParseTieBreak(p.cfg.Match.TieBreak)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: match")
	}

	columns, err := p.store.Columns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read registry columns")
	}
	if len(columns) == 0 {
		return nil, eris.Errorf("pipeline: table %s does not exist, run load first", p.store.Table())
	}
	if !slices.Contains(columns, store.CleanedColumn) {
		return nil, eris.Errorf("pipeline: table %s has no %s column, run index first", p.store.Table(), store.CleanedColumn)
	}
	indexed, err := p.store.HasIndex(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: inspect index")
	}
	if !indexed {
		return nil, eris.Errorf("pipeline: index build on %s did not finish, run index again", p.store.Table())
	}

	rosterPath, err := fetcher.LocalPath(ctx, p.fetcher, p.cfg.Roster.Path, p.cfg.Fetch.TempDir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: locate roster")
	}
	roster, err := match.ReadRoster(rosterPath, match.RosterOptions{
		Sheet: p.cfg.Roster.Sheet,
		CSV:   fetcher.CSVOptions{Encoding: p.cfg.Roster.Encoding},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read roster")
	}
	names, err := match.Names(roster, p.cfg.Roster.NameColumn)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read roster")
	}

	m := match.NewMatcher(p.store, p.keyer, tb, len(columns))
	results, stats, err := m.Match(ctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: match")
	}

	joined, err := match.Join(roster, columns, results, match.JoinOptions{
		Drop:  []string{store.CleanedColumn},
		Front: p.cfg.Match.FrontColumn,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: join")
	}

	if err := export.WriteTable(p.cfg.Output.Path, joined); err != nil {
		return nil, eris.Wrap(err, "pipeline: write output")
	}
	p.log.Info("pipeline: output written",
		zap.String("path", p.cfg.Output.Path),
		zap.Int("rows", len(joined.Rows)),
	)

	return &MatchReport{Stats: stats, OutputPath: p.cfg.Output.Path}, nil
}

// Run executes load, index and match in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.log.Info("pipeline: starting run")
	report := &Report{RunID: p.runID}

	trackPhase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		phase := PhaseResult{Name: name, Duration: time.Since(start).Milliseconds()}
		if err != nil {
			phase.Error = err.Error()
			p.log.Error("pipeline: phase failed", zap.String("phase", name), zap.Error(err))
		} else {
			p.log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", phase.Duration))
		}
		report.Phases = append(report.Phases, phase)
		return err
	}

	if err := trackPhase("load", func() (err error) {
		report.Load, err = p.Load(ctx)
		return err
	}); err != nil {
		return report, err
	}
	if err := trackPhase("index", func() (err error) {
		report.Index, err = p.Index(ctx)
		return err
	}); err != nil {
		return report, err
	}
	if err := trackPhase("match", func() (err error) {
		report.Match, err = p.Match(ctx)
		return err
	}); err != nil {
		return report, err
	}

	p.log.Info("pipeline: run complete")
	return report, nil
}
