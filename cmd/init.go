package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/corpmatch/internal/fetcher"
	"github.com/sells-group/corpmatch/internal/index"
	"github.com/sells-group/corpmatch/internal/loader"
	"github.com/sells-group/corpmatch/internal/pipeline"
	"github.com/sells-group/corpmatch/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Table:       cfg.Store.Table,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

func initFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		HostLimits: fetcher.DefaultRateLimiters(),
	})
}

// withPipeline validates the config for mode, opens the store and runs fn
// with a pipeline whose context is cancelled on SIGINT or SIGTERM.
func withPipeline(cmd *cobra.Command, mode string, fn func(ctx context.Context, p *pipeline.Pipeline) error) error {
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	return fn(ctx, pipeline.New(cfg, st, initFetcher()))
}

func printLoad(w io.Writer, res *loader.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows loaded\t%d\n", res.Rows)
	fmt.Fprintf(tw, "Chunks\t%d\n", res.Chunks)
	fmt.Fprintf(tw, "Rows skipped\t%d\n", res.Skipped)
	if res.Rows > 0 {
		fmt.Fprintf(tw, "Offsets\t%d-%d\n", res.FirstOffset, res.LastOffset)
	}
	_ = tw.Flush()
}

func printIndex(w io.Writer, res *index.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows normalized\t%d\n", res.Rows)
	fmt.Fprintf(tw, "Batches\t%d\n", res.Batches)
	if res.Resumed {
		fmt.Fprintln(tw, "Resumed\tyes")
	}
	fmt.Fprintf(tw, "Index\t%s\n", store.IndexName)
	_ = tw.Flush()
}

func printMatch(w io.Writer, res *pipeline.MatchReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Roster rows\t%d\n", res.Stats.Total)
	fmt.Fprintf(tw, "Matched\t%d\n", res.Stats.Matched)
	fmt.Fprintf(tw, "Unmatched\t%d\n", res.Stats.Unmatched)
	fmt.Fprintf(tw, "Empty keys\t%d\n", res.Stats.EmptyKeys)
	fmt.Fprintf(tw, "Missing names\t%d\n", res.Stats.MissingNames)
	fmt.Fprintf(tw, "Match rate\t%.1f%%\n", res.Stats.Rate()*100)
	fmt.Fprintf(tw, "Output\t%s\n", res.OutputPath)
	_ = tw.Flush()
}
