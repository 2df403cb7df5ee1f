package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/extract"
	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/pipeline"
	"github.com/sells-group/homeswipe/internal/resilience"
	"github.com/sells-group/homeswipe/internal/store"
	"github.com/sells-group/homeswipe/pkg/geocode"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape pass",
	Long:  "Extracts snapshots from the configured source, reconciles them into the store, derives alerts and retires listings missing past the grace window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "scrape")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		coord, err := buildCoordinator(st)
		if err != nil {
			return err
		}

		run, err := coord.RunPass(ctx)
		if run != nil {
			formatRunSummary(os.Stdout, run)
		}
		return eris.Wrap(err, "scrape")
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

// buildExtractor picks the snapshot source. A source file wins over a feed URL.
func buildExtractor() (extract.Extractor, error) {
	sc := cfg.Scrape
	switch {
	case sc.SourceFile != "":
		return extract.NewFileExtractor(sc.SourceFile), nil
	case sc.FeedURL != "":
		retry := resilience.DefaultRetryConfig()
		if sc.PageRetries > 0 {
			retry.MaxAttempts = sc.PageRetries
		}
		return extract.NewHTTPExtractor(sc.FeedURL,
			extract.WithPageSize(sc.FeedPageSize),
			extract.WithMaxPages(sc.MaxPages),
			extract.WithRetry(retry),
		), nil
	default:
		return nil, eris.New("no snapshot source configured (scrape.source_file or scrape.feed_url)")
	}
}

// buildCoordinator wires the extractor, alert deriver and optional geocoder
// around st.
func buildCoordinator(st store.Store) (*pipeline.Coordinator, error) {
	ex, err := buildExtractor()
	if err != nil {
		return nil, err
	}

	policy, err := alert.ParsePolicy(cfg.Alerts.InterestPolicy)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithDeriver(alert.NewDeriver(st, st, policy)),
	}

	if gc := cfg.Geocode; gc.Enabled {
		client := geocode.NewClient(gc.GoogleAPIKey,
			geocode.WithRateLimit(gc.RateLimitRPS),
			geocode.WithRegion(gc.Region),
			geocode.WithCache(st),
		)
		opts = append(opts, pipeline.WithEnricher(geocode.NewEnricher(client, gc.CircuitFailureThreshold)))
	}

	return pipeline.NewCoordinator(st, ex, pipeline.Config{
		RetirementGrace:        cfg.Reconcile.RetirementGrace,
		StaleRunAfter:          cfg.Scrape.StaleRunAfter,
		MaxConsecutiveFailures: cfg.Scrape.MaxConsecutiveFailures,
	}, opts...), nil
}

// formatRunSummary writes the outcome and counters of one run to out.
func formatRunSummary(out io.Writer, run *model.ScrapeRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	c := run.Counts
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	if d := run.Duration(); d > 0 {
		_, _ = fmt.Fprintf(w, "Duration:\t%s\n", d.Round(time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "Found:\t%d\n", c.Found)
	_, _ = fmt.Fprintf(w, "New:\t%d\n", c.New)
	_, _ = fmt.Fprintf(w, "Updated:\t%d\n", c.Updated)
	_, _ = fmt.Fprintf(w, "Price changed:\t%d\n", c.PriceChanged)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", c.Failed)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", c.Skipped)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", c.Duplicates)
	_, _ = fmt.Fprintf(w, "Retired:\t%d\n", c.Retired)
	_, _ = fmt.Fprintf(w, "Alerts:\t%d\n", c.Alerts)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	_ = w.Flush()
}
