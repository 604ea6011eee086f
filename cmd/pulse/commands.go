package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/pulse"
	"github.com/poiesic/pulse/config"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/pipeline"
	"github.com/poiesic/pulse/reindex"
	"github.com/urfave/cli/v2"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// openEngine loads the config and opens the engine it describes. The config
// log level applies unless --log-level was given.
func openEngine(c *cli.Context) (*pulse.Engine, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if !c.IsSet("log-level") && cfg.LogLevel != "" {
		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		setDefaultLogger(level)
	}

	engine, err := pulse.Open(cfg, pulse.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pulse: %w", err)
	}
	return engine, cfg, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// runConfig starts from the config defaults and applies command flags.
func runConfig(c *cli.Context, cfg *config.Config) pipeline.RunConfig {
	rc := pulse.RunConfig(cfg)
	if v := c.String("product"); v != "" {
		rc.ProductID = v
	}
	if v := c.String("subreddit"); v != "" {
		rc.Query.Subreddit = v
	}
	if terms := c.StringSlice("term"); len(terms) > 0 {
		rc.Query.Terms = terms
	}
	if c.IsSet("limit") {
		rc.Query.Limit = c.Int("limit")
	}
	if v := c.String("window"); v != "" {
		rc.Query.TimeWindow = v
	}
	if v := c.String("sort"); v != "" {
		rc.Query.Sort = v
	}
	return rc
}

func runCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signalContext(c)
	defer cancel()

	report, err := engine.RunPipeline(ctx, runConfig(c, cfg))
	if report != nil {
		printReport(c.App.Writer, report)
	}
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	return nil
}

func scheduleCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	spec := c.String("cron")
	if spec == "" {
		spec = cfg.Pipeline.Schedule
	}
	if spec == "" {
		return errors.New("a cron spec is required: pass --cron or set pipeline.schedule")
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(engine), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("serving metrics", "addr", addr)
	}

	if err := engine.RunScheduled(spec, runConfig(c, cfg)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Scheduled %q, next run at %s\n", spec, engine.NextRun().Format(time.RFC3339))

	<-ctx.Done()
	fmt.Fprintln(c.App.Writer, "Stopping, waiting for the current run to finish")
	<-engine.StopScheduled().Done()
	printStats(c.App.Writer, engine.Stats())
	return nil
}

func metricsMux(engine *pulse.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", engine.Metrics().Handler())
	return mux
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	hits, err := engine.SearchSimilar(c.Context, query, core.SearchOptions{
		Limit:       c.Int("limit"),
		Threshold:   c.Float64("threshold"),
		ContentType: core.ContentTypePost,
	})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(c.App.Writer, "No matches")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIMILARITY\tVERBATIM\tTITLE\tLINK")
	for _, hit := range hits {
		title, link := hit.Record.ContentID, ""
		if hit.Post != nil {
			title, link = hit.Post.Post.Title, hit.Post.Post.Permalink
		}
		verbatim := ""
		if hit.Verbatim {
			verbatim = "yes"
		}
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", hit.Similarity, verbatim, clip(title, 70), link)
	}
	return tw.Flush()
}

// scope resolves the product and platform flags against the config.
func scope(c *cli.Context, cfg *config.Config) (string, string, error) {
	product := c.String("product")
	if product == "" {
		product = cfg.Pipeline.ProductID
	}
	if product == "" {
		return "", "", errors.New("a product is required: pass --product or set pipeline.product_id")
	}
	platform := c.String("platform")
	if platform == "" {
		platform = cfg.Pipeline.Platform
	}
	return product, platform, nil
}

func themesCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	product, platform, err := scope(c, cfg)
	if err != nil {
		return err
	}
	themes, err := engine.ClusterThemes(c.Context, product, platform, c.String("timeframe"), c.Int("min-size"))
	if err != nil {
		return err
	}
	if len(themes) == 0 {
		fmt.Fprintln(c.App.Writer, "No themes")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEYWORD\tPOSTS\tSENTIMENT\tPOS%\tNEG%\tCONFIDENCE\tRELATED")
	for _, th := range themes {
		fmt.Fprintf(tw, "%s\t%d\t%+.2f\t%.0f\t%.0f\t%.2f\t%s\n",
			th.Keyword(), th.PostCount, th.AverageSentiment,
			th.Distribution.Positive, th.Distribution.Negative, th.Confidence,
			strings.Join(th.Keywords[1:], ", "))
	}
	return tw.Flush()
}

func insightsCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	product, platform, err := scope(c, cfg)
	if err != nil {
		return err
	}
	insights, err := engine.GenerateInsights(c.Context, product, platform, c.String("timeframe"))
	if err != nil {
		return err
	}
	if len(insights) == 0 {
		fmt.Fprintln(c.App.Writer, "No insights")
		return nil
	}
	for _, in := range insights {
		fmt.Fprintf(c.App.Writer, "[%s] %s (%d posts, confidence %.2f)\n    %s\n",
			in.Type, in.Title, in.ContentCount, in.Confidence, in.Description)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signalContext(c)
	defer cancel()

	res, err := engine.Reindex(ctx, &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		ProductID:      c.String("product"),
		Resume:         c.Bool("resume"),
	}, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Reindexed %d posts (%d resumed, %d embedded, %d indexed) in %s\n",
		res.Posts, res.Resumed, res.Embedded, res.Stats.Indexed, res.Elapsed.Round(time.Millisecond))
	return nil
}

func printReport(w io.Writer, r *core.RunReport) {
	c := r.Counts
	fmt.Fprintf(w, "Run %s for %s (r/%s) in %s\n", r.RunID, r.ProductID, r.Subreddit, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  scraped %d, processed %d, persisted %d\n", c.Scraped, c.Processed, c.Persisted)
	fmt.Fprintf(w, "  embedded %d (%d failed), indexed %d (%d failed, %d skipped)\n",
		c.Embedded, c.EmbeddingFailures, c.Indexed, c.IndexFailed, c.IndexSkipped)
	fmt.Fprintf(w, "  tokens %d, cost $%.6f\n", r.Tokens, r.Cost)
}

func printStats(w io.Writer, s pipeline.Stats) {
	fmt.Fprintf(w, "Runs: %d total, %d succeeded, %d failed, %d rejected\n",
		s.TotalRuns, s.SuccessfulRuns, s.FailedRuns, s.RejectedRuns)
	if s.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", s.LastError)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
