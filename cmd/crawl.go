package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/api"
	"github.com/scrapeworks/wormy/internal/config"
	"github.com/scrapeworks/wormy/internal/crawler"
	"github.com/scrapeworks/wormy/internal/extract"
	"github.com/scrapeworks/wormy/internal/logging"
	"github.com/scrapeworks/wormy/internal/output"
	"github.com/scrapeworks/wormy/internal/pdf"
	"github.com/scrapeworks/wormy/internal/progress"
	progresssinks "github.com/scrapeworks/wormy/internal/progress/sinks"
	"github.com/scrapeworks/wormy/internal/ratelimit"
	"github.com/scrapeworks/wormy/internal/sitemap"
	"github.com/scrapeworks/wormy/internal/urlutil"
)

type crawlFlags struct {
	depth       int
	maxPages    int
	concurrency int
	force       string
	format      string
	name        string
	serve       bool
}

func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site starting from the given URL",
		Long: `Crawls the given site: the seed page first, then every same-site
link it discovers up to the configured depth and page limits. Results land
under the output directory as <name>/<timestamp>.<format>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.depth, "depth", -1, "override crawler.max_depth (0 crawls only the seed page)")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "override crawler.max_pages")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "override crawler.concurrency")
	cmd.Flags().StringVar(&flags.force, "force", "", "pin acquisition mode: static or rendered")
	cmd.Flags().StringVar(&flags.format, "format", "", "override output.format: json or csv")
	cmd.Flags().StringVar(&flags.name, "name", "", "crawl name used for the output directory (default: site host)")
	cmd.Flags().BoolVar(&flags.serve, "serve", false, "expose /healthz, /progress, and /metrics while crawling")
	return cmd
}

func runCrawl(cmd *cobra.Command, seedURL string, flags *crawlFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlags(&cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	showSpinner := !cfg.Logging.Development
	logger, err := logging.New(cfg.Logging.Development, showSpinner)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL, err := urlutil.Normalize(seedURL)
	if err != nil {
		return fmt.Errorf("invalid seed url: %w", err)
	}
	name := flags.name
	if name == "" {
		name = urlutil.Domain(baseURL)
	}

	fetcher := crawler.NewCollyFetcher(crawler.FetcherConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, logger)
	extractor := extract.New(logger)
	detector := crawler.NewHeuristicDetector(extractor, cfg.Detector.MinTextChars, logger)
	pipeline := crawler.NewPipeline(crawler.PipelineConfig{
		MaxAttempts:       cfg.HTTP.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay(),
	}, fetcher, detector, logger)
	limiter := ratelimit.New(ratelimit.Config{
		MinDelay: cfg.MinDelay(),
		MaxDelay: cfg.MaxDelay(),
	})

	var factory crawler.RendererFactory
	if cfg.Render.Enabled && cfg.Crawler.Force != string(crawler.ForceStatic) {
		rendererCfg := crawler.RendererConfig{
			UserAgent:   cfg.Crawler.UserAgent,
			NavTimeout:  cfg.NavTimeout(),
			MaxScrolls:  cfg.Render.MaxScrolls,
			ScrollPause: cfg.ScrollPause(),
			DomainQPS:   cfg.Render.DomainQPS,
		}
		factory = func(context.Context) (crawler.Renderer, error) {
			return crawler.NewChromedpRenderer(rendererCfg, logger)
		}
	}

	stats := progresssinks.NewStatsSink()
	hubSinks := []progress.Sink{stats}
	if cfg.Logging.Development {
		hubSinks = append(hubSinks, progresssinks.NewLogSink(logger))
	}
	registry := prometheus.NewRegistry()
	if cfg.API.Enabled {
		promSink, err := progresssinks.NewPrometheusSink(registry)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, hubSinks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	if cfg.API.Enabled {
		startAPIServer(ctx, cfg.API.Port, stats, registry, logger)
	}

	var sitemapURLs []string
	if cfg.Sitemap.Enabled {
		sitemapURLs = sitemap.New(cfg.HTTPTimeout(), cfg.Crawler.UserAgent, logger).
			DiscoverSeedURLs(ctx, baseURL)
	}

	engine, err := crawler.NewEngine(crawler.EngineConfig{
		BaseURL:              baseURL,
		SeedURLs:             sitemapURLs,
		Concurrency:          cfg.Crawler.Concurrency,
		MaxDepth:             cfg.Crawler.MaxDepth,
		MaxPages:             cfg.Crawler.MaxPages,
		Force:                crawler.ForceMode(cfg.Crawler.Force),
		RendererRecycleLimit: cfg.Render.RecycleAttempts,
	}, crawler.EngineDeps{
		Pipeline:        pipeline,
		Prober:          fetcher,
		Limiter:         limiter,
		RendererFactory: factory,
		HTML:            extractor,
		PDF:             pdf.New(logger),
		Emitter:         hub,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	var spin *spinner.Spinner
	if showSpinner {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithSuffix(fmt.Sprintf(" crawling %s", baseURL)))
		spin.Start()
	}

	started := time.Now().UTC()
	records, runErr := engine.Run(ctx)

	if spin != nil {
		spin.Stop()
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawl: %w", runErr)
	}

	writer := output.New(cfg.Output.Dir, logger)
	path, err := writer.Write(cfg.Output.Format, name, output.CrawlResult{
		BaseURL:     baseURL,
		CrawledAt:   started,
		SitemapURLs: sitemapURLs,
		Pages:       records,
	})
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	logger.Info("crawl finished",
		zap.String("base_url", baseURL),
		zap.Int("pages", len(records)),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("output", path))
	fmt.Fprintf(cmd.OutOrStdout(), "crawled %d pages, results in %s\n", len(records), path)
	return nil
}

func applyFlags(cfg *config.Config, flags *crawlFlags) {
	if flags.depth >= 0 {
		cfg.Crawler.MaxDepth = flags.depth
	}
	if flags.maxPages > 0 {
		cfg.Crawler.MaxPages = flags.maxPages
	}
	if flags.concurrency > 0 {
		cfg.Crawler.Concurrency = flags.concurrency
	}
	if flags.force != "" {
		cfg.Crawler.Force = flags.force
	}
	if flags.format != "" {
		cfg.Output.Format = flags.format
	}
	if flags.serve {
		cfg.API.Enabled = true
	}
}

// startAPIServer runs the status server for the lifetime of the crawl. It
// shuts down with the context; a failed listen only logs, the crawl itself
// does not depend on it.
func startAPIServer(ctx context.Context, port int, stats *progresssinks.StatsSink, registry *prometheus.Registry, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(stats, registry, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown error", zap.Error(err))
		}
	}()
}
