package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linkcanary/linkcanary/internal/config"
	"github.com/linkcanary/linkcanary/internal/crawl"
	"github.com/linkcanary/linkcanary/internal/database"
	"github.com/linkcanary/linkcanary/internal/fetcher"
	clog "github.com/linkcanary/linkcanary/internal/log"
	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/notify"
	"github.com/linkcanary/linkcanary/internal/ratelimit"
	"github.com/linkcanary/linkcanary/internal/report"
	"github.com/linkcanary/linkcanary/internal/resolver"
	"github.com/linkcanary/linkcanary/internal/sitemap"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [sitemap-url]",
		Short: "Audit a site's link health from its sitemap",
		Long: `Check crawls every page listed in a sitemap, extracts the links each
page carries, and resolves every unique target.

It reports:
- Broken links (4xx/5xx)
- Redirects, redirect chains, and redirect loops
- Canonical-form mismatches (trailing slash, case, http vs https)

Each issue carries a priority tier and a recommended fix. The exit code
is 0 when the site is clean, 1 when issues at or above --fail-on were
found, and 2 when the audit itself failed.

Examples:
  # Audit a full site
  linkcanary check https://example.com/sitemap.xml

  # Check a single page
  linkcanary check --url https://example.com/pricing

  # Check the pages listed in a file (one URL per line)
  linkcanary check --urls-file changed-pages.txt

  # Internal links only, CSV report, fail CI on broken links
  linkcanary check --internal-only -o report.csv --fail-on high https://example.com/sitemap.xml

Configuration file (.linkcanary) example:
  sites:
    staging.example.com:
      basicAuthUser: preview
      basicAuthPassEnv: STAGING_PASSWORD
      headers:
        X-Preview-Token: "abc123"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheckCmd,
	}

	// Input flags
	cmd.Flags().StringP("url", "u", "",
		"Check a single page instead of a sitemap")
	cmd.Flags().String("urls-file", "",
		"Read the page set from a file, one URL per line ('#' comments allowed)")

	// Crawl behavior flags
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Minimum interval between any two outbound requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request timeout")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages to crawl (0 = no limit)")
	cmd.Flags().String("since", "",
		"Only crawl pages last modified after this date (YYYY-MM-DD)")
	cmd.Flags().Int("fetch-workers", config.DefaultFetchWorkers,
		"Page-fetch worker pool size")
	cmd.Flags().Int("resolve-workers", config.DefaultResolveWorkers,
		"Link-resolution worker pool size")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum page body bytes to read")

	// Scope flags
	cmd.Flags().Bool("internal-only", false,
		"Only check links on the site's own domain")
	cmd.Flags().Bool("external-only", false,
		"Only check links leaving the site")
	cmd.Flags().Bool("include-subdomains", false,
		"Treat subdomains of the site's registered domain as internal")
	cmd.Flags().StringSlice("exclude", nil,
		"Skip link targets matching this glob pattern (repeatable)")
	cmd.Flags().StringSlice("include", nil,
		"Only check link targets matching this glob pattern (repeatable)")

	// Authentication flags
	cmd.Flags().StringToString("header", nil,
		"Extra HTTP header applied to every request (key=value, repeatable)")
	cmd.Flags().StringSlice("cookie", nil,
		"Cookie applied to every request (name=value, repeatable)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcanary in current or home directory)")

	// Report flags
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file (format detected from extension)")
	cmd.Flags().StringP("format", "f", "",
		"Force report format: csv, json, md, or xlsx")
	cmd.Flags().Bool("expand-duplicates", false,
		"Emit one report row per occurrence instead of one per unique target")
	cmd.Flags().Bool("skip-ok", false,
		"Exclude healthy links from the report")
	cmd.Flags().String("fail-on", config.DefaultFailOn,
		"Priority threshold for exit code 1: critical, high, medium, low, any, none")
	cmd.Flags().String("webhook", "",
		"POST a JSON run summary to this URL when the crawl finishes")
	cmd.Flags().Bool("save-history", false,
		"Save the run to the history database for later diffing")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Handle interrupt signals: first signal winds the crawl down and a
	// partial report is still produced.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCheck(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if len(args) > 0 {
		cfg.SitemapURL = args[0]
	}

	var err error
	cfg.PageURL, err = cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}
	cfg.URLsFile, err = cmd.Flags().GetString("urls-file")
	if err != nil {
		return nil, err
	}
	cfg.Delay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}
	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.FetchWorkers, err = cmd.Flags().GetInt("fetch-workers")
	if err != nil {
		return nil, err
	}
	cfg.ResolveWorkers, err = cmd.Flags().GetInt("resolve-workers")
	if err != nil {
		return nil, err
	}
	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}
	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}
	cfg.InternalOnly, err = cmd.Flags().GetBool("internal-only")
	if err != nil {
		return nil, err
	}
	cfg.ExternalOnly, err = cmd.Flags().GetBool("external-only")
	if err != nil {
		return nil, err
	}
	cfg.IncludeSubdomains, err = cmd.Flags().GetBool("include-subdomains")
	if err != nil {
		return nil, err
	}
	cfg.ExcludePatterns, err = cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}
	cfg.IncludePatterns, err = cmd.Flags().GetStringSlice("include")
	if err != nil {
		return nil, err
	}
	cfg.Headers, err = cmd.Flags().GetStringToString("header")
	if err != nil {
		return nil, err
	}
	cfg.Cookies, err = cmd.Flags().GetStringSlice("cookie")
	if err != nil {
		return nil, err
	}
	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.Format, err = cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}
	cfg.ExpandDuplicates, err = cmd.Flags().GetBool("expand-duplicates")
	if err != nil {
		return nil, err
	}
	cfg.SkipOK, err = cmd.Flags().GetBool("skip-ok")
	if err != nil {
		return nil, err
	}
	cfg.FailOn, err = cmd.Flags().GetString("fail-on")
	if err != nil {
		return nil, err
	}
	cfg.WebhookURL, err = cmd.Flags().GetString("webhook")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory, err = cmd.Flags().GetBool("save-history")
	if err != nil {
		return nil, err
	}

	since, err := cmd.Flags().GetString("since")
	if err != nil {
		return nil, err
	}
	if since != "" {
		cfg.Since, err = time.Parse("2006-01-02", since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
		}
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from the config file.
	// An explicitly specified file must exist; an implicit one is optional.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	return cfg, nil
}

// setupLogger creates a credential-redacting structured logger.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return clog.NewSecureLogger(os.Stderr, level)
}

// runCheck wires the components together and executes the crawl.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client := &http.Client{Timeout: cfg.Timeout}
	limiter := ratelimit.New(cfg.Delay)
	reqOpts := &fetcher.RequestOptions{
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
		Cookies:   cfg.Cookies,
		Sites:     cfg.SiteConfigs,
	}

	entries, baseURL, err := pageSet(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", crawl.ErrFatal, err)
	}

	loader := sitemap.New(client,
		sitemap.WithUserAgent(cfg.UserAgent),
		sitemap.WithLimiter(limiter),
		sitemap.WithMaxDepth(config.DefaultSitemapDepth),
		sitemap.WithLogger(logger),
	)
	f := fetcher.New(client, baseURL,
		fetcher.WithLimiter(limiter),
		fetcher.WithRequestOptions(reqOpts),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithIncludeSubdomains(cfg.IncludeSubdomains),
		fetcher.WithLogger(logger),
	)
	r := resolver.New(client,
		resolver.WithLimiter(limiter),
		resolver.WithRequestOptions(reqOpts),
		resolver.WithLogger(logger),
	)

	crawlerOpts := []crawl.Option{crawl.WithLogger(logger)}
	if entries != nil {
		crawlerOpts = append(crawlerOpts, crawl.WithEntries(entries))
	}
	crawler := crawl.New(cfg, loader, f, r, crawlerOpts...)

	go displayProgress(crawler.Progress())

	result, err := crawler.Run(ctx)
	if err != nil {
		return err
	}

	if err := outputReport(cfg, result); err != nil {
		return fmt.Errorf("report output failed: %w", err)
	}

	if cfg.SaveHistory {
		if err := saveRun(ctx, cfg, result, logger); err != nil {
			logger.Error("failed to save run to history", "error", err)
		}
	}

	if cfg.WebhookURL != "" {
		notifier := notify.New(client, cfg.WebhookURL, logger)
		if err := notifier.Send(context.WithoutCancel(ctx), result); err != nil {
			logger.Error("webhook delivery failed", "error", err)
		}
	}

	return checkFailThreshold(cfg, result)
}

// pageSet builds the explicit page list for --url and --urls-file runs.
// Sitemap runs return nil entries: the crawler loads the sitemap itself.
// The second return is the base URL used to classify links as internal.
func pageSet(cfg *config.Config) ([]model.SitemapEntry, string, error) {
	switch {
	case cfg.PageURL != "":
		return []model.SitemapEntry{{URL: cfg.PageURL}}, cfg.PageURL, nil

	case cfg.URLsFile != "":
		entries, err := readURLsFile(cfg.URLsFile)
		if err != nil {
			return nil, "", err
		}
		if len(entries) == 0 {
			return nil, "", fmt.Errorf("no URLs found in %s", cfg.URLsFile)
		}
		return entries, entries[0].URL, nil

	default:
		return nil, cfg.SitemapURL, nil
	}
}

// readURLsFile reads a page list, one URL per line. Blank lines and lines
// starting with '#' are skipped.
func readURLsFile(path string) ([]model.SitemapEntry, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []model.SitemapEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, model.SitemapEntry{URL: line})
	}
	return entries, scanner.Err()
}

// displayProgress renders progress snapshots on stderr.
func displayProgress(ch <-chan model.Progress) {
	for p := range ch {
		fmt.Fprintf(os.Stderr, "\r[%s] pages %d/%d  links %d  issues %d    ",
			p.State, p.PagesCrawled, p.PagesTotal, p.LinksChecked, p.IssuesFound.Total())
	}
	fmt.Fprintln(os.Stderr)
}

// outputReport writes the console report to stdout and, when configured,
// a formatted report to the output file.
func outputReport(cfg *config.Config, result *model.CrawlReport) error {
	console := report.NewConsoleWriter(os.Stdout)
	if _, err := console.Write(result); err != nil {
		return err
	}

	if cfg.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(cfg.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// 0600: reports can reveal internal staging URLs.
	file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	format := report.DetectFormat(cfg.Format, cfg.OutputFile)
	writer, err := report.NewWriter(format, file)
	if err != nil {
		return err
	}
	if _, err := writer.Write(result); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Report written to %s (%s)\n", cfg.OutputFile, format)
	return nil
}

// saveRun persists the report to the history database.
func saveRun(ctx context.Context, cfg *config.Config, result *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveReport(ctx, result); err != nil {
		return err
	}
	logger.Info("run saved to history", "run_id", result.RunID, "site", result.Site)
	return nil
}

// checkFailThreshold maps the report against --fail-on.
func checkFailThreshold(cfg *config.Config, result *model.CrawlReport) error {
	if cfg.FailOn == "none" {
		return nil
	}

	var count int
	if cfg.FailOn == "any" {
		count = result.Summary.ByPriority.Total()
	} else {
		count = result.Summary.ByPriority.AtOrAbove(model.ParsePriority(cfg.FailOn))
	}

	if count > 0 {
		return fmt.Errorf("%w: %d issue(s) at or above %q", errIssuesFound, count, cfg.FailOn)
	}
	return nil
}
