package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkcanary/linkcanary/internal/crawl"
)

// Exit codes. CI pipelines key off these: 1 means the site has issues at
// or above the --fail-on threshold, 2 means the audit itself failed.
const (
	exitOK      = 0
	exitIssues  = 1
	exitFailure = 2
)

// errIssuesFound signals that the crawl succeeded but found issues at or
// above the configured fail threshold.
var errIssuesFound = errors.New("issues found at or above fail threshold")

// NewRootCmd creates the root command for LinkCanary.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcanary",
		Short: "Sitemap-driven link health auditor",
		Long: `LinkCanary audits a website's link health.

It reads the site's sitemap, crawls every listed page, extracts the links
each page carries, and resolves every unique target: broken links,
redirects, redirect chains, and redirect loops are reported with a
priority and a recommended fix.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and maps errors to exit codes.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	if errors.Is(err, errIssuesFound) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIssues)
	}
	if errors.Is(err, crawl.ErrFatal) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitFailure)
}
