package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linkcanary/linkcanary/internal/config"
	"github.com/linkcanary/linkcanary/internal/database"
	"github.com/linkcanary/linkcanary/internal/model"
)

// NewHistoryCmd creates the history command.
// It queries runs previously stored with 'check --save-history'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "List saved runs and diff link health between them",
		Long: `History queries crawl runs saved with 'check --save-history'.

Without flags it lists the saved runs for a site, newest first. With
--diff it compares the two most recent runs and shows which issues
appeared and which were resolved.

Examples:
  # List all sites with saved runs
  linkcanary history --list-sites

  # List saved runs for a site
  linkcanary history example.com

  # What broke (and what got fixed) since the previous run
  linkcanary history --diff example.com

  # Compare the latest run against a specific earlier run
  linkcanary history --diff --with-run 3f2a... example.com

  # Machine-readable diff
  linkcanary history --diff --json example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites with saved runs")
	cmd.Flags().Bool("diff", false,
		"Diff the two most recent runs for the site")
	cmd.Flags().String("with-run", "",
		"Diff the latest run against this run ID instead of the previous one")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}

	var site string
	if !listSites {
		if len(args) == 0 {
			return errors.New("site is required (use --list-sites to see available sites)")
		}
		site = args[0]
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listSites {
		return listSavedSites(ctx, db)
	}

	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	if !diff {
		return listRuns(ctx, db, site)
	}

	withRun, err := cmd.Flags().GetString("with-run")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	return diffRuns(ctx, db, site, withRun, jsonOutput)
}

// listSavedSites lists every site with at least one saved run.
func listSavedSites(ctx context.Context, db *database.HistoryDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Println("No saved runs found.")
		fmt.Println("\nUse 'linkcanary check --save-history <sitemap-url>' to save a run.")
		return nil
	}

	fmt.Printf("Sites with saved runs (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Printf("  • %s\n", site)
	}
	fmt.Println("\nUse 'linkcanary history <site>' to see the runs for a site.")

	return nil
}

// listRuns lists the saved runs for one site, newest first.
func listRuns(ctx context.Context, db *database.HistoryDB, site string) error {
	runs, err := db.ListRuns(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No saved runs found for %s\n", site)
		fmt.Println("\nUse 'linkcanary check --save-history' to save a run.")
		return nil
	}

	fmt.Printf("Saved runs for %s (%d):\n\n", site, len(runs))
	fmt.Printf("  %-36s  %-20s  %-10s  %s\n", "Run ID", "Date", "State", "Issues")
	fmt.Println("  " + strings.Repeat("-", 90))

	for _, run := range runs {
		fmt.Printf("  %-36s  %-20s  %-10s  %s\n",
			run.RunID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.State,
			formatIssueSummary(run.Summary.ByPriority),
		)
	}

	fmt.Println("\nUse 'linkcanary history --diff <site>' to compare the latest two runs.")
	return nil
}

// formatIssueSummary renders priority counts compactly, e.g. "C:1 H:3 M:12".
func formatIssueSummary(p model.PriorityCounts) string {
	var parts []string
	if p.Critical > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", p.Critical))
	}
	if p.High > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", p.High))
	}
	if p.Medium > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", p.Medium))
	}
	if p.Low > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", p.Low))
	}
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, " ")
}

// diffRuns compares the latest run against an earlier one.
func diffRuns(ctx context.Context, db *database.HistoryDB, site, withRun string, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no saved runs found for %s", site)
	}

	newRun := runs[0]
	var oldRunID string

	if withRun != "" {
		oldRunID = withRun
		found := false
		for _, run := range runs {
			if run.RunID == withRun {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("run %s not found for site %s", withRun, site)
		}
	} else {
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 saved runs are required for a diff (found %d)", len(runs))
		}
		oldRunID = runs[1].RunID
	}

	diff, err := db.DiffRuns(ctx, oldRunID, newRun.RunID)
	if err != nil {
		return fmt.Errorf("failed to diff runs: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}

	return printDiff(site, oldRunID, newRun.RunID, diff)
}

// printDiff renders a diff in human-readable form.
func printDiff(site, oldRunID, newRunID string, diff *database.Diff) error {
	fmt.Printf("Run comparison for %s\n", site)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nOld run: %s\nNew run: %s\n", oldRunID, newRunID)

	if len(diff.New) == 0 && len(diff.Resolved) == 0 {
		fmt.Println("\nNo changes between runs.")
		return nil
	}

	if len(diff.New) > 0 {
		fmt.Printf("\nNew issues (%d):\n", len(diff.New))
		for _, issue := range diff.New {
			fmt.Printf("  [+] [%s] %s %s\n", issue.Priority, issue.Type, issue.TargetURL)
		}
	}

	if len(diff.Resolved) > 0 {
		fmt.Printf("\nResolved issues (%d):\n", len(diff.Resolved))
		for _, issue := range diff.Resolved {
			fmt.Printf("  [-] [%s] %s %s\n", issue.Priority, issue.Type, issue.TargetURL)
		}
	}

	return nil
}
