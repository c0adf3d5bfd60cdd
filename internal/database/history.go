package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/linkcanary/linkcanary/internal/model"
)

// HistoryDB provides SQLite-based storage for crawl runs. Saved runs let
// later crawls answer "what broke since last week" without re-reading
// old report files.
//
// Design decision: We store both the full report JSON (for exact replay)
// and a normalized issues table (for cross-run diff queries). The issue
// rows are small; duplicating them is cheaper than parsing report JSON on
// every diff.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "linkcanary.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Runs store one row per crawl with the full report as JSON
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		sitemap_url TEXT,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		state TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Issues store one row per reported issue for cross-run diffs
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		target_url TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		priority TEXT NOT NULL,
		status_code INTEGER,
		source_page TEXT,
		occurrence_count INTEGER,
		final_url TEXT,
		hop_chain TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
	CREATE INDEX IF NOT EXISTS idx_issues_target ON issues(target_url);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport persists one finished crawl: the run row plus its issue rows,
// in a single transaction.
func (hdb *HistoryDB) SaveReport(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, site, sitemap_url, started_at, elapsed_ms, state, summary_json, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Site,
		report.SitemapURL,
		report.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		report.Elapsed.Milliseconds(),
		report.State,
		string(summaryJSON),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, issue := range report.Issues {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (run_id, target_url, issue_type, priority, status_code, source_page, occurrence_count, final_url, hop_chain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			issue.TargetURL,
			issue.Type.String(),
			issue.Priority.String(),
			issue.StatusCode,
			issue.SourcePage,
			issue.OccurrenceCount,
			issue.FinalURL,
			issue.HopChain,
		)
		if err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}

	return tx.Commit()
}

// GetReport retrieves a saved report by run ID. Returns nil when the run
// does not exist.
func (hdb *HistoryDB) GetReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx,
		`SELECT report_json FROM runs WHERE run_id = ?`, runID,
	).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// RunMetadata summarizes one stored run without loading the full report.
type RunMetadata struct {
	// RunID uniquely identifies the run.
	RunID string

	// Site is the audited site's host.
	Site string

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// State is the run's terminal state.
	State string

	// Summary carries the run's aggregate counts.
	Summary model.Summary
}

// ListRuns returns run metadata for a site, newest first.
func (hdb *HistoryDB) ListRuns(ctx context.Context, site string) ([]RunMetadata, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT run_id, site, started_at, state, summary_json
	FROM runs
	WHERE site = ?
	ORDER BY started_at DESC
	`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt, summaryJSON string

		if err := rows.Scan(&meta.RunID, &meta.Site, &startedAt, &meta.State, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		if err := json.Unmarshal([]byte(summaryJSON), &meta.Summary); err != nil {
			meta.Summary = model.Summary{}
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListSites returns every site with at least one stored run.
func (hdb *HistoryDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx,
		`SELECT DISTINCT site FROM runs ORDER BY site`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// Diff compares two stored runs by (target URL, issue type).
type Diff struct {
	// New are issue targets present in the newer run but not the older.
	New []model.Issue

	// Resolved are issue targets present in the older run but not the newer.
	Resolved []model.Issue
}

// DiffRuns computes which issues appeared and which were resolved between
// two runs. Issues are matched on (target URL, issue type): a target whose
// classification changed counts as both resolved and new.
func (hdb *HistoryDB) DiffRuns(ctx context.Context, oldRunID, newRunID string) (*Diff, error) {
	oldIssues, err := hdb.runIssues(ctx, oldRunID)
	if err != nil {
		return nil, err
	}
	newIssues, err := hdb.runIssues(ctx, newRunID)
	if err != nil {
		return nil, err
	}

	oldKeys := make(map[string]bool, len(oldIssues))
	for _, issue := range oldIssues {
		oldKeys[diffKey(issue)] = true
	}
	newKeys := make(map[string]bool, len(newIssues))
	for _, issue := range newIssues {
		newKeys[diffKey(issue)] = true
	}

	diff := &Diff{}
	for _, issue := range newIssues {
		if !oldKeys[diffKey(issue)] {
			diff.New = append(diff.New, issue)
		}
	}
	for _, issue := range oldIssues {
		if !newKeys[diffKey(issue)] {
			diff.Resolved = append(diff.Resolved, issue)
		}
	}
	return diff, nil
}

// diffKey identifies an issue across runs.
func diffKey(issue model.Issue) string {
	return issue.TargetURL + "\x00" + issue.Type.String()
}

// runIssues loads the issue rows of one run.
func (hdb *HistoryDB) runIssues(ctx context.Context, runID string) ([]model.Issue, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT target_url, issue_type, priority, status_code, source_page, occurrence_count, final_url, hop_chain
	FROM issues
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issues for run %s: %w", runID, err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var issue model.Issue
		var typeName, priorityName string

		err := rows.Scan(
			&issue.TargetURL,
			&typeName,
			&priorityName,
			&issue.StatusCode,
			&issue.SourcePage,
			&issue.OccurrenceCount,
			&issue.FinalURL,
			&issue.HopChain,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}

		if t, err := model.ParseIssueType(typeName); err == nil {
			issue.Type = t
		}
		issue.Priority = model.ParsePriority(priorityName)
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
