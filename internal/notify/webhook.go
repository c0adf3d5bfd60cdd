// Package notify posts crawl summaries to external endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/linkcanary/linkcanary/internal/model"
)

// payload is the JSON body posted to the webhook. It carries only the
// summary: full reports go to files, not chat channels.
type payload struct {
	RunID         string               `json:"run_id"`
	Site          string               `json:"site"`
	State         string               `json:"state"`
	PagesCrawled  int                  `json:"pages_crawled"`
	PagesTotal    int                  `json:"pages_total"`
	LinksObserved int                  `json:"links_observed"`
	UniqueTargets int                  `json:"unique_targets"`
	Issues        model.PriorityCounts `json:"issues"`
	ElapsedMS     int64                `json:"elapsed_ms"`
}

// Notifier posts run summaries to a webhook URL.
type Notifier struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// New creates a Notifier posting to the given URL.
func New(client *http.Client, url string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, url: url, logger: logger}
}

// Send posts the report summary. A webhook failure is logged, never
// fatal: the report already exists locally.
func (n *Notifier) Send(ctx context.Context, report *model.CrawlReport) error {
	body, err := json.Marshal(payload{
		RunID:         report.RunID,
		Site:          report.Site,
		State:         report.State,
		PagesCrawled:  report.Summary.PagesCrawled,
		PagesTotal:    report.Summary.PagesTotal,
		LinksObserved: report.Summary.LinksObserved,
		UniqueTargets: report.Summary.UniqueTargets,
		Issues:        report.Summary.ByPriority,
		ElapsedMS:     report.Elapsed.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered", "url", n.url, "status", resp.StatusCode)
	return nil
}
