package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linkcanary/linkcanary/internal/model"
)

func sampleReport() *model.CrawlReport {
	return &model.CrawlReport{
		RunID:   "run-42",
		Site:    "example.com",
		State:   "done",
		Elapsed: 1500 * time.Millisecond,
		Summary: model.Summary{
			PagesCrawled:  5,
			PagesTotal:    5,
			LinksObserved: 30,
			UniqueTargets: 12,
			ByPriority:    model.PriorityCounts{High: 2, Medium: 1},
		},
	}
}

// TestSendPostsSummary tests the webhook payload shape.
func TestSendPostsSummary(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.Client(), srv.URL, nil)
	if err := n.Send(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var got payload
	if err := json.Unmarshal(gotBody, &got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got.RunID != "run-42" || got.Site != "example.com" || got.State != "done" {
		t.Errorf("payload = %+v, want run metadata", got)
	}
	if got.PagesCrawled != 5 || got.LinksObserved != 30 || got.UniqueTargets != 12 {
		t.Errorf("payload counts = %+v, want summary counts", got)
	}
	if got.Issues.High != 2 || got.Issues.Medium != 1 {
		t.Errorf("payload issues = %+v, want priority counts", got.Issues)
	}
	if got.ElapsedMS != 1500 {
		t.Errorf("ElapsedMS = %d, want 1500", got.ElapsedMS)
	}
}

// TestSendNon2xxIsError tests that a rejecting endpoint surfaces an error.
func TestSendNon2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(srv.Client(), srv.URL, nil)
	if err := n.Send(context.Background(), sampleReport()); err == nil {
		t.Error("expected error for 403 response")
	}
}

// TestSendUnreachableIsError tests connection failures surface as errors.
func TestSendUnreachableIsError(t *testing.T) {
	t.Parallel()

	n := New(&http.Client{}, "http://127.0.0.1:1/hook", nil)
	if err := n.Send(context.Background(), sampleReport()); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}
