package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/source"
)

func newTestClient(serverURL string) *Client {
	c := New(zap.NewNop())
	c.APIURL = serverURL
	return c
}

func TestBoardToken(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"https://boards.greenhouse.io/acme", "acme"},
		{"https://boards.greenhouse.io/acme/jobs/123", "acme"},
		{"https://acme.greenhouse.io", "acme"},
		{"https://job-boards.greenhouse.io/acme", "acme"},
	}

	for _, tc := range cases {
		got, err := boardToken(tc.query)
		if err != nil {
			t.Fatalf("boardToken(%q): %v", tc.query, err)
		}
		if got != tc.want {
			t.Fatalf("boardToken(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}

	if _, err := boardToken("https://boards.greenhouse.io"); err == nil {
		t.Fatal("expected an error for a locator without a board token")
	}
}

func TestEnumerateListsBoard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs": [
			{"id": 100, "title": "Go Engineer", "absolute_url": "https://boards.greenhouse.io/acme/jobs/100",
				"location": {"name": "Berlin"}, "company_name": "Acme"},
			{"id": 200, "title": "SRE", "absolute_url": "https://boards.greenhouse.io/acme/jobs/200",
				"location": {"name": "Remote"}, "company_name": "Acme"}]}`))
	}))
	defer server.Close()

	refs, err := newTestClient(server.URL).Enumerate(context.Background(), "https://boards.greenhouse.io/acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Handle != "acme/jobs/100" {
		t.Fatalf("unexpected handle: %s", refs[0].Handle)
	}
	if refs[1].Location != "Remote" {
		t.Fatalf("unexpected location: %s", refs[1].Location)
	}
}

func TestEnumerateRateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Enumerate(context.Background(), "https://boards.greenhouse.io/acme")
	if err == nil || !source.Retryable(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
}

func TestFetchFullTextStripsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/jobs/100" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 100, "title": "Go Engineer",
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/100",
			"location": {"name": "Berlin"}, "company_name": "Acme",
			"content": "<p>Own the platform.</p><ul><li>Go</li><li>Postgres</li></ul>"}`))
	}))
	defer server.Close()

	posting, err := newTestClient(server.URL).FetchFullText(context.Background(), &source.PostingRef{
		Handle: "acme/jobs/100",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if posting.Description != "Own the platform.\nGo\nPostgres" {
		t.Fatalf("unexpected description: %q", posting.Description)
	}
	if posting.Company != "Acme" || posting.Title != "Go Engineer" {
		t.Fatalf("unexpected posting: %+v", posting)
	}
	if posting.ID != source.PostingID("greenhouse", "https://boards.greenhouse.io/acme/jobs/100") {
		t.Fatal("posting ID not derived from absolute url")
	}
}

func TestFetchFullTextMissingFieldsIsStructural(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchFullText(context.Background(), &source.PostingRef{Handle: "acme/jobs/1"})
	if !source.IsStructural(err) {
		t.Fatalf("expected structural failure, got %v", err)
	}
}
