// Package greenhouse implements the listing source adapter for the Greenhouse
// public job boards API.
package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/source"
)

const (
	sourceName = "greenhouse"

	apiURL = "https://boards-api.greenhouse.io/v1/boards"
)

// job is a single entry in the boards API jobs response.
type job struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	AbsoluteURL string `json:"absolute_url"`
	Content     string `json:"content"`
	CompanyName string `json:"company_name"`
	UpdatedAt   string `json:"updated_at"`
}

type jobsResponse struct {
	Jobs []job `json:"jobs"`
}

// Client talks to the Greenhouse boards API and implements source.Adapter.
// The board is public, no auth context is needed.
type Client struct {
	logger *zap.Logger

	HTTPClient *http.Client
	APIURL     string
}

func New(logger *zap.Logger) *Client {
	return &Client{
		logger: logger,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Name() string { return sourceName }

// Enumerate lists every job on the board named by the query locator. The
// board token is the first path segment of the locator URL, e.g.
// https://boards.greenhouse.io/acme.
func (c *Client) Enumerate(ctx context.Context, query string) ([]*source.PostingRef, error) {
	token, err := boardToken(query)
	if err != nil {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: query, Err: err,
		}
	}

	listURL := fmt.Sprintf("%s/%s/jobs", c.APIURL, token)

	var resp jobsResponse
	if err := c.getJSON(ctx, listURL, &resp); err != nil {
		return nil, err
	}

	refs := make([]*source.PostingRef, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		refs = append(refs, &source.PostingRef{
			Handle:   fmt.Sprintf("%s/jobs/%d", token, j.ID),
			URL:      j.AbsoluteURL,
			Title:    j.Title,
			Company:  j.CompanyName,
			Location: j.Location.Name,
		})
	}

	c.logger.Debug("enumerated greenhouse board",
		zap.String("board", token),
		zap.Int("count", len(refs)),
	)

	return refs, nil
}

// FetchFullText loads the job detail endpoint, which carries the HTML job
// description the listing endpoint omits.
func (c *Client) FetchFullText(ctx context.Context, ref *source.PostingRef) (*source.Posting, error) {
	detailURL := fmt.Sprintf("%s/%s", c.APIURL, ref.Handle)

	var j job
	if err := c.getJSON(ctx, detailURL, &j); err != nil {
		return nil, err
	}

	if j.ID == 0 || j.Title == "" {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: detailURL,
			Err: fmt.Errorf("job response is missing id or title"),
		}
	}

	postingURL := j.AbsoluteURL
	if postingURL == "" {
		postingURL = ref.URL
	}

	company := j.CompanyName
	if company == "" {
		company = ref.Company
	}

	return &source.Posting{
		ID:          source.PostingID(sourceName, postingURL),
		Title:       j.Title,
		Company:     company,
		Location:    j.Location.Name,
		Description: source.StripHTML(j.Content),
		URL:         postingURL,
		Source:      sourceName,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: rawURL, Err: err,
		}
	}

	c.logger.Debug("make request", zap.String("url", rawURL))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &source.FetchError{
			Source: sourceName, Kind: source.FetchTransient, URL: rawURL, Err: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := source.FetchStructural
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			kind = source.FetchAuth
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			kind = source.FetchTransient
		}
		return &source.FetchError{
			Source: sourceName, Kind: kind, URL: rawURL,
			Err: fmt.Errorf("bad status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: rawURL, Err: err,
		}
	}

	return nil
}

// boardToken extracts the board token from a query locator URL.
func boardToken(query string) (string, error) {
	parsed, err := url.Parse(query)
	if err != nil {
		return "", fmt.Errorf("parsing query locator: %w", err)
	}

	// Company subdomain form: https://acme.greenhouse.io
	if host, ok := strings.CutSuffix(parsed.Hostname(), ".greenhouse.io"); ok &&
		host != "" && host != "boards" && host != "job-boards" && host != "boards-api" {
		return host, nil
	}

	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			return segment, nil
		}
	}

	return "", fmt.Errorf("query locator %q has no board token", query)
}
