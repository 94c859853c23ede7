// Package headhunter implements the listing source adapter for the hh.ru API.
package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/source"
)

const (
	sourceName = "headhunter"

	apiURL    = "https://api.hh.ru"
	userAgent = "jobscout (jobscout-dev@users.noreply.github.com)"
	// Max value for search per page.
	perPage = "100"
)

// searchParamKeys are the query locator parameters forwarded to the API.
var searchParamKeys = []string{
	"text", "area", "schedule", "experience", "period",
	"order_by", "search_field", "employer_id",
}

// Client talks to the hh.ru API and implements source.Adapter. Stateless
// across calls apart from the injected auth context.
type Client struct {
	auth   *source.AuthContext
	logger *zap.Logger

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, auth *source.AuthContext) *Client {
	return &Client{
		auth:   auth,
		logger: logger,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

func (c *Client) Name() string { return sourceName }

// Enumerate runs a paged vacancy search for the query locator and returns
// refs for every hit.
func (c *Client) Enumerate(ctx context.Context, query string) ([]*source.PostingRef, error) {
	parsed, err := url.Parse(query)
	if err != nil {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: query,
			Err: fmt.Errorf("parsing query locator: %w", err),
		}
	}

	q := url.Values{}
	locatorParams := parsed.Query()
	for _, key := range searchParamKeys {
		for _, value := range locatorParams[key] {
			q.Add(key, value)
		}
	}
	// Set per_page max as possible. It should be faster.
	if q.Get("per_page") == "" {
		q.Set("per_page", perPage)
	}

	items, err := c.getItems(ctx, c.APIURL+"/vacancies", q)
	if err != nil {
		return nil, err
	}

	vacancies, err := decodeVacancies(items)
	if err != nil {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: query, Err: err,
		}
	}

	refs := make([]*source.PostingRef, 0, len(vacancies))
	for _, v := range vacancies {
		refs = append(refs, &source.PostingRef{
			Handle:   v.ID,
			URL:      v.AlternateURL,
			Title:    v.Name,
			Company:  v.Employer.Name,
			Location: v.Area.Name,
		})
	}

	c.logger.Debug("enumerated hh.ru vacancies",
		zap.String("query", query),
		zap.Int("count", len(refs)),
	)

	return refs, nil
}

// FetchFullText loads the detailed vacancy behind a ref and converts it to a
// posting.
func (c *Client) FetchFullText(ctx context.Context, ref *source.PostingRef) (*source.Posting, error) {
	detailURL := fmt.Sprintf("%s/vacancies/%s", c.APIURL, ref.Handle)

	var v vacancy
	if err := c.getJSON(ctx, detailURL, nil, &v); err != nil {
		return nil, err
	}

	if v.ID == "" || v.Name == "" {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchStructural, URL: detailURL,
			Err: fmt.Errorf("vacancy response is missing id or name"),
		}
	}

	postingURL := v.AlternateURL
	if postingURL == "" {
		postingURL = ref.URL
	}

	return &source.Posting{
		ID:          source.PostingID(sourceName, postingURL),
		Title:       v.Name,
		Company:     v.Employer.Name,
		Location:    v.Area.Name,
		Description: source.StripHTML(v.Description),
		URL:         postingURL,
		Source:      sourceName,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
