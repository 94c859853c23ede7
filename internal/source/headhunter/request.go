package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/source"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

type itemResponse struct {
	Items   []item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type item interface{}

// getItems makes a GET request to the API and returns items from all pages.
func (c *Client) getItems(ctx context.Context, rawURL string, q url.Values) ([]item, error) {
	var items []item

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, c.structural(rawURL, err)
	}

	req = c.setHeaders(req)
	// Additional headers. For GET requests only
	req.Header.Set("Content-Type", contentType)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	response, err := c.parseItemResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got response from hh.ru", zap.Int("pages", response.Pages), zap.Int("max items per page", response.PerPage))

	items = append(items, response.Items...)

	for response.Page < (response.Pages - 1) {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		resp, err = c.request(addPage(req, response.Page+1))
		if err != nil {
			return nil, err
		}

		response, err = c.parseItemResponse(resp)
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	return items, nil
}

func (c *Client) parseItemResponse(resp *http.Response) (*itemResponse, error) {
	reqURL := resp.Request.URL.String()

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, c.classifyStatus(resp.StatusCode, reqURL)
	}

	var body io.ReadCloser
	var err error
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		body, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, c.structural(reqURL, err)
		}
		defer body.Close()
	default:
		body = resp.Body
		defer body.Close()
	}

	var response *itemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, c.structural(reqURL, err)
	}

	return response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &source.FetchError{
			Source: sourceName, Kind: source.FetchTransient, URL: req.URL.String(), Err: err,
		}
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.auth != nil && c.auth.Blob != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.auth.Blob))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return c.structural(rawURL, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp.StatusCode, rawURL)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return c.structural(rawURL, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return &source.FetchError{
			Source: sourceName, Kind: source.FetchTransient, URL: rawURL, Err: err,
		}
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return c.structural(rawURL, err)
	}

	return nil
}

// classifyStatus maps a non-200 API status to the fetch error taxonomy.
func (c *Client) classifyStatus(status int, rawURL string) error {
	kind := source.FetchStructural
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = source.FetchAuth
	case status == http.StatusTooManyRequests || status >= 500:
		kind = source.FetchTransient
	}

	return &source.FetchError{
		Source: sourceName, Kind: kind, URL: rawURL,
		Err: fmt.Errorf("bad status: %d %s", status, http.StatusText(status)),
	}
}

func (c *Client) structural(rawURL string, err error) error {
	return &source.FetchError{
		Source: sourceName, Kind: source.FetchStructural, URL: rawURL, Err: err,
	}
}

// addPage adds page parameter to request URL.
func addPage(req *http.Request, page int) *http.Request {
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	return req
}
