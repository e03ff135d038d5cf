package gridapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher is the read surface the dashboard depends on. *Client implements it.
type Fetcher interface {
	FetchPowerUsage(ctx context.Context) ([]PowerDataPoint, error)
	FetchGridEvents(ctx context.Context, page, pageSize int) (GridEventsPage, error)
	FetchGridEventsMetadata(ctx context.Context) (Metadata, error)
}

var _ Fetcher = (*Client)(nil)

// Client talks to the grid data HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	delayMS   int
}

const (
	DefaultBase      = "127.0.0.1:7480"
	defaultUserAgent = "gridwatch/0.1"
	requestTimeout   = 30 * time.Second
)

// NewClient builds a Client for base, a host:port or URL.
func NewClient(base string) (*Client, error) {
	u, err := parseBaseURL(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		delayMS:   -1,
	}, nil
}

// WithDelay asks the server to hold each data response for ms milliseconds.
// A negative value leaves the server default in place.
func (c *Client) WithDelay(ms int) *Client {
	c.delayMS = ms
	return c
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchPowerUsage retrieves the power-usage series.
func (c *Client) FetchPowerUsage(ctx context.Context) ([]PowerDataPoint, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	c.setDelay(values)
	var payload []PowerDataPoint
	if err := c.get(ctx, "/api/power-usage", values, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchGridEvents retrieves one page of grid events.
func (c *Client) FetchGridEvents(ctx context.Context, page, pageSize int) (GridEventsPage, error) {
	if c == nil {
		return GridEventsPage{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		values.Set("pageSize", strconv.Itoa(pageSize))
	}
	c.setDelay(values)
	var payload GridEventsPage
	if err := c.get(ctx, "/api/grid-events", values, &payload); err != nil {
		return GridEventsPage{}, err
	}
	return payload, nil
}

// FetchGridEventsMetadata retrieves the event count and page geometry.
func (c *Client) FetchGridEventsMetadata(ctx context.Context) (Metadata, error) {
	if c == nil {
		return Metadata{}, fmt.Errorf("client is nil")
	}
	var payload Metadata
	if err := c.get(ctx, "/api/grid-events/metadata", nil, &payload); err != nil {
		return Metadata{}, err
	}
	return payload, nil
}

func (c *Client) setDelay(values url.Values) {
	if c.delayMS >= 0 {
		values.Set("delay", strconv.Itoa(c.delayMS))
	}
}

func (c *Client) get(ctx context.Context, path string, values url.Values, dest any) error {
	rel := &url.URL{Path: path}
	if len(values) > 0 {
		rel.RawQuery = values.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", http.StatusText(resp.StatusCode))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func parseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", base, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
