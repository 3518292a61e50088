// Package analytics reads per-book usage metrics from the external
// statistics service.
package analytics

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openbookcatalog/catalog/pkg/config"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// InstanceKey is the projected field the service keys its results by.
const InstanceKey = "bookInstanceId"

// Query tells the statistics service where to read book records from. The
// service runs its own query against our store and joins the results with
// its events.
type Query struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Keys    string            `json:"keys"`
	Limit   int               `json:"limit"`
}

// Feed maps a book instance id to its flat metric values.
type Feed map[string]map[string]Value

type Client struct {
	URL      string
	APIKey   string
	Query    Query
	Attempts uint
	Delay    time.Duration
	client   *http.Client
}

func NewClient(cfg *config.Config) *Client {
	headers := map[string]string{}
	if cfg.AnalyticsQueryAuth != "" {
		headers["Authorization"] = cfg.AnalyticsQueryAuth
	}
	return &Client{
		URL:    cfg.AnalyticsURL,
		APIKey: cfg.AnalyticsAPIKey,
		Query: Query{
			URL:     cfg.AnalyticsQueryURL,
			Headers: headers,
			Keys:    InstanceKey,
			Limit:   cfg.AnalyticsPageSize,
		},
		Attempts: cfg.AnalyticsAttempts,
		Delay:    time.Second,
		client:   &http.Client{Timeout: cfg.AnalyticsTimeout},
	}
}

type feedRequest struct {
	Query Query `json:"query"`
}

type feedResponse struct {
	Stats Feed `json:"stats"`
}

// FetchBookStats posts the query descriptor and returns the metrics of every
// book the service knows about. Transport errors and server errors are
// retried.
func (c *Client) FetchBookStats(ctx context.Context) (Feed, error) {
	if c.URL == "" {
		return nil, errors.New("analytics url is not configured")
	}

	body, err := json.Marshal(feedRequest{Query: c.Query})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var feed Feed
	err = retry.Do(
		func() error {
			var err error
			feed, err = c.fetch(ctx, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(max(c.Attempts, 1)),
		retry.Delay(c.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch book stats")
	}
	return feed, nil
}

func (c *Client) fetch(ctx context.Context, body []byte) (Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(errors.WithStack(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if resp.StatusCode >= 500 {
		return nil, errors.Errorf("analytics service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(errors.Errorf("analytics service returned status %d", resp.StatusCode))
	}

	out := feedResponse{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, retry.Unrecoverable(errors.Wrap(err, "failed to parse analytics response"))
	}
	if out.Stats == nil {
		out.Stats = Feed{}
	}
	return out.Stats, nil
}
