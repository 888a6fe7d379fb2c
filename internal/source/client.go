package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 600 * time.Millisecond
	maxBodyBytes    = 4 << 20
)

// Client talks to the public SKKNI documents API. Every call carries a
// bounded timeout and a small fixed retry count with a short backoff;
// exhausted retries surface as an error the caller logs and skips.
type Client struct {
	apiBase  string
	hc       *http.Client
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewClient builds an API client. timeout bounds each individual request.
func NewClient(apiBase string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiBase:  strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		hc:       &http.Client{Timeout: timeout},
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		logger:   logger,
	}
}

// DocumentDetail fetches the raw detail payload for one document.
func (c *Client) DocumentDetail(ctx context.Context, uuid string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(uuid)
	if trimmed == "" {
		return nil, fmt.Errorf("document uuid is required")
	}
	return c.getJSON(ctx, fmt.Sprintf("%s/v1/public/documents/%s", c.apiBase, trimmed))
}

// DownloadURL returns the canonical download URL for a document id. The
// id embedded in this URL is what CanonicalDocumentID later extracts.
func (c *Client) DownloadURL(uuid string) string {
	return fmt.Sprintf("%s/v1/public/documents/%s/download", c.apiBase, strings.TrimSpace(uuid))
}

type listingEnvelope struct {
	Data []map[string]any `json:"data"`
}

// ListDocuments fetches one page of the public documents index and returns
// raw listing rows in the shape the record normalizer expects. Pagination is
// 1-based.
func (c *Client) ListDocuments(ctx context.Context, page, limit int) ([]ListingRow, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	url := fmt.Sprintf("%s/v1/public/documents?limit=%d&page=%d", c.apiBase, limit, page)
	payload, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope listingEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode documents listing: %w", err)
	}

	rows := make([]ListingRow, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		row := ListingRow{"listing_url": url}
		for k, v := range item {
			row[strings.ToLower(strings.TrimSpace(k))] = nodeText(v)
		}
		if uuid, ok := item["uuid"].(string); ok && strings.TrimSpace(uuid) != "" && row["unduh_url"] == "" {
			row["unduh_url"] = c.DownloadURL(uuid)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) getJSON(ctx context.Context, url string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		payload, err := c.getJSONOnce(ctx, url)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("upstream fetch failed")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, c.attempts, lastErr)
}

func (c *Client) getJSONOnce(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return json.RawMessage(body), nil
}
