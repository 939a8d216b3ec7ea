// Package remote is the default sync-handler implementation: a thin
// client for the remote document store's HTTP API. Each registered
// collection maps queued mutations onto plain REST calls.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"planik/internal/models"
	"planik/internal/worker"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zerolog.Logger

	// limiter keeps bursts of queued mutations from hammering the remote
	// store right after reconnecting.
	limiter *rate.Limiter
}

type Options struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// RequestsPerSecond caps outbound calls; 0 means 10 rps.
	RequestsPerSecond float64
}

func NewClient(opts Options, logger *zerolog.Logger) *Client {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	lg := logger.With().Str("component", "remote").Logger()
	return &Client{
		http:    opts.HTTP,
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		logger:  &lg,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)),
	}
}

// Handler returns a sync handler pushing one collection's mutations to
// the remote store.
func (c *Client) Handler(collection string) worker.Handler {
	return worker.HandlerFunc(func(ctx context.Context, item *models.QueueItem) error {
		return c.apply(ctx, collection, item)
	})
}

func (c *Client) apply(ctx context.Context, collection string, item *models.QueueItem) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/collections/%s/documents/%s", c.baseURL, collection, item.DocumentID)

	var method string
	var body io.Reader
	switch item.Operation {
	case models.OpCreate, models.OpUpdate:
		// PUT is an upsert on the document id, which keeps redelivery of
		// the same item idempotent.
		method = http.MethodPut
		body = bytes.NewReader(item.PayloadJSON())
	case models.OpDelete:
		method = http.MethodDelete
	default:
		return fmt.Errorf("unknown operation %q", item.Operation)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", item.ID)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	// A delete against an already-deleted document is a success: the
	// remote state matches the intent.
	if resp.StatusCode == http.StatusNotFound && item.Operation == models.OpDelete {
		return nil
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, snippet)
	}

	c.logger.Debug().
		Str("collection", collection).
		Str("document_id", item.DocumentID).
		Str("operation", item.Operation).
		Msg("mutation applied")
	return nil
}
