// Package walrus uploads blobs to Walrus decentralized storage over
// the publisher HTTP API.
//
// Walrus is content-addressed: identical bytes always map to the same
// blob id, so retrying an upload can never create a duplicate logical
// artifact. The retry loop here is therefore safe under at-least-once
// processing; the only cost of a repeat is replica overhead on the
// store side.
package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cardforge/cardforge/internal/log"
)

// Class is the retry classification of an upload error.
type Class int

const (
	// ClassRetryable errors are retried within the attempt budget.
	ClassRetryable Class = iota

	// ClassRetryableReset errors are retried after discarding and
	// recreating the underlying HTTP client.
	ClassRetryableReset

	// ClassTerminal errors abort the upload immediately.
	ClassTerminal
)

// Classifier decides how an upload error is handled. Injecting it
// keeps the retry loop reusable across storage backends.
type Classifier func(error) Class

// DefaultClassifier resets the client on transport-level faults
// (connection state may be poisoned) and retries everything else.
// It never classifies an error as terminal: the attempt budget is
// the only terminal condition, matching the publisher's behavior of
// intermittently failing on blobs it later accepts.
func DefaultClassifier(err error) Class {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassRetryableReset
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryableReset
	}
	return ClassRetryable
}

// StatusError is a non-2xx response from the publisher.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("walrus publisher returned status %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyBlob indicates an upload of zero bytes was requested.
var ErrEmptyBlob = errors.New("empty blob")

// StoreOptions configures one upload.
type StoreOptions struct {
	// Epochs is how many storage epochs the blob is paid for.
	Epochs int

	// Deletable marks the blob as deletable by its owner. The
	// pipeline always stores permanent (non-deletable) blobs.
	Deletable bool
}

// StoreResult is the outcome of a successful upload.
type StoreResult struct {
	// BlobID is the content-derived identifier.
	BlobID string

	// ObjectID is the Sui object id of the blob registration, or the
	// certifying transaction digest when the blob already existed.
	ObjectID string

	// AlreadyCertified reports whether the store already held these
	// bytes (same content id, no new registration).
	AlreadyCertified bool
}

// Config configures a Client.
type Config struct {
	PublisherURL  string
	AggregatorURL string

	// MaxAttempts bounds upload attempts. Default 3.
	MaxAttempts int

	// BackoffUnit scales the linear backoff: the wait before attempt
	// k+1 is k*BackoffUnit. Default 5s.
	BackoffUnit time.Duration

	// Classify overrides DefaultClassifier.
	Classify Classifier

	Logger log.Logger
}

// Client uploads blobs with bounded linear-backoff retry. It is safe
// for concurrent use: the HTTP client handle may be replaced by a
// reset mid-retry, so reads and replacements go through mu.
type Client struct {
	publisherURL  string
	aggregatorURL string
	maxAttempts   int
	backoffUnit   time.Duration
	classify      Classifier
	logger        log.Logger

	mu            sync.Mutex
	httpClient    *http.Client
	newHTTPClient func() *http.Client
	sleep         func(context.Context, time.Duration) error
}

// New creates a Walrus client.
func New(cfg Config) (*Client, error) {
	if cfg.PublisherURL == "" || cfg.AggregatorURL == "" {
		return nil, fmt.Errorf("publisher and aggregator URLs are required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.BackoffUnit == 0 {
		cfg.BackoffUnit = 5 * time.Second
	}
	if cfg.Classify == nil {
		cfg.Classify = DefaultClassifier
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	newClient := func() *http.Client { return &http.Client{} }
	return &Client{
		publisherURL:  cfg.PublisherURL,
		aggregatorURL: cfg.AggregatorURL,
		maxAttempts:   cfg.MaxAttempts,
		backoffUnit:   cfg.BackoffUnit,
		classify:      cfg.Classify,
		logger:        cfg.Logger,
		httpClient:    newClient(),
		newHTTPClient: newClient,
		sleep:         sleepCtx,
	}, nil
}

// currentHTTPClient returns the handle in use. Concurrent Store calls
// share it until a reset swaps it out.
func (c *Client) currentHTTPClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

func (c *Client) resetHTTPClient() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = c.newHTTPClient()
}

// URL returns the resolvable aggregator read URL for a blob id.
func (c *Client) URL(blobID string) string {
	return c.aggregatorURL + "/v1/blobs/" + blobID
}

// Store uploads blob and returns its content id. At most MaxAttempts
// network calls are made, with a wait of attempt*BackoffUnit between
// consecutive attempts and none after the last.
func (c *Client) Store(ctx context.Context, blob []byte, opts StoreOptions) (*StoreResult, error) {
	if len(blob) == 0 {
		return nil, ErrEmptyBlob
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, err := c.put(ctx, blob, opts)
		if err == nil {
			c.logger.Info("blob stored",
				"blob_id", result.BlobID,
				"bytes", len(blob),
				"attempt", attempt,
				"already_certified", result.AlreadyCertified)
			return result, nil
		}
		lastErr = err

		switch c.classify(err) {
		case ClassTerminal:
			return nil, fmt.Errorf("storing blob: %w", err)
		case ClassRetryableReset:
			c.logger.Warn("retryable storage fault, resetting client",
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"error", err)
			c.resetHTTPClient()
		default:
			c.logger.Warn("blob upload attempt failed",
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"error", err)
		}

		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, time.Duration(attempt)*c.backoffUnit); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("storing blob failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// put performs a single PUT /v1/blobs call.
func (c *Client) put(ctx context.Context, blob []byte, opts StoreOptions) (*StoreResult, error) {
	endpoint := c.publisherURL + "/v1/blobs?epochs=" + strconv.Itoa(opts.Epochs)
	if opts.Deletable {
		endpoint += "&deletable=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.currentHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parseStoreResponse(body)
}

// parseStoreResponse handles the two success shapes the publisher
// returns: newlyCreated for fresh content and alreadyCertified when
// the same bytes were stored before.
func parseStoreResponse(body []byte) (*StoreResult, error) {
	var info struct {
		NewlyCreated *struct {
			BlobObject struct {
				ID     string `json:"id"`
				BlobID string `json:"blobId"`
			} `json:"blobObject"`
		} `json:"newlyCreated"`
		AlreadyCertified *struct {
			BlobID string `json:"blobId"`
			Event  struct {
				TxDigest string `json:"txDigest"`
			} `json:"event"`
		} `json:"alreadyCertified"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("unmarshaling upload response: %w", err)
	}

	switch {
	case info.NewlyCreated != nil:
		return &StoreResult{
			BlobID:   info.NewlyCreated.BlobObject.BlobID,
			ObjectID: info.NewlyCreated.BlobObject.ID,
		}, nil
	case info.AlreadyCertified != nil:
		return &StoreResult{
			BlobID:           info.AlreadyCertified.BlobID,
			ObjectID:         info.AlreadyCertified.Event.TxDigest,
			AlreadyCertified: true,
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized publisher response: %s", body)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
