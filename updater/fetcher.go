package updater

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/GoCodeAlone/launcher/logging"
)

const userAgent = "launcher-updater/%s"

// Fetcher opens a remote resource. The returned reader must be closed; the
// timeout bounds the whole transfer, body included.
type Fetcher interface {
	FetchReader(ctx context.Context, url string, timeout time.Duration) (io.ReadCloser, error)
}

// HTTPFetcher fetches resources over HTTP. Establishing the response is
// retried with exponential backoff within the timeout; a body that fails
// midway is not retried.
type HTTPFetcher struct {
	Client   *http.Client
	Version  string
	Retries  uint64
	Interval time.Duration
	Logger   logging.Logger
}

// NewHTTPFetcher returns a fetcher using http.DefaultClient with two retries.
func NewHTTPFetcher(currentVersion string, logger logging.Logger) *HTTPFetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPFetcher{
		Client:   http.DefaultClient,
		Version:  currentVersion,
		Retries:  2,
		Interval: 500 * time.Millisecond,
		Logger:   logger,
	}
}

// FetchReader performs a GET on url.
func (f *HTTPFetcher) FetchReader(ctx context.Context, url string, timeout time.Duration) (io.ReadCloser, error) {
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.Interval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, f.Retries), ctx)

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header.Set("User-Agent", fmt.Sprintf(userAgent, f.Version))

		r, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to perform HTTP request: %w", err)
		}
		if r.StatusCode != http.StatusOK {
			_ = r.Body.Close()
			err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode)
			if r.StatusCode >= 400 && r.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.Logger.Warn("Fetch failed, retrying", "url", url, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, retry, notify); err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose releases the request context with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
