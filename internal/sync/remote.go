// Remote progress client. The remote copy can change independently and
// concurrently with local activity, so callers always run its payloads
// through the merge engine rather than trusting them outright.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/retry"
)

// RemoteStore is the remote authoritative copy of per-account review
// progress. Fetch returns (nil, nil) when no record exists; absence is
// a soft outcome, never an error.
type RemoteStore interface {
	Fetch(ctx context.Context, account string) (*models.ProgressPayload, error)
	Push(ctx context.Context, account string, payload *models.ProgressPayload) error
}

// HTTPRemote talks to the reconciliation service over HTTP. Requests
// use the bounded retry policy; only transient network failures are
// retried.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
	retry   retry.Config
	log     *logging.Logger
}

// NewHTTPRemote creates an HTTPRemote for the service at baseURL.
func NewHTTPRemote(baseURL string, log *logging.Logger) *HTTPRemote {
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPRemote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.DefaultConfig(),
		log:     log,
	}
}

// WithRetryConfig overrides the retry policy.
func (r *HTTPRemote) WithRetryConfig(cfg retry.Config) *HTTPRemote {
	r.retry = cfg
	return r
}

func (r *HTTPRemote) progressURL(account string) string {
	return r.baseURL + "/progress/" + url.PathEscape(account)
}

// Fetch downloads the progress payload for an account. 404 and 410 mean
// the record is absent or expired and yield (nil, nil).
func (r *HTTPRemote) Fetch(ctx context.Context, account string) (*models.ProgressPayload, error) {
	endpoint := r.progressURL(account)

	var payload *models.ProgressPayload
	err := retry.Do(ctx, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return apperrors.Network(0, endpoint, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			payload = nil
			return nil
		case resp.StatusCode != http.StatusOK:
			return apperrors.Network(resp.StatusCode, endpoint, nil)
		}

		var p models.ProgressPayload
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "failed to decode progress payload", err)
		}
		payload = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Push uploads the progress payload for an account.
func (r *HTTPRemote) Push(ctx context.Context, account string, payload *models.ProgressPayload) error {
	endpoint := r.progressURL(account)

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode progress payload", err)
	}

	return retry.Do(ctx, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return apperrors.Network(0, endpoint, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
			return nil
		}
		return apperrors.Network(resp.StatusCode, endpoint, nil)
	})
}
