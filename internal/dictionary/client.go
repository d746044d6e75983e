// Package dictionary looks up word definitions from a lookup service.
// The client is only used to populate newly collected items; scheduling
// and merge logic never depend on it.
package dictionary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/retry"
)

// Entry is a dictionary lookup result.
type Entry struct {
	Definitions []string
	Phonetic    string
	AudioURL    string
}

// Client queries a dictionaryapi.dev-compatible lookup service.
type Client struct {
	baseURL string
	client  *http.Client
	retry   retry.Config
	log     *logging.Logger
}

// NewClient creates a Client for the lookup service at baseURL, e.g.
// "https://api.dictionaryapi.dev/api/v2/entries/en".
func NewClient(baseURL string, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   retry.DefaultConfig(),
		log:     log,
	}
}

// WithRetryConfig overrides the retry policy.
func (c *Client) WithRetryConfig(cfg retry.Config) *Client {
	c.retry = cfg
	return c
}

// lookupResponse mirrors the dictionaryapi.dev response shape.
type lookupResponse []struct {
	Phonetic  string `json:"phonetic"`
	Phonetics []struct {
		Text  string `json:"text"`
		Audio string `json:"audio"`
	} `json:"phonetics"`
	Meanings []struct {
		Definitions []struct {
			Definition string `json:"definition"`
		} `json:"definitions"`
	} `json:"meanings"`
}

// Lookup fetches definitions for a word. A word unknown to the service
// yields NOT_FOUND, which is never retried; transient failures are
// retried per the bounded policy.
func (c *Client) Lookup(ctx context.Context, word string) (*Entry, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(word)

	var entry *Entry
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return apperrors.Network(0, endpoint, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return apperrors.Newf(apperrors.ErrNotFound, "no definitions for %q", word)
		case resp.StatusCode != http.StatusOK:
			return apperrors.Network(resp.StatusCode, endpoint, nil)
		}

		var decoded lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "failed to decode lookup response", err)
		}
		entry = flatten(decoded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// flatten collapses the service's nested response into an Entry.
func flatten(decoded lookupResponse) *Entry {
	entry := &Entry{}
	for _, result := range decoded {
		if entry.Phonetic == "" {
			entry.Phonetic = result.Phonetic
		}
		for _, p := range result.Phonetics {
			if entry.Phonetic == "" {
				entry.Phonetic = p.Text
			}
			if entry.AudioURL == "" && p.Audio != "" {
				entry.AudioURL = p.Audio
			}
		}
		for _, meaning := range result.Meanings {
			for _, def := range meaning.Definitions {
				if def.Definition != "" {
					entry.Definitions = append(entry.Definitions, def.Definition)
				}
			}
		}
	}
	return entry
}
