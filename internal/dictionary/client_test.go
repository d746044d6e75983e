package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/retry"
)

const lookupBody = `[
  {
    "word": "serendipity",
    "phonetic": "/ˌsɛɹ.ənˈdɪp.ɪ.ti/",
    "phonetics": [
      {"text": "/ˌsɛɹ.ənˈdɪp.ɪ.ti/", "audio": "https://cdn.example.com/serendipity.mp3"}
    ],
    "meanings": [
      {
        "partOfSpeech": "noun",
        "definitions": [
          {"definition": "An unsought, unintended, fortunate discovery."},
          {"definition": "The faculty of making such discoveries."}
        ]
      }
    ]
  }
]`

func fastRetry() retry.Config {
	return retry.Config{Attempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
}

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/serendipity" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(lookupBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil).WithRetryConfig(fastRetry())
	entry, err := client.Lookup(context.Background(), "serendipity")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(entry.Definitions) != 2 {
		t.Errorf("definitions = %d, want 2", len(entry.Definitions))
	}
	if entry.Phonetic != "/ˌsɛɹ.ənˈdɪp.ɪ.ti/" {
		t.Errorf("phonetic = %q", entry.Phonetic)
	}
	if entry.AudioURL != "https://cdn.example.com/serendipity.mp3" {
		t.Errorf("audioURL = %q", entry.AudioURL)
	}
}

func TestLookupUnknownWordIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil).WithRetryConfig(fastRetry())
	_, err := client.Lookup(context.Background(), "zzyzx")
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestLookupRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(lookupBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil).WithRetryConfig(fastRetry())
	if _, err := client.Lookup(context.Background(), "serendipity"); err != nil {
		t.Fatalf("Lookup should recover after a retry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFlattenEmptyResponse(t *testing.T) {
	entry := flatten(lookupResponse{})
	if len(entry.Definitions) != 0 || entry.Phonetic != "" || entry.AudioURL != "" {
		t.Errorf("entry = %+v", entry)
	}
}
