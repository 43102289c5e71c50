package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/capnteebs/parlance/pkg/apperrors"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SlangFeedConfig configures the HTTP slang feed client.
type SlangFeedConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Retry         *retry.Config
}

// SlangFeed fetches per-term slang definitions from an Urban Dictionary style
// API (GET {base}/define?term=...). Requests are rate limited, retried with
// backoff and guarded by a circuit breaker.
type SlangFeed struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   *retry.Config
	logger  *zap.Logger
}

func NewSlangFeed(cfg SlangFeedConfig, logger *zap.Logger) *SlangFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "slang-feed",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A 4xx answer means the service is up.
		IsSuccessful: func(err error) bool {
			return err == nil || retry.IsPermanent(err)
		},
	})

	return &SlangFeed{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker: breaker,
		retry:   cfg.Retry,
		logger:  logger,
	}
}

// Fetch returns the raw definition records for one term. Exhausted retries
// and an open breaker are reported as a SourceError.
func (f *SlangFeed) Fetch(ctx context.Context, term string) ([]json.RawMessage, error) {
	list, err := retry.DoWithResult(ctx, f.retry, func() ([]json.RawMessage, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
		res, err := f.breaker.Execute(func() (interface{}, error) {
			return f.get(ctx, term)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, retry.Permanent(err)
		}
		if err != nil {
			f.logger.Debug("slang fetch attempt failed", zap.String("term", term), zap.Error(err))
			return nil, err
		}
		return res.([]json.RawMessage), nil
	})
	if err != nil {
		return nil, &apperrors.SourceError{Source: lexicon.SourceSlang, Err: fmt.Errorf("fetch %q: %w", term, err)}
	}
	return list, nil
}

// Download fetches every term and returns the combined records as one JSON
// array, ready for the Slang adapter.
func (f *SlangFeed) Download(ctx context.Context, terms []string) (io.Reader, error) {
	var all []json.RawMessage
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		list, err := f.Fetch(ctx, term)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("slang term fetched", zap.String("term", term), zap.Int("records", len(list)))
		all = append(all, list...)
	}
	if all == nil {
		all = []json.RawMessage{}
	}
	data, err := json.Marshal(all)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (f *SlangFeed) get(ctx context.Context, term string) ([]json.RawMessage, error) {
	u := f.baseURL + "/define?" + url.Values{"term": {term}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", "parlance")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return nil, retry.Permanent(fmt.Errorf("slang feed returned status: %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slang feed returned status: %s", resp.Status)
	}

	var body struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode slang feed response: %w", err))
	}
	return body.List, nil
}
