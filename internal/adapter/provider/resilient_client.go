package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
)

// ResilientClient wraps an HTTP client with circuit breaker and retry logic.
// It only issues body-less GET requests, so attempts can be replayed freely.
type ResilientClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  ResilientClientConfig
}

// ResilientClientConfig holds configuration for the resilient client
type ResilientClientConfig struct {
	// Circuit breaker settings
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	// Retry settings
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultResilientClientConfig returns default configuration values
func DefaultResilientClientConfig() ResilientClientConfig {
	return ResilientClientConfig{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

// NewResilientClient creates a new resilient HTTP client
func NewResilientClient(timeout time.Duration, config ResilientClientConfig, logger *zap.SugaredLogger) *ResilientClient {
	client := &http.Client{
		Timeout: timeout,
	}

	var breaker *gobreaker.CircuitBreaker
	if config.EnableCircuitBreaker {
		settings := gobreaker.Settings{
			Name:        "tld-registry",
			MaxRequests: 1,
			Interval:    0, // Don't reset counts automatically
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warnw("circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
				if to == gobreaker.StateOpen {
					metrics.RecordTLDFetchError("circuit_open")
				}
			},
		}
		breaker = gobreaker.NewCircuitBreaker(settings)
	}

	return &ResilientClient{
		client:  client,
		breaker: breaker,
		config:  config,
	}
}

// Get fetches url. On success the caller owns the response body.
func (c *ResilientClient) Get(ctx context.Context, url string) (*http.Response, error) {
	// If circuit breaker is disabled, just do the request with retry
	if c.breaker == nil {
		return c.getWithRetry(ctx, url)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, url)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.RecordTLDFetchError("circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

// getWithRetry executes a GET with exponential backoff retry logic
func (c *ResilientClient) getWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0 // No max elapsed time, only max retries

	maxRetries := c.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBackoff := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(maxRetries)), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}

		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			metrics.RecordTLDFetchError("connection")
			if shouldRetry(err, nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if shouldRetry(nil, resp) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			recordErrorFromResponse(resp)
			resp.Body.Close()
			return lastErr
		}

		if resp.StatusCode >= 400 {
			recordErrorFromResponse(resp)
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			resp.Body.Close()
			return backoff.Permanent(lastErr) // Don't retry 4xx
		}

		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

// shouldRetry determines if an error or response should trigger a retry
func shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		msg := err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF") ||
			strings.Contains(msg, "Client.Timeout")
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusBadGateway,
			http.StatusInternalServerError:
			return true
		}
	}

	return false
}

// recordErrorFromResponse records the appropriate error metric based on response status
func recordErrorFromResponse(resp *http.Response) {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		metrics.RecordTLDFetchError("rate_limit")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		metrics.RecordTLDFetchError("server_error")
	default:
		metrics.RecordTLDFetchError("http_error")
	}
}
