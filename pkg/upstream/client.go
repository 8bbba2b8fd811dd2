package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/goalsync/core/internal/config"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
)

// Client fetches snapshots of upstream resources. All fetches go through
// a shared rate limiter and a circuit breaker; transient failures (429,
// 5xx, network errors) are retried with exponential backoff, honoring
// the upstream Retry-After hint when present.
type Client struct {
	baseURL    string
	client     *http.Client
	limiter    *RateLimiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logger     *logger.Logger
}

// NewClient creates an upstream client from configuration.
func NewClient(cfg *config.Config) *Client {
	log := logger.New("upstream-client")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("action", "breaker_state_change").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: cfg.Upstream.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.Upstream.Timeout) * time.Second,
		},
		limiter:    NewRateLimiter(cfg.Upstream.RequestsPerMin),
		breaker:    breaker,
		maxRetries: cfg.Upstream.MaxRetries,
		logger:     log,
	}
}

// GetBootstrap fetches the bootstrap-static resource. The raw bytes are
// returned alongside the parsed snapshot so the sync engine can diff
// against the cached copy without re-marshalling.
func (c *Client) GetBootstrap(ctx context.Context) (*models.BootstrapSnapshot, []byte, error) {
	data, err := c.fetchWithRetry(ctx, "/bootstrap-static/")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch bootstrap: %w", err)
	}

	var snapshot models.BootstrapSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil, fmt.Errorf("failed to decode bootstrap response: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid bootstrap snapshot: %w", err)
	}

	return &snapshot, data, nil
}

// GetFixtures fetches the full fixtures resource.
func (c *Client) GetFixtures(ctx context.Context) (*models.FixturesSnapshot, []byte, error) {
	data, err := c.fetchWithRetry(ctx, "/fixtures/")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}

	var fixtures []models.FixtureSnapshot
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, nil, fmt.Errorf("failed to decode fixtures response: %w", err)
	}

	snapshot := &models.FixturesSnapshot{Fixtures: fixtures}
	if err := snapshot.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid fixtures snapshot: %w", err)
	}

	return snapshot, data, nil
}

// GetLiveGameweek fetches the live per-player stats for one gameweek.
func (c *Client) GetLiveGameweek(ctx context.Context, gameweekID int) (*models.LiveGameweekSnapshot, []byte, error) {
	data, err := c.fetchWithRetry(ctx, fmt.Sprintf("/event/%d/live/", gameweekID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch live gameweek %d: %w", gameweekID, err)
	}

	var snapshot models.LiveGameweekSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil, fmt.Errorf("failed to decode live gameweek response: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid live gameweek snapshot: %w", err)
	}

	return &snapshot, data, nil
}

// GetPlayerDetail fetches the per-player element summary.
func (c *Client) GetPlayerDetail(ctx context.Context, playerID int) (*models.PlayerDetailSnapshot, []byte, error) {
	data, err := c.fetchWithRetry(ctx, fmt.Sprintf("/element-summary/%d/", playerID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch player detail %d: %w", playerID, err)
	}

	var snapshot models.PlayerDetailSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil, fmt.Errorf("failed to decode player detail response: %w", err)
	}

	return &snapshot, data, nil
}

// fetch performs a single rate-limited, breaker-guarded request.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, path)
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.LogAPICall(http.MethodGet, url, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.LogAPICall(http.MethodGet, url, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Message:    "request limit exceeded",
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API returned status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// fetchWithRetry retries transient failures with exponential backoff and
// jitter, deferring to the upstream Retry-After hint when it is longer.
func (c *Client) fetchWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, err := c.fetch(ctx, path)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// An open breaker means the upstream is already known bad;
		// retrying inside this call would just burn the budget.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}

		if !IsTransient(err) {
			return nil, err
		}

		if attempt == c.maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		var rle *RateLimitError
		if errors.As(err, &rle) && rle.RetryAfter != "" {
			if seconds, parseErr := strconv.Atoi(rle.RetryAfter); parseErr == nil {
				hinted := time.Duration(seconds) * time.Second
				if hinted > delay {
					delay = hinted
				}
			}
		}

		c.logger.Warn().
			Err(err).
			Str("action", "fetch_retry").
			Str("path", path).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying upstream fetch after transient failure")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// backoffDelay computes exponential backoff with ±25% jitter.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s...
	if base > 60*time.Second {
		base = 60 * time.Second
	}

	jitterFactor := float64(time.Now().UnixNano()%1000) / 1000.0 // 0.0 to 1.0
	jitter := time.Duration(float64(base) * 0.25 * (2*jitterFactor - 1))
	return base + jitter
}
