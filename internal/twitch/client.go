package twitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jaedolph/scct-predictions/pkg/cache"
	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// maxRefreshAttempts bounds credential refreshes across the client's lifetime
// between successful calls, so a revoked refresh token cannot loop forever.
const maxRefreshAttempts = 2

// userCacheTTL is how long a resolved broadcaster ID stays cached.
const userCacheTTL = 12 * time.Hour

// Client is a typed facade over the Twitch Helix predictions API. It owns the
// bearer credential lifecycle and per-call retry/backoff; callers see plain
// errors classified by pkg/types.
type Client struct {
	apiURL           string
	authURL          string
	clientID         string
	clientSecret     string
	broadcasterLogin string
	httpClient       *http.Client
	logger           *zap.Logger
	userCache        cache.Cache

	callTimeout    time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	maxRateWait    time.Duration

	// mu guards the credential and the outcome-ID mapping. Refresh happens
	// while holding mu so concurrent expiry observations collapse to a single
	// in-flight refresh.
	mu           sync.Mutex
	authToken    string
	refreshToken string
	tokenVersion uint64
	refreshes    int
	outcomeIDs   map[string]map[string]string // prediction ID -> label -> outcome ID
}

// Config holds Twitch client configuration.
type Config struct {
	APIURL           string
	AuthURL          string
	ClientID         string
	ClientSecret     string
	BroadcasterLogin string
	AuthToken        string
	RefreshToken     string

	CallTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxRateWait    time.Duration

	UserCache cache.Cache
	Logger    *zap.Logger
}

// New creates a new Twitch client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID cannot be empty")
	}
	if cfg.BroadcasterLogin == "" {
		return nil, fmt.Errorf("broadcaster login cannot be empty")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("auth token cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}

	return &Client{
		apiURL:           cfg.APIURL,
		authURL:          cfg.AuthURL,
		clientID:         cfg.ClientID,
		clientSecret:     cfg.ClientSecret,
		broadcasterLogin: cfg.BroadcasterLogin,
		httpClient:       &http.Client{Timeout: cfg.CallTimeout},
		logger:           cfg.Logger,
		userCache:        cfg.UserCache,
		callTimeout:      cfg.CallTimeout,
		maxAttempts:      cfg.MaxAttempts,
		retryBaseDelay:   cfg.RetryBaseDelay,
		retryMaxDelay:    cfg.RetryMaxDelay,
		maxRateWait:      cfg.MaxRateWait,
		authToken:        cfg.AuthToken,
		refreshToken:     cfg.RefreshToken,
		outcomeIDs:       make(map[string]map[string]string),
	}, nil
}

// BroadcasterID resolves the configured broadcaster login to a user ID,
// caching the result.
func (c *Client) BroadcasterID(ctx context.Context) (string, error) {
	if c.userCache != nil {
		if id, found := c.userCache.Get("user:" + c.broadcasterLogin); found {
			return id, nil
		}
	}

	var resp userResponse
	query := url.Values{"login": []string{c.broadcasterLogin}}
	err := c.withRetry(ctx, "get-users", func(callCtx context.Context) error {
		return c.do(callCtx, "get-users", http.MethodGet, "/users", query, nil, &resp, "")
	})
	if err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", &types.APIError{
			Status:  http.StatusNotFound,
			Op:      "get-users",
			Message: fmt.Sprintf("broadcaster %q not found", c.broadcasterLogin),
		}
	}

	id := resp.Data[0].ID
	if c.userCache != nil {
		c.userCache.Set("user:"+c.broadcasterLogin, id, userCacheTTL)
	}

	c.logger.Info("broadcaster-resolved",
		zap.String("login", c.broadcasterLogin),
		zap.String("broadcaster-id", id))

	return id, nil
}

// Create starts a new prediction with exactly two outcomes and returns the
// remote prediction ID. windowSeconds is the auto-lock window applied by
// Twitch.
func (c *Client) Create(ctx context.Context, title string, outcomes []string, windowSeconds int) (string, error) {
	if len(outcomes) != 2 {
		return "", &types.APIError{
			Status:  http.StatusBadRequest,
			Op:      "create",
			Message: fmt.Sprintf("predictions need exactly 2 outcomes, got %d", len(outcomes)),
		}
	}

	broadcasterID, err := c.BroadcasterID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve broadcaster: %w", err)
	}

	payload := createPredictionRequest{
		BroadcasterID:    broadcasterID,
		Title:            title,
		PredictionWindow: windowSeconds,
	}
	for _, o := range outcomes {
		payload.Outcomes = append(payload.Outcomes, outcomePayload{Title: o})
	}

	// One key for all attempts of this create, so a retried call after a
	// dropped response does not start a second prediction.
	idemKey := uuid.NewString()

	var resp predictionResponse
	err = c.withRetry(ctx, "create", func(callCtx context.Context) error {
		return c.do(callCtx, "create", http.MethodPost, "/predictions", nil, payload, &resp, idemKey)
	})
	if err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", &types.APIError{
			Status:  http.StatusBadGateway,
			Op:      "create",
			Message: "create returned no prediction",
		}
	}

	created := resp.Data[0]
	c.rememberOutcomes(created)

	c.logger.Info("prediction-created",
		zap.String("prediction-id", created.ID),
		zap.String("title", title))

	return created.ID, nil
}

// Lock closes further wagers on the prediction. Locking an already-locked
// prediction is treated as success.
func (c *Client) Lock(ctx context.Context, id string) error {
	return c.end(ctx, "lock", id, StatusLocked, "")
}

// Resolve declares the winning outcome and pays out stakes. A prediction
// already resolved with the same outcome is treated as success; resolved with
// a different outcome is a terminal error.
func (c *Client) Resolve(ctx context.Context, id, winningOutcome string) error {
	outcomeID, err := c.outcomeID(ctx, id, winningOutcome)
	if err != nil {
		return err
	}

	return c.end(ctx, "resolve", id, StatusResolved, outcomeID)
}

// Cancel voids the prediction and refunds participants.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.end(ctx, "cancel", id, StatusCanceled, "")
}

// Current fetches the broadcaster's most recent prediction from the remote
// API, for startup resync. Returns nil when none exists.
func (c *Client) Current(ctx context.Context) (*RemotePrediction, error) {
	broadcasterID, err := c.BroadcasterID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcaster: %w", err)
	}

	data, err := c.fetchPredictions(ctx, broadcasterID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	return c.toRemote(data[0]), nil
}

// end issues the PATCH that moves a prediction to targetStatus, reconciling
// "already there" responses into success so retries stay idempotent.
func (c *Client) end(ctx context.Context, op, id, targetStatus, winningOutcomeID string) error {
	broadcasterID, err := c.BroadcasterID(ctx)
	if err != nil {
		return fmt.Errorf("resolve broadcaster: %w", err)
	}

	payload := endPredictionRequest{
		BroadcasterID:    broadcasterID,
		ID:               id,
		Status:           targetStatus,
		WinningOutcomeID: winningOutcomeID,
	}

	idemKey := idempotencyKey(id, targetStatus)

	var resp predictionResponse
	err = c.withRetry(ctx, op, func(callCtx context.Context) error {
		return c.do(callCtx, op, http.MethodPatch, "/predictions", nil, payload, &resp, idemKey)
	})
	if err == nil {
		c.logger.Info("prediction-state-applied",
			zap.String("prediction-id", id),
			zap.String("status", targetStatus))
		return nil
	}

	// A 4xx can mean the remote prediction is already in the target state
	// (e.g. a retried lock after a dropped response). Reconcile against the
	// authoritative remote state before surfacing the error.
	var apiErr *types.APIError
	if asAPIError(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && !apiErr.AuthExpired() {
		reconciled, rerr := c.reconcile(ctx, broadcasterID, id, targetStatus, winningOutcomeID)
		if rerr == nil && reconciled {
			c.logger.Info("prediction-state-reconciled",
				zap.String("prediction-id", id),
				zap.String("status", targetStatus))
			return nil
		}
	}

	return err
}

// reconcile reports whether the remote prediction already matches the target
// state (and winning outcome, for resolves).
func (c *Client) reconcile(ctx context.Context, broadcasterID, id, targetStatus, winningOutcomeID string) (bool, error) {
	data, err := c.fetchPredictions(ctx, broadcasterID)
	if err != nil {
		return false, err
	}

	for _, p := range data {
		if p.ID != id {
			continue
		}
		if p.Status != targetStatus {
			// Resolving a locked prediction: LOCKED is on the way to
			// RESOLVED, not a match.
			return false, nil
		}
		if targetStatus == StatusResolved && p.WinningOutcomeID != winningOutcomeID {
			return false, nil
		}
		return true, nil
	}

	return false, nil
}

func (c *Client) fetchPredictions(ctx context.Context, broadcasterID string) ([]predictionData, error) {
	query := url.Values{
		"broadcaster_id": []string{broadcasterID},
		"first":          []string{"1"},
	}

	var resp predictionResponse
	err := c.withRetry(ctx, "get-predictions", func(callCtx context.Context) error {
		return c.do(callCtx, "get-predictions", http.MethodGet, "/predictions", query, nil, &resp, "")
	})
	if err != nil {
		return nil, err
	}

	for _, p := range resp.Data {
		c.rememberOutcomes(p)
	}

	return resp.Data, nil
}

// outcomeID maps an outcome label to its remote outcome ID, fetching the
// prediction if the mapping is not cached (e.g. after a restart).
func (c *Client) outcomeID(ctx context.Context, predictionID, label string) (string, error) {
	c.mu.Lock()
	if m, ok := c.outcomeIDs[predictionID]; ok {
		if id, ok := m[label]; ok {
			c.mu.Unlock()
			return id, nil
		}
	}
	c.mu.Unlock()

	broadcasterID, err := c.BroadcasterID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve broadcaster: %w", err)
	}

	if _, err = c.fetchPredictions(ctx, broadcasterID); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.outcomeIDs[predictionID]; ok {
		if id, ok := m[label]; ok {
			return id, nil
		}
	}

	return "", &types.APIError{
		Status:  http.StatusBadRequest,
		Op:      "resolve",
		Message: fmt.Sprintf("outcome %q not found on prediction %s", label, predictionID),
	}
}

func (c *Client) rememberOutcomes(p predictionData) {
	m := make(map[string]string, len(p.Outcomes))
	for _, o := range p.Outcomes {
		m[o.Title] = o.ID
	}

	c.mu.Lock()
	c.outcomeIDs[p.ID] = m
	c.mu.Unlock()
}

func (c *Client) toRemote(p predictionData) *RemotePrediction {
	remote := &RemotePrediction{
		ID:            p.ID,
		Title:         p.Title,
		Status:        p.Status,
		WindowSeconds: p.PredictionWindow,
		CreatedAt:     p.CreatedAt,
	}
	for _, o := range p.Outcomes {
		remote.OutcomeLabels = append(remote.OutcomeLabels, o.Title)
		if o.ID == p.WinningOutcomeID {
			remote.WinningOutcome = o.Title
		}
	}

	return remote
}

// withRetry runs fn with exponential backoff for transient failures and a
// single transparent refresh-and-retry on credential expiry.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := c.retryBaseDelay
	authRetried := false

	for attempt := 1; ; attempt++ {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := fn(callCtx)
		cancel()
		CallDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())

		if err == nil {
			CallsTotal.WithLabelValues(op, "ok").Inc()
			c.resetRefreshBudget()
			return nil
		}

		if types.IsAuthExpired(err) {
			if authRetried {
				// Second expiry on the retried call: surface as terminal.
				CallsTotal.WithLabelValues(op, "auth-expired").Inc()
				return err
			}
			authRetried = true

			refreshErr := c.refreshAuth(ctx)
			if refreshErr != nil {
				CallsTotal.WithLabelValues(op, "auth-expired").Inc()
				return fmt.Errorf("refresh credential: %w", refreshErr)
			}
			// Retry the same call exactly once, without consuming a
			// transient-retry attempt.
			continue
		}

		if !types.IsTransient(err) {
			CallsTotal.WithLabelValues(op, "terminal").Inc()
			return err
		}

		if attempt >= c.maxAttempts {
			CallsTotal.WithLabelValues(op, "exhausted").Inc()
			return fmt.Errorf("%s: attempts exhausted: %w", op, err)
		}

		wait := delay
		var apiErr *types.APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
			RateLimitWaitsTotal.Inc()
			if apiErr.RetryAfter > c.maxRateWait {
				// Bounded wait exceeded: report upward as transient failure.
				CallsTotal.WithLabelValues(op, "rate-limited").Inc()
				return err
			}
			if apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
		}

		CallRetriesTotal.WithLabelValues(op).Inc()
		c.logger.Warn("remote-call-retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > c.retryMaxDelay {
			delay = c.retryMaxDelay
		}
	}
}

// refreshAuth exchanges the refresh token for a new bearer credential. The
// mutex is held across the HTTP call so concurrent expiry observations
// collapse into one refresh; latecomers see the bumped version and return.
func (c *Client) refreshAuth(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshToken == "" {
		return fmt.Errorf("no refresh token configured")
	}
	if c.refreshes >= maxRefreshAttempts {
		return fmt.Errorf("refresh attempts exhausted (credential may be revoked)")
	}
	c.refreshes++

	form := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{c.refreshToken},
		"client_id":     []string{c.clientID},
		"client_secret": []string{c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
	}

	var refreshed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return fmt.Errorf("parse refresh response: %w", err)
	}
	if refreshed.AccessToken == "" {
		return fmt.Errorf("refresh returned empty access token")
	}

	c.authToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		c.refreshToken = refreshed.RefreshToken
	}
	c.tokenVersion++
	AuthRefreshesTotal.Inc()

	c.logger.Info("credential-refreshed", zap.Uint64("token-version", c.tokenVersion))

	return nil
}

// resetRefreshBudget restores the refresh bound after a successful call, so
// the cap only trips on consecutive refresh failures.
func (c *Client) resetRefreshBudget() {
	c.mu.Lock()
	c.refreshes = 0
	c.mu.Unlock()
}

// do performs a single HTTP call against the Helix API.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}, idemKey string) error {
	reqURL := c.apiURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.mu.Lock()
	token := c.authToken
	c.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &types.APIError{
			Status: resp.StatusCode,
			Op:     op,
		}

		var errBody apiErrorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			apiErr.Code = errBody.Error
			apiErr.Message = errBody.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.RetryAfter = rateLimitWait(resp.Header.Get("Ratelimit-Reset"))
		}

		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: parse response: %w", op, err)
		}
	}

	return nil
}

// idempotencyKey derives a stable key from (prediction id, target state) so a
// retried call after a dropped response has the same effect as its first
// delivery.
func idempotencyKey(predictionID, targetStatus string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(predictionID+":"+targetStatus)).String()
}

// rateLimitWait converts a Ratelimit-Reset header (unix seconds) into a wait
// duration.
func rateLimitWait(header string) time.Duration {
	if header == "" {
		return 0
	}

	reset, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0
	}

	wait := time.Until(time.Unix(reset, 0))
	if wait < 0 {
		return 0
	}

	return wait
}

func asAPIError(err error, target **types.APIError) bool {
	return errors.As(err, target)
}
