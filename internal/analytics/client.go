package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fleet-insights/internal/common/auth"
	"fleet-insights/internal/common/errors"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/common/observability"
	"fleet-insights/internal/models"
)

// Config holds protocol-level settings. The defaults are behavioral
// contracts, not tuning suggestions.
type Config struct {
	CreateAttempts   int
	CreateRetryDelay time.Duration
	Poll             PollOptions
}

func DefaultConfig() Config {
	return Config{
		CreateAttempts:   3,
		CreateRetryDelay: 3 * time.Second,
		Poll:             DefaultPollOptions(),
	}
}

// Client executes one natural-language question end-to-end against the
// remote analytics service: create a session, submit the question, poll to
// completion, normalize the result. Stateless across calls.
type Client struct {
	cfg    Config
	caller Caller
	creds  auth.Provider
	poller *Poller
	logger logger.Logger
	obs    *observability.Observability

	// The remote session model does not reliably tolerate concurrent
	// chats, so at most one query is in flight at a time.
	gate chan struct{}
}

func NewClient(cfg Config, caller Caller, creds auth.Provider, log logger.Logger, obs *observability.Observability) *Client {
	if cfg.CreateAttempts == 0 {
		cfg.CreateAttempts = DefaultConfig().CreateAttempts
	}
	if cfg.CreateRetryDelay == 0 {
		cfg.CreateRetryDelay = DefaultConfig().CreateRetryDelay
	}
	return &Client{
		cfg:    cfg,
		caller: caller,
		creds:  creds,
		poller: NewPoller(caller, cfg.Poll, log),
		logger: log.WithFields(map[string]interface{}{"component": "analytics-client"}),
		obs:    obs,
		gate:   make(chan struct{}, 1),
	}
}

// Query runs one question to completion and returns a fresh Insight. All
// failures are returned as errors, never as a disguised partial success.
func (c *Client) Query(ctx context.Context, question string) (*models.Insight, error) {
	select {
	case c.gate <- struct{}{}:
		defer func() { <-c.gate }()
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "query canceled while waiting for the in-flight query", ctx.Err())
	}

	start := time.Now()
	status := "success"
	defer func() {
		if c.obs != nil {
			c.obs.RecordQueryProcessed(ctx, status)
			c.obs.RecordQueryDuration(ctx, time.Since(start), status)
		}
	}()

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		status = "auth_error"
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to obtain credentials", err)
	}

	chatID, err := c.createSession(ctx, creds)
	if err != nil {
		status = "session_error"
		return nil, err
	}

	submissionID, err := c.submitPrompt(ctx, creds, chatID, question)
	if err != nil {
		status = "submit_error"
		return nil, err
	}

	c.logger.Info("question submitted", map[string]interface{}{
		"chatId":       chatID,
		"submissionId": submissionID,
	})

	payload, err := c.poller.PollUntilDone(ctx, creds, chatID, submissionID)
	if err != nil {
		status = "poll_error"
		return nil, err
	}

	columns := payload.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := payload.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}

	return &models.Insight{
		ID:            uuid.NewString(),
		Question:      question,
		Columns:       columns,
		Rows:          rows,
		Reasoning:     payload.Reasoning,
		QueriedAt:     time.Now().UTC(),
		TotalRowCount: payload.TotalRowCount,
		DownloadURL:   payload.DownloadURL,
	}, nil
}

// createSession invokes the remote create operation. A structurally
// successful response without a chat id counts as a failed attempt just like
// a transport error; 3 attempts with a fixed delay between them.
func (c *Client) createSession(ctx context.Context, creds auth.Credentials) (string, error) {
	var lastErr error
	softFailure := false

	for attempt := 1; attempt <= c.cfg.CreateAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.cfg.CreateRetryDelay); err != nil {
				return "", errors.Wrap(errors.ErrCodeSessionCreateFailed, "session creation canceled", err)
			}
		}

		results, err := c.caller.Call(ctx, fnCreateChat, nil, creds)
		if err != nil {
			lastErr = err
			softFailure = false
			c.logger.Warn("session creation attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		if len(results) == 0 {
			lastErr = errors.New(errors.ErrCodeEmptyResponse, "create returned an empty results list")
			softFailure = true
			continue
		}

		if chatID, ok := asString(results[0]["chat_id"]); ok && chatID != "" {
			return chatID, nil
		}

		lastErr = errors.New(errors.ErrCodeSessionCreateFailed, "create response did not contain a chat id")
		softFailure = true
		c.logger.Warn("create response missing chat id", map[string]interface{}{"attempt": attempt})
	}

	if softFailure {
		return "", errors.Wrap(errors.ErrCodeSessionCreateFailed,
			"no session id returned after all attempts", lastErr)
	}
	return "", errors.Wrap(errors.ErrCodeSessionCreateFailed,
		"session creation failed after all attempts", lastErr)
}

// submitPrompt sends the question into the session. The message group id may
// appear top-level or nested under message_group; both are checked in that
// order, an intentional compatibility with the remote's two response shapes.
func (c *Client) submitPrompt(ctx context.Context, creds auth.Credentials, chatID, question string) (string, error) {
	results, err := c.caller.Call(ctx, fnSubmit, map[string]interface{}{
		"chat_id": chatID,
		"content": question,
	}, creds)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "", errors.New(errors.ErrCodeEmptyResponse, "submit returned an empty results list")
	}

	first := results[0]
	if id, ok := asString(first["message_group_id"]); ok && id != "" {
		return id, nil
	}
	if group, ok := first["message_group"].(map[string]interface{}); ok {
		if id, ok := asString(group["id"]); ok && id != "" {
			return id, nil
		}
	}

	return "", errors.New(errors.ErrCodeSubmitFailed, "submit response did not contain a message group id")
}

// asString accepts the two encodings the remote uses for opaque handles.
func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10), true
		}
	}
	return "", false
}
