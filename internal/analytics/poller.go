package analytics

import (
	"context"
	"time"

	"fleet-insights/internal/common/auth"
	"fleet-insights/internal/common/errors"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/common/metrics"
	"fleet-insights/internal/models"
)

// PollOptions controls the polling cadence. The defaults are a behavioral
// contract: completion times cluster in a 30-90s band, so a constant 5s
// cadence after an 8s warm-up beats adaptive backoff here.
type PollOptions struct {
	FirstDelay  time.Duration
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPollOptions() PollOptions {
	return PollOptions{
		FirstDelay:  8 * time.Second,
		Interval:    5 * time.Second,
		MaxAttempts: 30,
	}
}

// Poller drives a submission to a terminal status.
type Poller struct {
	caller Caller
	opts   PollOptions
	logger logger.Logger
}

func NewPoller(caller Caller, opts PollOptions, log logger.Logger) *Poller {
	if opts.FirstDelay == 0 {
		opts.FirstDelay = DefaultPollOptions().FirstDelay
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultPollOptions().Interval
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultPollOptions().MaxAttempts
	}
	return &Poller{
		caller: caller,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "poller"}),
	}
}

// PollUntilDone polls the submission until DONE and returns its assembled
// payload. FAILED and ERROR are terminal and never retried.
func (p *Poller) PollUntilDone(ctx context.Context, creds auth.Credentials, chatID, submissionID string) (*models.ResultPayload, error) {
	// The service needs startup time; polling immediately wastes a cycle.
	if err := sleepCtx(ctx, p.opts.FirstDelay); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "poll canceled", err)
	}

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		results, err := p.caller.Call(ctx, fnStatus, map[string]interface{}{
			"chat_id":          chatID,
			"message_group_id": submissionID,
		}, creds)
		if err != nil {
			return nil, err
		}

		if len(results) == 0 {
			if attempt == p.opts.MaxAttempts {
				return nil, errors.Newf(errors.ErrCodeEmptyResponse, "empty result after %d status polls", p.opts.MaxAttempts)
			}
			if err := sleepCtx(ctx, p.opts.Interval); err != nil {
				return nil, errors.Wrap(errors.ErrCodeTransportFailed, "poll canceled", err)
			}
			continue
		}

		first := results[0]
		status := resolveStatus(first)

		p.logger.Debug("poll attempt", map[string]interface{}{
			"attempt":      attempt,
			"status":       string(status),
			"submissionId": submissionID,
		})

		switch status {
		case models.StatusDone:
			metrics.PollAttempts.Observe(float64(attempt))
			return assemblePayload(first), nil
		case models.StatusFailed, models.StatusError:
			metrics.PollAttempts.Observe(float64(attempt))
			return nil, errors.Newf(errors.ErrCodeQueryFailed, "submission %s ended with status %s", submissionID, status)
		}

		if attempt < p.opts.MaxAttempts {
			if err := sleepCtx(ctx, p.opts.Interval); err != nil {
				return nil, errors.Wrap(errors.ErrCodeTransportFailed, "poll canceled", err)
			}
		}
	}

	elapsed := p.opts.FirstDelay + time.Duration(p.opts.MaxAttempts-1)*p.opts.Interval
	return nil, errors.Newf(errors.ErrCodePollTimeout, "submission %s still in progress after ~%s (%d polls)", submissionID, elapsed, p.opts.MaxAttempts)
}

// resolveStatus descends result.message_group.status.status. Any missing
// level means the submission is merely incomplete, never an error.
func resolveStatus(result map[string]interface{}) models.PollStatus {
	group, ok := result["message_group"].(map[string]interface{})
	if !ok {
		return models.StatusInProgress
	}
	statusObj, ok := group["status"].(map[string]interface{})
	if !ok {
		return models.StatusInProgress
	}
	raw, ok := statusObj["status"].(string)
	if !ok {
		return models.StatusInProgress
	}
	switch models.PollStatus(raw) {
	case models.StatusDone, models.StatusFailed, models.StatusError:
		return models.PollStatus(raw)
	default:
		return models.StatusInProgress
	}
}

// sleepCtx suspends without occupying a worker, honoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
