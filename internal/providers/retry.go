package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig bounds the retry loop around a Provider
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// Retrying wraps a Provider with per-attempt timeouts and bounded retries
// of transient failures. Permanent failures are returned at once.
type Retrying struct {
	provider Provider
	cfg      RetryConfig
	logger   *logrus.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrying creates a retrying provider
func NewRetrying(provider Provider, cfg RetryConfig, logger *logrus.Logger) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Retrying{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Name returns the wrapped provider name
func (r *Retrying) Name() string {
	return r.provider.Name()
}

// Complete calls the wrapped provider until it succeeds, fails permanently or
// the attempt budget is spent. The last error is returned.
func (r *Retrying) Complete(ctx context.Context, prompt, model string) (string, error) {
	backoff := r.cfg.Backoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		text, err := r.attempt(ctx, prompt, model)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsTransient(err) || ctx.Err() != nil || attempt == r.cfg.MaxAttempts {
			break
		}

		r.logger.WithError(err).WithFields(logrus.Fields{
			"provider": r.provider.Name(),
			"attempt":  attempt,
			"backoff":  backoff,
		}).Warn("Transient provider failure, retrying")

		if err := r.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return "", lastErr
}

func (r *Retrying) attempt(ctx context.Context, prompt, model string) (string, error) {
	attemptCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	text, err := r.provider.Complete(attemptCtx, prompt, model)
	if err == nil {
		return text, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		// Unclassified errors are treated as network failures
		return "", NewTransientError(r.provider.Name(), err)
	}
	return "", err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
