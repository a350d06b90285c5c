package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/repository"
)

// InactivityReaper periodically clears summaries of idle systems
type InactivityReaper struct {
	manager   *SessionManager
	store     repository.SummaryRepository
	threshold time.Duration
	interval  time.Duration
	logger    *logrus.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewInactivityReaper creates a reaper. Start must be called to run it.
func NewInactivityReaper(manager *SessionManager, store repository.SummaryRepository, threshold, interval time.Duration, logger *logrus.Logger) *InactivityReaper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InactivityReaper{
		manager:   manager,
		store:     store,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the scan loop in the background until Stop is called or ctx
// is cancelled
func (r *InactivityReaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopChan != nil {
		return
	}
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})

	go r.run(ctx, r.stopChan, r.done)
}

func (r *InactivityReaper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithFields(logrus.Fields{
		"threshold": r.threshold,
		"interval":  r.interval,
	}).Info("Inactivity reaper started")

	for {
		select {
		case <-ticker.C:
			if _, err := r.ScanOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).Error("Inactivity scan failed")
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the scan loop and waits for a running scan to finish
func (r *InactivityReaper) Stop() {
	r.mu.Lock()
	stop, done := r.stopChan, r.done
	r.stopChan = nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	r.logger.Info("Inactivity reaper stopped")
}

// ScanOnce clears every system idle for longer than the threshold and
// returns the keys it cleared. Systems busy with an update are left for the
// next scan.
func (r *InactivityReaper) ScanOnce(ctx context.Context) ([]string, error) {
	states, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := r.manager.now()
	var cleared []string
	for _, s := range states {
		if ctx.Err() != nil {
			return cleared, ctx.Err()
		}
		if s.Empty() || s.IdleFor(now) <= r.threshold || !r.manager.registry.Has(s.SystemKey) {
			continue
		}

		ok, err := r.manager.ClearIfIdle(ctx, s.SystemKey, r.threshold)
		if err != nil {
			r.logger.WithError(err).WithField("system", s.SystemKey).Error("Failed to clear idle summary")
			continue
		}
		if ok {
			cleared = append(cleared, s.SystemKey)
		}
	}
	return cleared, nil
}
