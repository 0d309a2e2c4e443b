// Package syncworker keeps long-lived client state fresh in the background:
// the session is revalidated and the spot list re-fetched on an interval, so
// an expired token or a spot added elsewhere shows up without a restart.
package syncworker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"parahub/client-go/internal/model"
	"parahub/client-go/internal/session"
)

// Session is the slice of the session manager the worker needs.
type Session interface {
	CurrentUser() *model.User
	Revalidate(ctx context.Context) error
}

// SpotLoader re-fetches the spot collection; *mapctl.Controller satisfies it.
type SpotLoader interface {
	LoadSpots(ctx context.Context) error
}

type Worker struct {
	log          zerolog.Logger
	session      Session
	spots        SpotLoader
	pollInterval time.Duration
	maxRuntime   time.Duration
}

type Options struct {
	PollInterval time.Duration
	MaxRuntime   time.Duration
}

func New(log zerolog.Logger, sess Session, spots SpotLoader, opts Options) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 5 * time.Minute
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = 30 * time.Second
	}
	return &Worker{
		log:          log,
		session:      sess,
		spots:        spots,
		pollInterval: pi,
		maxRuntime:   mr,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.session == nil {
		return
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.runOnce(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.pollInterval, consecutiveFailures))
	}
}

// runOnce revalidates the session and, while logged in, refreshes the spot
// list. A session that simply is not logged in is not a failure.
func (w *Worker) runOnce(ctx context.Context) error {
	execCtx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	if err := w.session.Revalidate(execCtx); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return nil
		}
		w.log.Warn().Err(err).Msg("background session revalidation failed")
		return err
	}

	if w.session.CurrentUser() == nil || w.spots == nil {
		return nil
	}

	if err := w.spots.LoadSpots(execCtx); err != nil {
		w.log.Warn().Err(err).Msg("background spot refresh failed")
		return err
	}
	return nil
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 5 * time.Minute
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 30*time.Minute {
		return 30 * time.Minute
	}
	return d
}
