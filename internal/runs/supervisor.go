// Package runs supervises background run execution: timeout enforcement,
// cooperative cancellation, and recovery of runs orphaned by a crash.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"
)

// Work is the body of a supervised run. It must honor ctx cancellation and
// return core.ErrRunCancelled when a checkpoint observes a cancelled run.
type Work func(ctx context.Context, runID int64) error

// Supervisor launches runs in the background and owns their terminal
// transitions on timeout and cancellation.
type Supervisor struct {
	store *store.Store

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor creates a supervisor backed by the given store.
func NewSupervisor(s *store.Store) *Supervisor {
	return &Supervisor{store: s, cancels: make(map[int64]context.CancelFunc)}
}

// Start creates a RUNNING run and launches work in the background under the
// given timeout. The run id is returned immediately.
func (s *Supervisor) Start(kind core.RunKind, timeout time.Duration, stats map[string]any, work Work) (int64, error) {
	runID, _, err := s.start(kind, timeout, stats, work)
	return runID, err
}

// StartAndWait launches work like Start but blocks until the run reaches a
// terminal state, returning the final run record.
func (s *Supervisor) StartAndWait(kind core.RunKind, timeout time.Duration, stats map[string]any, work Work) (core.Run, error) {
	runID, done, err := s.start(kind, timeout, stats, work)
	if err != nil {
		return core.Run{}, err
	}
	<-done
	return s.store.GetRun(runID)
}

func (s *Supervisor) start(kind core.RunKind, timeout time.Duration, stats map[string]any, work Work) (int64, <-chan struct{}, error) {
	if stats == nil {
		stats = map[string]any{}
	}
	stats["timeout_seconds"] = int(timeout.Seconds())

	run, err := s.store.CreateRun(kind, stats)
	if err != nil {
		return 0, nil, err
	}
	done := s.launch(run.ID, string(kind), timeout, work)
	return run.ID, done, nil
}

func (s *Supervisor) launch(runID int64, kind string, timeout time.Duration, work Work) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(finished)
		defer func() {
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
			cancel()
		}()

		done := make(chan error, 1)
		go func() {
			done <- work(ctx, runID)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case err := <-done:
			s.finish(runID, kind, err)
		case <-timer.C:
			logger.Get().Warn().Int64("run_id", runID).Str("kind", kind).
				Dur("timeout", timeout).Msg("Run exceeded timeout, cancelling")
			cancel()
			<-done
			note := fmt.Sprintf("timed out after %ds", int(timeout.Seconds()))
			if err := s.store.FinishRun(runID, core.RunFailed, note); err != nil {
				logger.Error("Failed to mark timed-out run", err)
			}
		}
	}()
	return finished
}

// finish writes the terminal state for a run that ended on its own. A
// cancelled run is left alone: the canceller owns that transition.
func (s *Supervisor) finish(runID int64, kind string, err error) {
	switch {
	case err == nil:
		if err := s.store.FinishRun(runID, core.RunSuccess, ""); err != nil {
			logger.Error("Failed to mark run success", err)
		}
	case errors.Is(err, core.ErrRunCancelled):
		logger.Get().Info().Int64("run_id", runID).Str("kind", kind).Msg("Run cancelled")
	default:
		if ferr := s.store.FinishRun(runID, core.RunFailed, err.Error()); ferr != nil {
			logger.Error("Failed to mark run failure", ferr)
		}
	}
}

// Cancel flips a RUNNING run to FAILED and signals its context. Safe to call
// for unknown or already-finished runs; returns whether this call performed
// the transition.
func (s *Supervisor) Cancel(runID int64) (bool, error) {
	flipped, err := s.store.CancelRun(runID, "cancelled by user")
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return flipped, nil
}

// SweepStale marks runs left RUNNING by a previous process as FAILED when
// they have exceeded their recorded timeout. Called once at startup.
func (s *Supervisor) SweepStale(kind core.RunKind, defaultTimeout time.Duration) error {
	running, err := s.store.ListRunningRuns(kind)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, run := range running {
		s.mu.Lock()
		_, live := s.cancels[run.ID]
		s.mu.Unlock()
		if live {
			continue
		}

		timeout := defaultTimeout
		if v, ok := run.Stats["timeout_seconds"].(float64); ok && v > 0 {
			timeout = time.Duration(v) * time.Second
		}
		if now.Sub(run.StartedAt) < timeout {
			continue
		}

		note := fmt.Sprintf("timed out after %ds", int(timeout.Seconds()))
		if err := s.store.FinishRun(run.ID, core.RunFailed, note); err != nil {
			logger.Error("Failed to sweep stale run", err)
			continue
		}
		logger.Get().Warn().Int64("run_id", run.ID).Str("kind", string(run.Kind)).
			Msg("Swept stale run from previous process")
	}
	return nil
}

// Wait blocks until all launched runs have finished. Used on shutdown and in
// tests.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
