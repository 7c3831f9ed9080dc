package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/logger"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

// fetch drives the pending items through a fixed pool of workers.
// Results flow back to this goroutine, which is the only writer of the
// checkpoint. After ctx ends no new items are dispatched; in-flight fetches
// run on until they finish or the drain timeout passes.
func (s *ExportService) fetch(ctx, storeCtx context.Context, run *exportRun) error {
	todo := run.ledger.todo()
	total, _, failedSoFar, _, pending := run.ledger.counts()
	done := total - pending
	if len(todo) == 0 {
		return nil
	}

	workers := s.cfg.Batch.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(todo) {
		workers = len(todo)
	}
	logger.Section("Fetch")
	logger.Info("fetching %d items with %d workers (%d already complete)", len(todo), workers, done)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	fetchCtx, cancelFetch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelFetch()
	stopDrain := context.AfterFunc(ctx, func() {
		logger.Warn("interrupted: waiting up to %s for in-flight fetches", s.drainTimeout)
		time.AfterFunc(s.drainTimeout, cancelFetch)
	})
	defer stopDrain()

	jobs := make(chan domain.WorkItem)
	results := make(chan domain.FetchResult, workers)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, item := range todo {
			if dispatchCtx.Err() != nil {
				return nil
			}
			select {
			case <-dispatchCtx.Done():
				return nil
			case jobs <- item:
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for item := range jobs {
				results <- s.fetchOne(fetchCtx, run.conns[item.Kind], item)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var fatal error
	failed := failedSoFar
	for res := range results {
		if fatal != nil {
			continue
		}
		if !run.ledger.record(res) {
			logger.Debug("%s left pending: %s", res.Item.Key(), res.Error)
			continue
		}
		if err := s.store.PutResult(storeCtx, run.cp.RunID, res); err != nil {
			fatal = fmt.Errorf("store result %s: %w", res.Item.Key(), err)
			stopDispatch()
			continue
		}
		if err := s.save(storeCtx, run.cp); err != nil {
			fatal = err
			stopDispatch()
			continue
		}

		done++
		if res.Status == domain.FetchFailed {
			failed++
			logger.Warn("%s failed (%s) after %d attempts: %s", res.Item.Key(), res.Reason, res.Attempts, res.Error)
		} else {
			logger.Debug("%s %s", res.Item.Key(), res.Status)
		}
		item := res.Item
		run.emit(domain.ProgressEvent{
			Total:     total,
			Done:      done,
			Failed:    failed,
			Item:      &item,
			Status:    res.Status,
			Container: item.Container,
		})
	}
	return fatal
}

// fetchOne fetches one item and classifies the outcome.
func (s *ExportService) fetchOne(ctx context.Context, conn driven.Connector, item domain.WorkItem) domain.FetchResult {
	res := domain.FetchResult{Item: item}
	if conn == nil {
		res.Status = domain.FetchFailed
		res.Reason = domain.ReasonPermanent
		res.Error = "no connector for " + string(item.Kind)
		res.Timestamp = s.now()
		return res
	}

	ctx, attempts := resilience.WithAttemptCounter(ctx)
	content, err := conn.Fetch(ctx, item)
	res.Attempts = attempts.Count()
	res.Timestamp = s.now()

	switch {
	case err == nil:
		res.Status = domain.FetchSucceeded
		res.Content = content
	case errors.Is(err, domain.ErrItemSkipped):
		res.Status = domain.FetchSkipped
		res.Reason = domain.ReasonSkipped
		res.Error = err.Error()
	default:
		res.Status = domain.FetchFailed
		res.Reason = resilience.Reason(err)
		res.Error = err.Error()
	}
	return res
}
