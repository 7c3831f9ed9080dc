package services

import (
	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// ledger tracks the WorkItems of one run by stable key.
// Items live in an arena keyed by WorkItem.Key so that resume does not depend
// on enumeration order. The wrapped checkpoint holds the persisted
// pending/completed split; results holds the last terminal result per key.
type ledger struct {
	cp      *domain.Checkpoint
	items   map[string]domain.WorkItem
	order   []string
	results map[string]domain.FetchResult
}

func newLedger(cp *domain.Checkpoint) *ledger {
	return &ledger{
		cp:      cp,
		items:   make(map[string]domain.WorkItem),
		results: make(map[string]domain.FetchResult),
	}
}

// register adds the enumerated containers and rebuilds the pending set.
// Keys already completed in the checkpoint stay completed.
func (l *ledger) register(containers []domain.Container) {
	for _, c := range containers {
		for _, item := range c.Items {
			key := item.Key()
			if _, dup := l.items[key]; dup {
				continue
			}
			l.items[key] = item
			l.order = append(l.order, key)
		}
	}
	l.cp.SetPending(l.order)
}

// restore loads results recorded by an earlier process.
// Results for keys the checkpoint does not list as completed are ignored.
func (l *ledger) restore(results []domain.FetchResult) {
	for _, r := range results {
		key := r.Item.Key()
		if l.cp.IsCompleted(key) {
			l.results[key] = r
		}
	}
}

// todo returns the items still to fetch, in enumeration order.
func (l *ledger) todo() []domain.WorkItem {
	out := make([]domain.WorkItem, 0, len(l.cp.Pending))
	for _, key := range l.cp.Pending {
		if item, ok := l.items[key]; ok {
			out = append(out, item)
		}
	}
	return out
}

// record resolves a terminal result. Cancelled results are not terminal and
// leave the item pending. Returns true if the checkpoint changed.
func (l *ledger) record(r domain.FetchResult) bool {
	if r.Reason == domain.ReasonCancelled {
		return false
	}
	key := r.Item.Key()
	l.results[key] = r
	l.cp.Resolve(key, r.Status)
	return true
}

// resultsFor returns a container's results in enumeration order.
// A completed item whose result was lost is reported as failed.
func (l *ledger) resultsFor(c domain.Container) []domain.FetchResult {
	out := make([]domain.FetchResult, 0, len(c.Items))
	for _, item := range c.Items {
		key := item.Key()
		if r, ok := l.results[key]; ok {
			out = append(out, r)
			continue
		}
		status, done := l.cp.Completed[key]
		if !done {
			continue
		}
		out = append(out, domain.FetchResult{
			Item:   item,
			Status: domain.FetchFailed,
			Reason: domain.ReasonPermanent,
			Error:  "result recorded as " + string(status) + " but its content is no longer available",
		})
	}
	return out
}

// counts returns totals over the enumerated set.
func (l *ledger) counts() (total, succeeded, failed, skipped, pending int) {
	total = len(l.order)
	for _, key := range l.order {
		switch l.cp.Completed[key] {
		case domain.FetchSucceeded:
			succeeded++
		case domain.FetchFailed:
			failed++
		case domain.FetchSkipped:
			skipped++
		default:
			pending++
		}
	}
	return total, succeeded, failed, skipped, pending
}

// failures returns failed results in enumeration order.
func (l *ledger) failures() []domain.FetchResult {
	var out []domain.FetchResult
	for _, key := range l.order {
		if l.cp.Completed[key] != domain.FetchFailed {
			continue
		}
		if r, ok := l.results[key]; ok {
			out = append(out, r)
		} else {
			out = append(out, domain.FetchResult{Item: l.items[key], Status: domain.FetchFailed})
		}
	}
	return out
}
