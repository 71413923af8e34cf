/*
reconciler.go - The sweep orchestrator

PURPOSE:
  Runs every condition evaluator, then reconciles the resulting fact set
  against the alert store under at-most-one-open-alert-per-(entity, type)
  semantics.

ALGORITHM:
  1. Evaluate all domains (in parallel - evaluators are pure reads over
     disjoint domains). A failing evaluator is logged and contributes zero
     facts; the sweep continues with degraded coverage.
  2. Load existing open (active + acknowledged) alerts keyed by
     (entity, type).
  3. For each fact:
       no existing alert   -> create, status active
       existing active     -> refresh severity/title/message/dueDate in place
       existing acknowledged -> leave entirely untouched
  4. Alerts whose condition no longer appears are NOT auto-resolved.
     Resolution and dismissal are always explicit human (or downstream)
     actions; silently closing a compliance alert risks false reassurance.

CONCURRENCY:
  Safe to invoke repeatedly and concurrently. The store's CreateIfAbsent is
  atomic on the dedupe key; a sweep losing that race counts the alert as
  unchanged rather than failing.

SEE ALSO:
  - evaluate: The condition evaluators
  - engine/store.go: CreateIfAbsent / RefreshActive contracts
*/
package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/evaluate"
)

// Result summarizes one sweep.
type Result struct {
	Created   int
	Refreshed int
	Unchanged int

	// Degraded names evaluators that failed this sweep; their domains
	// contributed no facts.
	Degraded []string
}

// Reconciler runs sweeps against a fixed set of evaluators.
type Reconciler struct {
	store      engine.AlertStore
	evaluators []evaluate.Evaluator
	log        *logrus.Logger
	now        func() time.Time
	newID      func() engine.AlertID
}

func NewReconciler(store engine.AlertStore, log *logrus.Logger, evaluators ...evaluate.Evaluator) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	return &Reconciler{
		store:      store,
		evaluators: evaluators,
		log:        log,
		now:        time.Now,
		newID:      func() engine.AlertID { return engine.AlertID(uuid.NewString()) },
	}
}

// Reconcile executes one sweep as of today.
func (r *Reconciler) Reconcile(ctx context.Context, today engine.Date) (*Result, error) {
	facts, degraded := r.evaluateAll(ctx, today)

	open, err := r.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[engine.Key]engine.Alert, len(open))
	for _, a := range open {
		byKey[a.Key()] = a
	}

	result := &Result{Degraded: degraded}
	seen := make(map[engine.Key]bool, len(facts))

	for _, fact := range facts {
		key := fact.Key()
		if seen[key] {
			// Two evaluator facts landing on one key within a sweep
			// collapse to the first.
			continue
		}
		seen[key] = true

		existing, ok := byKey[key]
		switch {
		case !ok:
			alert := engine.NewAlert(r.newID(), fact, r.now())
			err := r.store.CreateIfAbsent(ctx, alert)
			switch {
			case err == nil:
				result.Created++
			case errors.Is(err, engine.ErrDuplicateAlert):
				// A concurrent sweep created it first.
				result.Unchanged++
			default:
				return nil, err
			}

		case existing.Status == engine.StatusActive:
			if err := r.store.RefreshActive(ctx, existing.ID, fact.Severity, fact.Title, fact.Message, fact.DueDate); err != nil {
				return nil, err
			}
			result.Refreshed++

		default:
			// Acknowledged: a human has seen it. Do not resurface changed
			// text until it is resolved and the condition recurs.
			result.Unchanged++
		}
	}

	r.log.WithFields(logrus.Fields{
		"today":     today.String(),
		"facts":     len(facts),
		"created":   result.Created,
		"refreshed": result.Refreshed,
		"unchanged": result.Unchanged,
		"degraded":  len(result.Degraded),
	}).Info("alert sweep complete")

	return result, nil
}

// evaluateAll runs every evaluator concurrently and returns the combined
// fact set plus the names of evaluators that failed.
func (r *Reconciler) evaluateAll(ctx context.Context, today engine.Date) ([]engine.Fact, []string) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		facts    []engine.Fact
		degraded []string
	)

	for _, ev := range r.evaluators {
		ev := ev
		wg.Add(1)
		go func() {
			defer wg.Done()
			domainFacts, err := ev.Evaluate(ctx, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.WithField("evaluator", ev.Name()).WithError(err).Warn("evaluator failed; domain skipped this sweep")
				degraded = append(degraded, ev.Name())
				return
			}
			facts = append(facts, domainFacts...)
		}()
	}
	wg.Wait()

	return facts, degraded
}
