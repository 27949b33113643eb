// Package orchestrator implements the state mutation operations: init,
// get-ready, start, mark-complete, mark-failed/retry, resolve-decision and
// abort.
//
// Every mutation is an independent read-modify-write cycle on the document
// at a caller-supplied path:
//
//	acquire lease -> load -> rebuild graph -> one transition -> save -> release
//
// The document is parsed before anything is modified, so a malformed
// document or an illegal transition never produces a partial write.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/symphony/internal/backoff"
	"github.com/Iron-Ham/symphony/internal/filelock"
	"github.com/Iron-Ham/symphony/internal/logging"
	"github.com/Iron-Ham/symphony/internal/metrics"
	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

// Operation names, used for logging and metrics.
const (
	OpInit     = "init"
	OpStart    = "start"
	OpComplete = "complete"
	OpFail     = "fail"
	OpResolve  = "resolve"
	OpAbort    = "abort"
)

// Orchestrator applies mutations to orchestration documents. It holds no
// document state between calls and is safe for concurrent use.
type Orchestrator struct {
	locker  filelock.Locker
	logger  *logging.Logger
	metrics *metrics.Metrics
	backoff backoff.Calculator
	now     func() time.Time
	newID   func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker replaces the default file lock.
func WithLocker(l filelock.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics records transitions and lock waits into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithBackoff sets the retry delay calculator.
func WithBackoff(c backoff.Calculator) Option {
	return func(o *Orchestrator) {
		o.backoff = c
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		o.newID = f
	}
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: logging.NopLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.locker == nil {
		o.locker = filelock.New(filelock.DefaultOptions(), filelock.WithLogger(o.logger))
	}
	return o
}

func (o *Orchestrator) timestamp() time.Time {
	return o.now().UTC()
}

// mutation is one transition applied inside the critical section. It
// returns the outcome label recorded in metrics.
type mutation func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error)

// mutate runs fn on the document at path under the document lease and
// persists the result when fn succeeds. The lease is released however fn
// exits.
func (o *Orchestrator) mutate(ctx context.Context, op, path string, fn mutation) (err error) {
	lease, err := o.locker.Acquire(ctx, path)
	if err != nil {
		o.metrics.ObserveTransition(op, "lock_timeout")
		return err
	}
	o.metrics.ObserveLockWait(lease.Waited())

	defer func() {
		if rerr := lease.Release(); rerr != nil {
			o.logger.Warn("failed to release lock", "path", path, "error", rerr)
			if err == nil {
				err = rerr
			}
		}
		if err != nil {
			o.metrics.ObserveTransition(op, "error")
		}
	}()

	doc, err := state.Load(path)
	if err != nil {
		return err
	}
	now := o.timestamp()
	outcome, err := fn(doc, scheduler.New(doc), now)
	if err != nil {
		return err
	}
	if err := state.Save(path, doc, now); err != nil {
		return err
	}
	o.metrics.ObserveTransition(op, outcome)
	o.metrics.SetPhaseCounts(countsByName(doc))
	return nil
}

func countsByName(doc *state.Document) map[string]int {
	out := make(map[string]int)
	for st, n := range doc.Counts() {
		out[string(st)] = n
	}
	return out
}

func (o *Orchestrator) opLogger(op string, doc *state.Document, phaseID string) *logging.Logger {
	l := o.logger.WithOperation(op)
	if doc != nil && doc.RunID != "" {
		l = l.WithRun(doc.RunID)
	}
	if phaseID != "" {
		l = l.WithPhase(phaseID)
	}
	return l
}
