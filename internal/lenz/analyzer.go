package lenz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/core/validate"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/metrics"
	"github.com/colonyops/linglenz/pkg/randid"
)

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	Language           string
	AutoRetryLimit     int
	AutoRetryDelay     time.Duration
	RetryBackendErrors bool
	// Limiter bounds concurrent correction calls. It may be shared between
	// classes; nil means unlimited.
	Limiter *semaphore.Weighted
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// task is the analyzer's authoritative copy of one unresolved entry.
type task struct {
	entry   mistake.Entry
	timer   *time.Timer // pending automatic retry
	deleted bool
}

// Analyzer drives every entry of one class from submission to done or error.
// Each entry runs on its own goroutine; entries never wait on each other
// unless a Limiter is configured.
type Analyzer struct {
	session classroom.Session
	checker correction.Checker
	store   mistake.Store
	ledger  *Ledger
	bus     *eventbus.EventBus
	opts    AnalyzerOptions
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// outstanding counts running analyses plus scheduled automatic retries;
	// idle is closed when it drops to zero.
	outstanding int
	idle        chan struct{}

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool

	now    func() time.Time
	tempID func() string
}

// NewAnalyzer creates an analyzer for an in-progress session.
func NewAnalyzer(
	sess classroom.Session,
	checker correction.Checker,
	store mistake.Store,
	ledger *Ledger,
	bus *eventbus.EventBus,
	opts AnalyzerOptions,
) *Analyzer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Analyzer{
		session: sess,
		checker: checker,
		store:   store,
		ledger:  ledger,
		bus:     bus,
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*task),
		now:     time.Now,
		tempID:  func() string { return mistake.TempIDPrefix + randid.Generate(8) },
	}
}

// Submit validates text and creates a thinking entry that is visible in the
// ledger immediately. Analysis continues in the background. Empty input is
// rejected with correction.ErrInvalidInput and creates nothing.
func (a *Analyzer) Submit(_ context.Context, text string, source mistake.Source) (mistake.Entry, error) {
	if err := validate.Sentence(text); err != nil {
		return mistake.Entry{}, &correction.Error{Kind: correction.KindInvalidInput, Message: err.Error()}
	}
	if !source.Valid() {
		return mistake.Entry{}, fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, source)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return mistake.Entry{}, ErrClosed
	}

	t := &task{entry: mistake.Entry{
		ID:        a.tempID(),
		SessionID: a.session.ID,
		OwnerID:   a.session.TeacherID,
		Original:  strings.TrimSpace(text),
		Source:    source,
		Status:    mistake.StatusThinking,
		CreatedAt: a.now(),
	}}
	a.tasks[t.entry.ID] = t
	a.ledger.Upsert("", t.entry)
	a.publishLocked(t.entry, "")
	a.launchLocked(t)

	return t.entry.Clone(), nil
}

// Retry re-runs analysis of an entry in error with its original text. The
// automatic retry budget starts over; manual retries are unbounded.
func (a *Analyzer) Retry(_ context.Context, id string) (mistake.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return mistake.Entry{}, ErrClosed
	}

	t, ok := a.tasks[id]
	if !ok {
		e, found := a.ledger.Get(id)
		if !found {
			return mistake.Entry{}, mistake.ErrNotFound
		}
		// Resolved entries are terminal.
		return mistake.Entry{}, e.Transition(mistake.StatusThinking)
	}

	if err := t.entry.Transition(mistake.StatusThinking); err != nil {
		return mistake.Entry{}, err
	}
	t.entry.AutoRetries = 0
	t.entry.ManualRetries++
	t.entry.LastError = ""
	t.entry.ErrorKind = ""

	a.opts.Metrics.RecordRetry("manual")
	a.ledger.Upsert(id, t.entry)
	a.publishLocked(t.entry, "")
	a.launchLocked(t)

	return t.entry.Clone(), nil
}

// Delete removes an entry from the ledger and from storage, whatever its
// state. A pending automatic retry is cancelled and an in-flight result is
// discarded when it arrives.
func (a *Analyzer) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	if t, ok := a.tasks[id]; ok {
		t.deleted = true
		if t.timer != nil {
			if t.timer.Stop() {
				a.releaseLocked()
			}
			t.timer = nil
		}
		delete(a.tasks, id)
		a.ledger.Remove(id)
		a.publishDeletedLocked(id)
		a.mu.Unlock()
		return nil
	}
	_, ok := a.ledger.Get(id)
	a.mu.Unlock()

	if !ok {
		return mistake.ErrNotFound
	}

	if err := a.store.Delete(ctx, id); err != nil && !errors.Is(err, mistake.ErrNotFound) {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ledger.Remove(id) {
		a.publishDeletedLocked(id)
	}
	return nil
}

// Entries returns the ledger snapshot, most recent first.
func (a *Analyzer) Entries() []mistake.Entry {
	return a.ledger.Entries()
}

// Stop refuses new work and cancels pending automatic retries; their entries
// move to error. Analyses already in flight still complete and are applied.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true

	for _, t := range a.tasks {
		if t.timer != nil && t.timer.Stop() {
			t.timer = nil
			a.releaseLocked()
			a.failLocked(t, correction.KindTransport, errors.New("automatic retry cancelled: class closed"))
		}
	}
}

// Close stops the analyzer and aborts in-flight analyses.
func (a *Analyzer) Close() {
	a.Stop()
	a.cancel()
}

// Wait blocks until in-flight analyses and scheduled automatic retries have
// settled, or ctx is done. Work submitted while waiting is waited for too.
func (a *Analyzer) Wait(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.outstanding == 0 {
			a.mu.Unlock()
			return nil
		}
		idle := a.idle
		a.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Analyzer) holdLocked() {
	if a.outstanding == 0 {
		a.idle = make(chan struct{})
	}
	a.outstanding++
}

func (a *Analyzer) releaseLocked() {
	a.outstanding--
	if a.outstanding == 0 {
		close(a.idle)
	}
}

func (a *Analyzer) release() {
	a.mu.Lock()
	a.releaseLocked()
	a.mu.Unlock()
}

func (a *Analyzer) launchLocked(t *task) {
	a.holdLocked()
	go a.run(t, t.entry.Clone())
}

func (a *Analyzer) run(t *task, e mistake.Entry) {
	// Released after attemptFailed so a scheduled retry is held first.
	defer a.release()

	ctx := logging.WithEntryID(a.ctx, e.ID)

	if lim := a.opts.Limiter; lim != nil {
		if err := lim.Acquire(ctx, 1); err != nil {
			a.attemptFailed(ctx, t, err)
			return
		}
	}

	a.opts.Metrics.RecordInFlight(1)
	res, err := a.checker.Check(ctx, correction.Request{Sentence: e.Original, Language: a.opts.Language})
	a.opts.Metrics.RecordInFlight(-1)

	if lim := a.opts.Limiter; lim != nil {
		lim.Release(1)
	}

	if err == nil {
		err = a.persist(ctx, t, e, res)
	}
	if err != nil {
		a.attemptFailed(ctx, t, err)
	}
}

// persist stores a successful result and swaps the temporary id for the
// durable one in a single ledger update.
func (a *Analyzer) persist(ctx context.Context, t *task, e mistake.Entry, res correction.Result) error {
	a.mu.Lock()
	deleted := t.deleted
	source := t.entry.PersistedSource()
	a.mu.Unlock()

	if deleted {
		a.log.Debug().Ctx(ctx).Msg("discarding result for deleted entry")
		return nil
	}

	rec, err := a.store.Insert(ctx, mistake.Record{
		SessionID:   e.SessionID,
		OwnerID:     e.OwnerID,
		Original:    e.Original,
		Corrected:   res.CorrectedSentence,
		Explanation: res.Explanation,
		Categories:  res.Categories,
		IsCorrect:   res.IsCorrect,
		Source:      source,
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}

	a.mu.Lock()
	if t.deleted {
		a.mu.Unlock()
		// Deleted while the insert was running.
		if err := a.store.Delete(context.WithoutCancel(ctx), rec.ID); err != nil {
			a.log.Warn().Ctx(ctx).Err(err).Str("durable_id", rec.ID).Msg("failed to remove entry deleted during persist")
		}
		return nil
	}
	defer a.mu.Unlock()

	prevID := t.entry.ID
	corrected, explanation := res.CorrectedSentence, res.Explanation
	t.entry.ID = rec.ID
	t.entry.Corrected = &corrected
	t.entry.Explanation = &explanation
	t.entry.Categories = append([]string{}, res.Categories...)
	t.entry.IsCorrect = res.IsCorrect
	t.entry.LastError = ""
	t.entry.ErrorKind = ""
	if err := t.entry.Transition(mistake.StatusDone); err != nil {
		return err
	}

	delete(a.tasks, prevID)
	a.ledger.Upsert(prevID, t.entry)
	a.publishLocked(t.entry, prevID)
	a.opts.Metrics.RecordEntryResolved(string(source), string(mistake.StatusDone))

	a.log.Debug().
		Ctx(ctx).
		Str("durable_id", rec.ID).
		Bool("is_correct", res.IsCorrect).
		Msg("entry analyzed")
	return nil
}

func (a *Analyzer) attemptFailed(ctx context.Context, t *task, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t.deleted {
		return
	}

	kind := correction.KindOf(err)
	if !a.closed && a.retryable(kind) && t.entry.AutoRetries < a.opts.AutoRetryLimit {
		t.entry.AutoRetries++
		a.opts.Metrics.RecordRetry(string(kind))
		a.log.Debug().
			Ctx(ctx).
			Err(err).
			Int("attempt", t.entry.AutoRetries).
			Dur("delay", a.opts.AutoRetryDelay).
			Msg("scheduling automatic retry")
		a.holdLocked()
		t.timer = time.AfterFunc(a.opts.AutoRetryDelay, func() { a.fire(t) })
		return
	}

	a.log.Warn().Ctx(ctx).Err(err).Str("kind", string(kind)).Msg("entry analysis failed")
	a.failLocked(t, kind, err)
}

// fire runs a scheduled automatic retry.
func (a *Analyzer) fire(t *task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.releaseLocked()

	t.timer = nil
	if t.deleted || t.entry.Status != mistake.StatusThinking {
		return
	}
	if a.closed {
		a.failLocked(t, correction.KindTransport, errors.New("automatic retry cancelled: class closed"))
		return
	}
	a.launchLocked(t)
}

func (a *Analyzer) failLocked(t *task, kind correction.Kind, err error) {
	t.entry.LastError = err.Error()
	t.entry.ErrorKind = string(kind)
	if transErr := t.entry.Transition(mistake.StatusError); transErr != nil {
		a.log.Error().Err(transErr).Str("entry_id", t.entry.ID).Msg("unexpected entry state")
		return
	}
	a.ledger.Upsert(t.entry.ID, t.entry)
	a.publishLocked(t.entry, "")
	a.opts.Metrics.RecordEntryResolved(string(t.entry.Source), string(mistake.StatusError))
}

func (a *Analyzer) retryable(kind correction.Kind) bool {
	switch kind {
	case correction.KindInvalidInput:
		return false
	case correction.KindBackendLogic:
		return a.opts.RetryBackendErrors
	}
	return true
}

// Publishing under a.mu keeps each entry's events in transition order.
func (a *Analyzer) publishLocked(e mistake.Entry, prevID string) {
	a.bus.PublishEntryUpdated(eventbus.EntryUpdatedPayload{Entry: e.Clone(), PreviousID: prevID})
}

func (a *Analyzer) publishDeletedLocked(id string) {
	a.bus.PublishEntryDeleted(eventbus.EntryDeletedPayload{SessionID: a.session.ID, EntryID: id})
}
