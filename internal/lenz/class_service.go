package lenz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/metrics"
	"github.com/colonyops/linglenz/pkg/kv"
)

// ErrCaptureUnavailable is returned when a class has no audio input configured.
var ErrCaptureUnavailable = errors.New("audio capture is not configured")

// ClassConfig holds the per-class runtime settings.
type ClassConfig struct {
	DefaultLanguage    string
	AutoRetryLimit     int
	AutoRetryDelay     time.Duration
	RetryBackendErrors bool
	MaxInFlight        int
	Format             capture.Format
	SegmentInterval    time.Duration
	SilenceThreshold   float64
}

// Room is the runtime of one open class: its ledger, its analyzer and, when
// a microphone is available, its capture controller.
type Room struct {
	Session  classroom.Session
	Language string
	Ledger   *Ledger
	Analyzer *Analyzer

	capture  *capture.Controller
	pipeline *Pipeline
}

// StartCapture begins microphone capture. Calling it while capturing is a no-op.
func (r *Room) StartCapture() error {
	if r.capture == nil {
		return ErrCaptureUnavailable
	}
	return r.capture.Start()
}

// StopCapture stops microphone capture. Analyses already started continue.
func (r *Room) StopCapture() error {
	if r.capture == nil {
		return nil
	}
	return r.capture.Stop()
}

// CaptureActive reports whether the microphone is being captured.
func (r *Room) CaptureActive() bool {
	return r.capture != nil && r.capture.Active()
}

// Drain waits until transcriptions already handed to the room and the
// analyses they start have settled, including scheduled automatic retries.
// Call it after StopCapture so no new segments arrive.
func (r *Room) Drain(ctx context.Context) error {
	if r.pipeline != nil {
		done := make(chan struct{})
		go func() {
			r.pipeline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.Analyzer.Wait(ctx)
}

// shutdown releases the microphone before anything else, then stops the
// analyzer. abort also cancels analyses in flight.
func (r *Room) shutdown(abort bool) {
	_ = r.StopCapture()
	if abort {
		r.Analyzer.Close()
	} else {
		r.Analyzer.Stop()
	}
}

// ClassService keeps one Room per open class and routes entry operations to it.
type ClassService struct {
	guard       *Guard
	entries     mistake.Store
	checker     correction.Checker
	transcriber Transcriber
	opener      capture.Opener
	bus         *eventbus.EventBus
	cfg         ClassConfig
	limiter     *semaphore.Weighted
	metrics     *metrics.Metrics
	log         zerolog.Logger

	rooms *kv.Store[string, *Room]
}

// NewClassService creates the class registry. transcriber and opener may be
// nil, in which case classes accept typed input only.
func NewClassService(
	guard *Guard,
	entries mistake.Store,
	checker correction.Checker,
	transcriber Transcriber,
	opener capture.Opener,
	bus *eventbus.EventBus,
	cfg ClassConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ClassService {
	var limiter *semaphore.Weighted
	if cfg.MaxInFlight > 0 {
		limiter = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}

	return &ClassService{
		guard:       guard,
		entries:     entries,
		checker:     checker,
		transcriber: transcriber,
		opener:      opener,
		bus:         bus,
		cfg:         cfg,
		limiter:     limiter,
		metrics:     m,
		log:         log,
		rooms:       kv.New[string, *Room](),
	}
}

// Register closes rooms whose class stopped being in progress, whether the
// change happened here or was observed from another process.
func (s *ClassService) Register() {
	s.bus.SubscribeSessionEnded(func(p eventbus.SessionEndedPayload) {
		s.closeRoom(p.Session.ID)
	})
	s.bus.SubscribeSessionAbandoned(func(p eventbus.SessionAbandonedPayload) {
		s.closeRoom(p.Session.ID)
	})
	s.bus.SubscribeSessionActiveChanged(func(p eventbus.SessionActiveChangedPayload) {
		for _, room := range s.rooms.Values() {
			if room.Session.TeacherID != p.TeacherID {
				continue
			}
			if p.Active == nil || p.Active.ID != room.Session.ID {
				s.closeRoom(room.Session.ID)
			}
		}
	})
}

// Open returns the room of an in-progress class, creating it on first use.
// A new room starts with the class's persisted entries, newest first.
// language may be empty to use the default.
func (s *ClassService) Open(ctx context.Context, sessionID, language string) (*Room, error) {
	if room, ok := s.rooms.Get(sessionID); ok {
		return room, nil
	}

	sess, err := s.guard.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("open %s (%s): %w", sessionID, sess.Status, ErrNotActive)
	}

	history, err := s.entries.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load entries for %s: %w", sessionID, err)
	}

	room := s.newRoom(sess, language)
	room.Ledger.Load(history)

	got, existed := s.rooms.GetOrSet(sessionID, func() *Room { return room })
	if existed {
		room.shutdown(true)
		return got, nil
	}

	s.log.Info().
		Str("class_session_id", sessionID).
		Int("entries", len(history)).
		Msg("class opened")
	return got, nil
}

// Room returns an open room.
func (s *ClassService) Room(sessionID string) (*Room, bool) {
	return s.rooms.Get(sessionID)
}

// Finish releases the microphone, ends the class, then stops its pending
// retries. The room stays open when the class cannot be ended.
func (s *ClassService) Finish(ctx context.Context, sessionID string) (classroom.Session, error) {
	if room, ok := s.rooms.Get(sessionID); ok {
		if err := room.StopCapture(); err != nil {
			s.log.Warn().Err(err).Str("class_session_id", sessionID).Msg("failed to stop capture")
		}
	}

	sess, err := s.guard.EndSession(ctx, sessionID)
	if err != nil {
		return classroom.Session{}, err
	}
	s.closeRoom(sessionID)
	return sess, nil
}

// Submit adds an utterance to an in-progress class.
func (s *ClassService) Submit(ctx context.Context, sessionID, text string, source mistake.Source) (mistake.Entry, error) {
	room, err := s.Open(ctx, sessionID, "")
	if err != nil {
		return mistake.Entry{}, err
	}
	return room.Analyzer.Submit(ctx, text, source)
}

// Retry manually retries an entry in error.
func (s *ClassService) Retry(ctx context.Context, sessionID, entryID string) (mistake.Entry, error) {
	room, err := s.Open(ctx, sessionID, "")
	if err != nil {
		return mistake.Entry{}, err
	}
	return room.Analyzer.Retry(ctx, entryID)
}

// DeleteEntry removes an entry. Entries of classes that are no longer in
// progress are deleted from storage directly.
func (s *ClassService) DeleteEntry(ctx context.Context, sessionID, entryID string) error {
	room, err := s.Open(ctx, sessionID, "")
	if err == nil {
		return room.Analyzer.Delete(ctx, entryID)
	}
	if !errors.Is(err, ErrNotActive) {
		return err
	}

	if err := s.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	s.bus.PublishEntryDeleted(eventbus.EntryDeletedPayload{SessionID: sessionID, EntryID: entryID})
	return nil
}

// Entries lists a class's entries, most recent first. Open classes include
// unresolved entries; others come from storage.
func (s *ClassService) Entries(ctx context.Context, sessionID string) ([]mistake.Entry, error) {
	if room, ok := s.rooms.Get(sessionID); ok {
		return room.Ledger.Entries(), nil
	}

	if _, err := s.guard.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := s.entries.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]mistake.Entry, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ToEntry())
	}
	return out, nil
}

// Close shuts every room down, aborting analyses in flight.
func (s *ClassService) Close() {
	for _, room := range s.rooms.Drain() {
		room.shutdown(true)
	}
}

func (s *ClassService) closeRoom(sessionID string) {
	room, ok := s.rooms.Delete(sessionID)
	if !ok {
		return
	}
	room.shutdown(false)
	s.log.Info().Str("class_session_id", sessionID).Msg("class closed")
}

func (s *ClassService) newRoom(sess classroom.Session, language string) *Room {
	if language == "" {
		language = s.cfg.DefaultLanguage
	}

	log := logging.Class(s.log, sess.ID, sess.TeacherID)

	ledger := NewLedger(sess.ID)
	analyzer := NewAnalyzer(sess, s.checker, s.entries, ledger, s.bus, AnalyzerOptions{
		Language:           language,
		AutoRetryLimit:     s.cfg.AutoRetryLimit,
		AutoRetryDelay:     s.cfg.AutoRetryDelay,
		RetryBackendErrors: s.cfg.RetryBackendErrors,
		Limiter:            s.limiter,
		Metrics:            s.metrics,
		Logger:             log,
	})

	room := &Room{
		Session:  sess,
		Language: language,
		Ledger:   ledger,
		Analyzer: analyzer,
	}

	if s.opener != nil && s.transcriber != nil {
		room.pipeline = NewPipeline(analyzer.ctx, s.transcriber, analyzer, language,
			s.cfg.SilenceThreshold, s.metrics, log)
		room.capture = capture.NewController(s.opener, capture.Options{
			Format:    s.cfg.Format,
			Interval:  s.cfg.SegmentInterval,
			OnSegment: room.pipeline.HandleSegment,
			OnFailure: func(err error) {
				s.bus.PublishCaptureFailed(eventbus.CaptureFailedPayload{SessionID: sess.ID, Err: err})
			},
			Metrics: s.metrics,
			Logger:  log,
		})
	}

	return room
}
