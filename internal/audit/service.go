package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const unknownValue = "unknown"

// Config tunes the audit service.
type Config struct {
	// Retention is how long entries stay queryable. The store purges
	// anything older on its own.
	Retention time.Duration
	// SinkBuffer is the mirror dispatcher's channel capacity.
	SinkBuffer int
	// Development enables a compact per-event debug line on the local
	// logger in addition to the persisted entry.
	Development bool
}

// Service is the single write path for the audit log. Record never returns
// an error: a log write must not be the reason a sign-in fails, so store
// failures are discarded after being reported on the diagnostic logger.
type Service struct {
	store     *Store
	logger    *zap.Logger
	mirror    *dispatcher
	devMode   bool
	retention time.Duration
}

// NewService wires a Service around the given store. sink may be nil; when
// present, every recorded entry is mirrored to it asynchronously.
func NewService(store *Store, logger *zap.Logger, sink Sink, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	var mirror *dispatcher
	if sink != nil {
		mirror = newDispatcher(sink, cfg.SinkBuffer)
	}

	return &Service{
		store:     store,
		logger:    logger.Named("audit"),
		mirror:    mirror,
		devMode:   cfg.Development,
		retention: cfg.Retention,
	}
}

// Close drains the mirror dispatcher. Entries already handed to Record are
// flushed before Close returns.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mirror.close()
}

// Dropped reports how many mirror entries were discarded because the sink
// could not keep up. The persisted log is unaffected.
func (s *Service) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.mirror.droppedCount()
}

// Record persists one entry, stamping ID and timestamp server-side and
// substituting "unknown" for a missing IP or user agent. It never reports
// failure to the caller; the error from the store is consumed here, on
// purpose, so the contract is visible in the signature.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if s == nil || s.store == nil {
		return
	}

	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()
	if entry.IP == "" {
		entry.IP = unknownValue
	}
	if entry.UserAgent == "" {
		entry.UserAgent = unknownValue
	}

	if err := s.store.Append(ctx, &entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}

	s.mirror.emit(entry)

	if s.devMode {
		s.logger.Debug("audit",
			zap.String("action", string(entry.Action)),
			zap.Bool("success", entry.Success),
			zap.String("email", entry.Email),
			zap.String("error", entry.Error),
		)
	}
}

// ActorHistory returns entries for one actor, newest first, paginated.
func (s *Service) ActorHistory(ctx context.Context, email string, offset, limit int64) ([]*Entry, error) {
	return s.store.ListByActor(ctx, email, offset, limit)
}

// FailedAttempts returns failed entries for one actor within the window.
func (s *Service) FailedAttempts(ctx context.Context, email string, window time.Duration) ([]*Entry, error) {
	return s.store.FailuresByActor(ctx, email, window)
}

// SuspiciousActivity returns all failures seen from one IP within the window.
func (s *Service) SuspiciousActivity(ctx context.Context, ip string, window time.Duration) ([]*Entry, error) {
	return s.store.FailuresByIP(ctx, ip, window)
}

// AuthStats aggregates outcome counts over the trailing window.
func (s *Service) AuthStats(ctx context.Context, window time.Duration) (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.SignInSuccesses, err = s.store.CountAction(ctx, ActionSignInSuccess, window); err != nil {
		return nil, err
	}
	if stats.SignInFailures, err = s.store.CountAction(ctx, ActionSignInFailure, window); err != nil {
		return nil, err
	}
	if stats.SignUps, err = s.store.CountAction(ctx, ActionSignUpSuccess, window); err != nil {
		return nil, err
	}
	if stats.PasswordResets, err = s.store.CountAction(ctx, ActionPasswordResetSuccess, window); err != nil {
		return nil, err
	}

	total := stats.SignInSuccesses + stats.SignInFailures
	if total > 0 {
		stats.SuccessRate = float64(stats.SignInSuccesses) / float64(total) * 100
	}

	return stats, nil
}
