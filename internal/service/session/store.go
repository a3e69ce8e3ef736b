// Package session keeps per-user conversation state. A session is the only
// record of which workflow step a user is on; it disappears when the workflow
// ends or after the idle timeout.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// DefaultIdleTimeout applies when a store is built with a zero timeout.
const DefaultIdleTimeout = 30 * time.Minute

// ErrNoSession is returned when a user has no active session.
var ErrNoSession = errors.New("no active session")

// Kind identifies a workflow.
type Kind string

const (
	KindAddInstrument Kind = "add_instrument"
	KindEditAmount    Kind = "edit_amount"
)

// Step identifies a position inside a workflow.
type Step string

// State is the conversation state of one user.
type State struct {
	Kind  Kind
	Step  Step
	Draft models.Draft
	// Target is the number of the instrument an amount edit applies to.
	Target    int
	StartedAt time.Time
	UpdatedAt time.Time
}

// Store maps user ids to their state. Entries expire after the idle timeout;
// every read or write restarts the countdown.
type Store struct {
	cache  *ttlcache.Cache[int64, State]
	logger *zap.Logger
	now    func() time.Time
}

// NewStore builds a store and starts its expiry loop. Call Close to stop it.
func NewStore(idle time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	cache := ttlcache.New[int64, State](
		ttlcache.WithTTL[int64, State](idle),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[int64, State]) {
		if reason == ttlcache.EvictionReasonExpired {
			logger.Info("session expired",
				zap.Int64("user_id", item.Key()),
				zap.String("kind", string(item.Value().Kind)),
				zap.String("step", string(item.Value().Step)))
		}
	})
	go cache.Start()

	return &Store{cache: cache, logger: logger, now: time.Now}
}

// Begin creates a session, replacing any session the user already had.
func (s *Store) Begin(userID int64, kind Kind, step Step) State {
	now := s.now()
	if prev, ok := s.Get(userID); ok {
		s.logger.Info("replacing active session",
			zap.Int64("user_id", userID),
			zap.String("previous_kind", string(prev.Kind)),
			zap.String("kind", string(kind)))
	}

	state := State{Kind: kind, Step: step, StartedAt: now, UpdatedAt: now}
	s.cache.Set(userID, state, ttlcache.DefaultTTL)
	return state
}

// BeginEdit starts an amount edit targeting the given instrument.
func (s *Store) BeginEdit(userID int64, step Step, number int) State {
	state := s.Begin(userID, KindEditAmount, step)
	state.Target = number
	s.cache.Set(userID, state, ttlcache.DefaultTTL)
	return state
}

// Get returns the active session of the user.
func (s *Store) Get(userID int64) (State, bool) {
	item := s.cache.Get(userID)
	if item == nil {
		return State{}, false
	}
	return item.Value(), true
}

// Active reports whether the user has a session.
func (s *Store) Active(userID int64) bool {
	_, ok := s.Get(userID)
	return ok
}

// Advance moves the session to step with the merged draft.
func (s *Store) Advance(userID int64, step Step, draft models.Draft) (State, error) {
	state, ok := s.Get(userID)
	if !ok {
		return State{}, ErrNoSession
	}
	state.Step = step
	state.Draft = draft
	state.UpdatedAt = s.now()
	s.cache.Set(userID, state, ttlcache.DefaultTTL)
	return state, nil
}

// End removes the session and reports whether one existed.
func (s *Store) End(userID int64) bool {
	_, ok := s.cache.GetAndDelete(userID)
	return ok
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop.
func (s *Store) Close() {
	s.cache.Stop()
}
