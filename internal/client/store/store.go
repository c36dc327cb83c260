package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/logging"
)

// DefaultRetries is the number of write attempts Set makes by default.
const DefaultRetries = 3

// retryStep is multiplied by the attempt number between write attempts.
const retryStep = time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Store struct {
	backend Backend
	logger  logging.Logger
	sleep   SleepFunc
}

type Option func(*Store)

// WithSleep replaces the delay used between write attempts.
func WithSleep(fn SleepFunc) Option {
	return func(s *Store) { s.sleep = fn }
}

// New wraps backend. A nil backend yields an uninitialized store: reads
// return defaults and writes report false.
func New(backend Backend, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.With("module", "local_store"),
		sleep:   sleepContext,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Initialized() bool {
	return s != nil && s.backend != nil
}

// GetRaw returns the stored JSON for key and whether it was found.
// Failures are logged and reported as not found.
func (s *Store) GetRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	if !s.Initialized() {
		s.logger.Warn(ctx, "read before store initialization", "key", key)
		return nil, false
	}
	b, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "store read failed", "error", &ReadError{Key: key, Err: err})
		return nil, false
	}
	return b, ok
}

// Get decodes the value stored under key, or returns def on any failure.
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	raw, ok := s.GetRaw(ctx, key)
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn(ctx, "store value undecodable", "error", &ReadError{Key: key, Err: err})
		return def
	}
	return v
}

// Set encodes and writes value, making up to retries attempts and waiting
// attempt*1s after each failed one. It returns false without retrying when
// the store is not initialized, and a *WriteExhaustedError once every
// attempt failed.
func (s *Store) Set(ctx context.Context, key string, value any, retries int) (bool, error) {
	if !s.Initialized() {
		s.logger.Warn(ctx, "write before store initialization", "key", key)
		return false, nil
	}
	if retries < 1 {
		retries = 1
	}

	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode %q: %w", key, err)
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = s.backend.Set(ctx, key, b)
		if lastErr == nil {
			return true, nil
		}
		s.logger.Warn(ctx, "store write failed", "key", key, "attempt", attempt, "error", lastErr)

		if err := s.sleep(ctx, time.Duration(attempt)*retryStep); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	s.logger.Error(ctx, "store write exhausted", "key", key, "attempts", retries)
	return false, &WriteExhaustedError{Key: key, Attempts: retries, Err: lastErr}
}

// Delete removes key and reports success.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if !s.Initialized() {
		s.logger.Warn(ctx, "delete before store initialization", "key", key)
		return false
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "store delete failed", "error", &DeleteError{Key: key, Err: err})
		return false
	}
	return true
}

// Keys lists stored keys with the given prefix; failures yield nil.
func (s *Store) Keys(ctx context.Context, prefix string) []string {
	if !s.Initialized() {
		return nil
	}
	keys, err := s.backend.Keys(ctx, prefix)
	if err != nil {
		s.logger.Warn(ctx, "store key listing failed", "prefix", prefix, "error", err)
		return nil
	}
	return keys
}

// DeleteChatHistory removes the session index of userID and the message log
// of every session it lists. It reports whether every delete succeeded.
func (s *Store) DeleteChatHistory(ctx context.Context, userID string) bool {
	sessions := Get(ctx, s, ChatSessionsKey(userID), []ChatSession(nil))
	stored := s.Keys(ctx, chatMessagesPrefix)

	ok := true
	for _, cs := range sessions {
		k := ChatMessagesKey(userID, cs.ID)
		if cs.ID == "" || !slices.Contains(stored, k) {
			continue
		}
		ok = s.Delete(ctx, k) && ok
	}
	return s.Delete(ctx, ChatSessionsKey(userID)) && ok
}
