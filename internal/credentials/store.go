// Package credentials holds the process-wide API key and notifies observers
// when its presence changes.
package credentials

import (
	"context"
	"strings"
	"sync"

	apperrors "facecast/internal/common/errors"
	"facecast/internal/common/logger"
)

// Observer receives whether a credential is currently set.
type Observer func(present bool)

// Source provides the current credential at call time.
type Source interface {
	Get() string
}

// Store holds a single API key. Reads are cheap and safe from any goroutine.
// Writes are serialized so persistence, memory and observers agree on the
// last value. Observers must not call Set or Load.
type Store struct {
	persister Persister
	logger    logger.Logger

	writeMu sync.Mutex

	mu    sync.RWMutex
	value string

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextID    uint64
}

func NewStore(persister Persister, log logger.Logger) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	return &Store{
		persister: persister,
		logger:    log.With(map[string]interface{}{"component": "credentials"}),
		observers: make(map[uint64]Observer),
	}
}

// Load populates the store at startup. buildTime wins over the persisted
// value when both are present. Observers are notified once.
func (s *Store) Load(ctx context.Context, buildTime string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	value := strings.TrimSpace(buildTime)
	source := "build"
	if value == "" {
		persisted, err := s.persister.Load(ctx)
		if err != nil {
			return apperrors.NewCredentialPersistFailedError("load", err)
		}
		value = strings.TrimSpace(persisted)
		source = "persisted"
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if value != "" {
		s.logger.Debug("credential loaded", map[string]interface{}{"source": source})
	}
	s.notify(value != "")
	return nil
}

// Set replaces the credential, persists it and notifies every observer.
// An empty value clears the credential.
func (s *Store) Set(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var err error
	if value == "" {
		err = s.persister.Delete(ctx)
	} else {
		err = s.persister.Save(ctx, value)
	}
	if err != nil {
		return apperrors.NewCredentialPersistFailedError("save", err)
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	s.notify(value != "")
	return nil
}

// Clear removes the credential from memory and persistence.
func (s *Store) Clear(ctx context.Context) error {
	return s.Set(ctx, "")
}

func (s *Store) Has() bool {
	return s.Get() != ""
}

func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Subscribe registers fn, invokes it immediately with the current state and
// returns a function that de-registers it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	// Holding writeMu keeps a concurrent Set from reaching fn before its
	// initial call.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.obsMu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	s.call(fn, s.Has())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify(present bool) {
	s.obsMu.Lock()
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	s.obsMu.Unlock()

	// Observers may unsubscribe themselves or others while being notified.
	for _, id := range ids {
		s.obsMu.Lock()
		fn, ok := s.observers[id]
		s.obsMu.Unlock()
		if ok {
			s.call(fn, present)
		}
	}
}

func (s *Store) call(fn Observer, present bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("credential observer panicked", map[string]interface{}{"panic": r})
		}
	}()
	fn(present)
}
