package payload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/ruteri/context-factory/interfaces"
	"github.com/ruteri/context-factory/metrics"
)

// Store holds the current payload to be deployed into child contexts. It is
// process-wide state: all provisioning requests read from the same store,
// and only the owning factory identity may replace its contents.
type Store struct {
	owner interfaces.ContextName

	mu      sync.RWMutex
	code    []byte
	digest  [32]byte
	backend interfaces.PayloadBackend

	log *slog.Logger
}

// NewStore creates a payload store owned by the given factory identity,
// initialized with defaultPayload. If a backend is provided and holds a
// previously persisted payload, that value takes precedence over the
// default. The store never starts empty.
func NewStore(ctx context.Context, owner interfaces.ContextName, defaultPayload []byte, backend interfaces.PayloadBackend, log *slog.Logger) (*Store, error) {
	if len(defaultPayload) == 0 {
		return nil, fmt.Errorf("default payload must not be empty: %w", interfaces.ErrEmptyPayload)
	}

	s := &Store{
		owner:   owner,
		backend: backend,
		log:     log,
	}

	code := defaultPayload
	if backend != nil {
		persisted, err := backend.Load(ctx)
		switch {
		case err == nil && len(persisted) > 0:
			log.Info("Loaded persisted payload", "location", backend.LocationURI(), "size", len(persisted))
			code = persisted
		case errors.Is(err, interfaces.ErrPayloadNotFound):
			log.Info("No persisted payload, using default", "location", backend.LocationURI())
		case err != nil:
			return nil, fmt.Errorf("failed to load persisted payload: %w", err)
		}
	}

	s.set(code)
	return s, nil
}

// Replace atomically swaps the stored payload for newCode. It fails with
// ErrUnauthorized unless caller is the store's owner, and with
// ErrEmptyPayload if no bytes were supplied. No partial or interleaved view
// of old and new bytes is ever observable by a concurrent reader.
func (s *Store) Replace(ctx context.Context, caller interfaces.ContextName, newCode []byte) error {
	if caller != s.owner {
		return fmt.Errorf("%w: only %s may replace the payload", interfaces.ErrUnauthorized, s.owner)
	}
	if len(newCode) == 0 {
		return interfaces.ErrEmptyPayload
	}

	s.mu.Lock()
	s.set(newCode)
	backend := s.backend
	s.mu.Unlock()

	metrics.PayloadReplacements.Inc()
	s.log.Info("Payload replaced", "size", len(newCode), "digest", fmt.Sprintf("%x", s.Digest()))

	if backend != nil {
		if err := backend.Save(ctx, newCode); err != nil {
			// The in-memory value stays authoritative; persistence catches
			// up on the next successful replace.
			s.log.Error("Failed to persist payload", "err", err, "location", backend.LocationURI())
		}
	}
	return nil
}

// set swaps the payload and recomputes the digest. Callers hold the write
// lock, except during construction.
func (s *Store) set(code []byte) {
	owned := make([]byte, len(code))
	copy(owned, code)
	s.code = owned
	s.digest = sha3.Sum256(owned)
	metrics.PayloadSizeBytes.Set(float64(len(owned)))
}

// Bytes returns a copy of the current payload.
func (s *Store) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]byte, len(s.code))
	copy(out, s.code)
	return out
}

// Size returns the current payload length in bytes.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.code)
}

// Digest returns the SHA3-256 digest of the current payload.
func (s *Store) Digest() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest
}

// Owner returns the identity allowed to replace the payload.
func (s *Store) Owner() interfaces.ContextName {
	return s.owner
}
