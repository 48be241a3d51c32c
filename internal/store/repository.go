package store

import (
	"context"
	"fmt"
	"sync"

	"topicvote/internal/model"

	"github.com/rs/zerolog"
)

// Backend persists the serialized state. Load returns nil, nil when nothing
// has been stored yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
	Ping(ctx context.Context) error
}

// Repository loads and saves the shared state through a Backend.
type Repository struct {
	backend  Backend
	defaults model.Layout
	logger   *zerolog.Logger
}

// NewRepository wires a backend. defaults is the layout of a fresh store.
func NewRepository(backend Backend, defaults model.Layout, logger *zerolog.Logger) *Repository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Repository{backend: backend, defaults: defaults, logger: logger}
}

// LoadState reads and normalizes the persisted state.
func (r *Repository) LoadState(ctx context.Context) (*model.State, error) {
	blob, err := r.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	s, mig, err := Load(blob, r.defaults)
	if err != nil {
		return nil, err
	}
	if mig.Migrated() {
		r.logger.Info().Int("from_version", mig.FromVersion).Msg("state migrated")
	}
	if mig.DroppedSlots > 0 {
		r.logger.Warn().Int("dropped", mig.DroppedSlots).Msg("dropped unreadable booking slots")
	}
	r.logger.Info().
		Int("topics", len(s.Topics)).
		Int("voters", s.VoterCount()).
		Int("bookings", s.BookingCount()).
		Msg("state loaded")
	return s, nil
}

// SaveState serializes s and writes it.
func (r *Repository) SaveState(ctx context.Context, s *model.State) error {
	blob, err := Serialize(s)
	if err != nil {
		return err
	}
	if err := r.backend.Save(ctx, blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Ping checks the backend.
func (r *Repository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// MemoryBackend keeps the blob in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	blob []byte
	// Err, when set, is returned by Save.
	Err error
}

func (m *MemoryBackend) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryBackend) Save(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.blob = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}
