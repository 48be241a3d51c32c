// Package access decides who may run organizer commands.
package access

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Service holds the organizer list. An empty list lets everyone organize,
// which matches a bot run by a single group without configured organizers.
type Service struct {
	mu         sync.RWMutex
	organizers map[int64]struct{}
	logger     zerolog.Logger
}

// NewService creates the service with an initial organizer list.
func NewService(organizers []int64, logger zerolog.Logger) *Service {
	s := &Service{logger: logger.With().Str("component", "access").Logger()}
	s.SetOrganizers(organizers)
	return s
}

// SetOrganizers replaces the organizer list.
func (s *Service) SetOrganizers(ids []int64) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	changed := len(set) != len(s.organizers)
	s.organizers = set
	s.mu.Unlock()

	if changed {
		s.logger.Info().Int("organizers", len(set)).Msg("organizer list updated")
	}
}

// IsOrganizer reports whether userID may run organizer commands.
func (s *Service) IsOrganizer(_ context.Context, userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.organizers) == 0 {
		return true
	}
	_, ok := s.organizers[userID]
	return ok
}
