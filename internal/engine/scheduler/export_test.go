package scheduler

import (
	"maps"

	"go.trai.ch/kiln/internal/core/domain"
)

// GetTaskStatusMap returns a copy of the internal step status map.
// This is exported for testing purposes only.
func (s *Scheduler) GetTaskStatusMap() map[domain.InternedString]TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.taskStatus)
}
