package accessibility

import (
	"slices"
	"sync"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/style"
)

// Service builds a snapshot after each tick that touched the tree and
// forwards it to the exporter when it differs from the previous one.
type Service struct {
	mu       sync.RWMutex
	exporter Exporter
	enabled  bool
	scale    float64
	last     *Snapshot
	exported uint64
}

// NewService creates an enabled service. A nil exporter only records the
// latest snapshot.
func NewService(exporter Exporter) *Service {
	return &Service{exporter: exporter, enabled: true, scale: 1}
}

// SetDeviceScale sets the factor applied to bounds.
func (s *Service) SetDeviceScale(scale float64) {
	s.mu.Lock()
	if s.scale != scale {
		s.scale = scale
		s.last = nil
	}
	s.mu.Unlock()
}

// IsEnabled reports whether snapshots are built.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled turns snapshot building on or off. Re-enabling forces the
// next flush to export.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	if !enabled {
		s.last = nil
	}
	s.mu.Unlock()
}

// Flush builds a snapshot for tick and exports it if it changed. It
// reports whether an export happened.
func (s *Service) Flush(tick uint64, entities *entity.Store, styles *style.Store, geometry Geometry) bool {
	s.mu.RLock()
	enabled, scale := s.enabled, s.scale
	s.mu.RUnlock()
	if !enabled {
		return false
	}

	snap := Build(entities, styles, geometry, scale)
	snap.Tick = tick

	s.mu.Lock()
	if s.last != nil && slices.Equal(s.last.Nodes, snap.Nodes) {
		s.mu.Unlock()
		return false
	}
	s.last = &snap
	s.exported++
	exporter := s.exporter
	s.mu.Unlock()

	if exporter != nil {
		exporter.Export(snap)
	}
	return true
}

// Last returns the most recent exported snapshot. It is safe to call from
// any goroutine.
func (s *Service) Last() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Snapshot{}, false
	}
	return *s.last, true
}

// Exported returns how many snapshots were exported.
func (s *Service) Exported() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exported
}
