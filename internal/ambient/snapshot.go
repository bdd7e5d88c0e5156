package ambient

import "sync"

type snapshot struct {
	mu        sync.RWMutex
	particles []Particle
}

func (s *snapshot) store(p []Particle) {
	cp := append([]Particle(nil), p...)
	s.mu.Lock()
	s.particles = cp
	s.mu.Unlock()
}

func (s *snapshot) load() []Particle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Particle(nil), s.particles...)
}
