package delivery

import "sync"

type Stats struct {
	Delivered       int
	EventsDelivered int
	Failed          int
	Dropped         int
	Retries         int
	mu              sync.RWMutex
}

func (s *Stats) IncDelivered(events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delivered++
	s.EventsDelivered += events
}

func (s *Stats) IncFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

func (s *Stats) IncDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dropped++
}

func (s *Stats) IncRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Retries++
}

func (s *Stats) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Delivered:       s.Delivered,
		EventsDelivered: s.EventsDelivered,
		Failed:          s.Failed,
		Dropped:         s.Dropped,
		Retries:         s.Retries,
	}
}
