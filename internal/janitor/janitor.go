// Package janitor reclaims the file state of rooms that have sat empty.
// Rooms are created lazily on first join and their files intentionally
// outlive any single member; without a reaper an abandoned room's file
// list would be held for the life of the process.
package janitor

import (
	"log"
	"sync"
	"time"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/registry"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/store"
)

type Config struct {
	Interval    time.Duration
	GracePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		GracePeriod: 10 * time.Minute,
	}
}

type Service struct {
	registry *registry.Registry
	store    *store.Store
	config   Config

	// Rooms observed with files but no members, and when first seen empty
	emptySince map[string]time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(reg *registry.Registry, st *store.Store, config Config) *Service {
	return &Service{
		registry:   reg,
		store:      st,
		config:     config,
		emptySince: make(map[string]time.Time),
		stop:       make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("🧹 Room janitor started (interval: %v, grace: %v)",
		s.config.Interval, s.config.GracePeriod)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("🧹 Room janitor stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep reclaims rooms whose membership has been empty for longer than the
// grace period. The grace period keeps files alive across brief
// disconnect/reconnect cycles.
func (s *Service) sweep(now time.Time) {
	occupied := s.registry.ActiveRooms()

	reclaimed := 0
	for _, roomID := range s.store.Rooms() {
		if occupied[roomID] > 0 {
			delete(s.emptySince, roomID)
			continue
		}

		since, ok := s.emptySince[roomID]
		if !ok {
			s.emptySince[roomID] = now
			continue
		}

		if now.Sub(since) >= s.config.GracePeriod {
			s.store.DropRoom(roomID)
			delete(s.emptySince, roomID)
			reclaimed++
		}
	}

	// Forget rooms whose files were removed through normal deletes
	current := make(map[string]bool)
	for _, roomID := range s.store.Rooms() {
		current[roomID] = true
	}
	for roomID := range s.emptySince {
		if !current[roomID] {
			delete(s.emptySince, roomID)
		}
	}

	if reclaimed > 0 {
		log.Printf("🧹 Reclaimed %d abandoned rooms", reclaimed)
	}
}
