// Package livefeed polls for newly created reports and pushes them to the
// websocket hub.
package livefeed

import (
	"context"
	"sync"
	"time"

	"civic-reports-service/database"
	"civic-reports-service/websocket"

	"github.com/apex/log"
)

const pollInterval = 5 * time.Second

// Service drives the live report feed.
type Service struct {
	reports *database.ReportsService
	hub     *websocket.Hub

	lastProcessedSeq int64
	mu               sync.RWMutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a new live feed service
func NewService(reports *database.ReportsService, hub *websocket.Hub) *Service {
	return &Service{
		reports:  reports,
		hub:      hub,
		stopChan: make(chan struct{}),
	}
}

// Start starts the hub and the broadcast loop.
func (s *Service) Start(ctx context.Context) error {
	go s.hub.Run()

	// Start from the newest existing report; the feed is for new activity,
	// not backfill.
	existing, err := s.reports.ReportsSince(ctx, 0)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.lastProcessedSeq = existing[len(existing)-1].Seq
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	log.Info("Live feed service started")
	return nil
}

// Stop stops the broadcast loop gracefully.
func (s *Service) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("Live feed service stopped")
}

// Hub returns the underlying websocket hub.
func (s *Service) Hub() *websocket.Hub {
	return s.hub
}

func (s *Service) broadcastLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.broadcastNew()
		}
	}
}

func (s *Service) broadcastNew() {
	s.mu.RLock()
	since := s.lastProcessedSeq
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	defer cancel()

	reports, err := s.reports.ReportsSince(ctx, since)
	if err != nil {
		log.Errorf("Live feed poll failed: %v", err)
		return
	}
	if len(reports) == 0 {
		return
	}

	s.hub.BroadcastReports(reports)

	s.mu.Lock()
	s.lastProcessedSeq = reports[len(reports)-1].Seq
	s.mu.Unlock()
}
