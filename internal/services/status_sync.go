package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StatusSyncService periodically cleans up the run registry. A run still going
// grace after its expected end is cancelled, finished runs are forgotten after
// the retention period.
type StatusSyncService struct {
	runs      *RunManager
	interval  time.Duration
	grace     time.Duration
	retention time.Duration
	log       zerolog.Logger
}

func NewStatusSyncService(runs *RunManager, interval, grace, retention time.Duration, log zerolog.Logger) *StatusSyncService {
	return &StatusSyncService{
		runs:      runs,
		interval:  interval,
		grace:     grace,
		retention: retention,
		log:       log,
	}
}

// Run syncs every interval until ctx is done.
func (s *StatusSyncService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("Status sync service started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Status sync service stopped")
			return nil
		case now := <-ticker.C:
			s.Sync(now)
		}
	}
}

// Sync performs one cleanup pass as of now.
func (s *StatusSyncService) Sync(now time.Time) {
	if s.grace > 0 {
		if n := s.runs.CancelOverdue(now, s.grace); n > 0 {
			s.log.Warn().Int("runs", n).Dur("grace", s.grace).Msg("⏱️ Cancelled runs running too long")
		}
	}
	if n := s.runs.Prune(now.Add(-s.retention)); n > 0 {
		s.log.Debug().Int("runs", n).Msg("Pruned finished runs")
	}
}
