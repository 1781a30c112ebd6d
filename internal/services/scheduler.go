package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"webreplay/internal/store"
	"webreplay/pkg/logger"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// Schedule replays one recording on a cron expression with seconds.
type Schedule struct {
	RecordingID    string    `json:"recording_id"`
	CronExpression string    `json:"cron_expression"`
	Next           time.Time `json:"next"`
	entryID        cron.EntryID
}

type SchedulerService struct {
	cron  *cron.Cron
	runs  *RunManager
	store store.Store
	log   zerolog.Logger

	mutex     sync.Mutex
	schedules map[string]*Schedule
}

func NewSchedulerService(runs *RunManager, st store.Store, log zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cron.PrintfLogger(logger.Printf(log, zerolog.DebugLevel))),
		),
		runs:      runs,
		store:     st,
		log:       log,
		schedules: make(map[string]*Schedule),
	}
}

// Run starts the cron loop and stops it when ctx is done, waiting for jobs
// that are still being started.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info().Msg("Scheduler service initialized")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler service stopped")
	return nil
}

// AddSchedule replaces any existing schedule of the recording.
func (s *SchedulerService) AddSchedule(ctx context.Context, recordingID, expr string) (Schedule, error) {
	if _, err := s.store.Get(ctx, recordingID); err != nil {
		return Schedule{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entryID, err := s.cron.AddFunc(expr, func() {
		s.executeScheduledReplay(recordingID)
	})
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if old, ok := s.schedules[recordingID]; ok {
		s.cron.Remove(old.entryID)
	}

	sch := &Schedule{RecordingID: recordingID, CronExpression: expr, entryID: entryID}
	s.schedules[recordingID] = sch

	s.log.Info().Str("recording", recordingID).Int("entry", int(entryID)).Str("cron", expr).Msg("Added replay schedule")
	return s.withNext(sch), nil
}

func (s *SchedulerService) RemoveSchedule(recordingID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sch, ok := s.schedules[recordingID]
	if !ok {
		return ErrScheduleNotFound
	}
	s.cron.Remove(sch.entryID)
	delete(s.schedules, recordingID)

	s.log.Info().Str("recording", recordingID).Msg("Removed replay schedule")
	return nil
}

func (s *SchedulerService) List() []Schedule {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	list := make([]Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		list = append(list, s.withNext(sch))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RecordingID < list[j].RecordingID
	})
	return list
}

func (s *SchedulerService) withNext(sch *Schedule) Schedule {
	out := *sch
	out.Next = s.cron.Entry(sch.entryID).Next
	return out
}

func (s *SchedulerService) executeScheduledReplay(recordingID string) {
	run, err := s.runs.StartReplay(context.Background(), recordingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Str("recording", recordingID).Msg("Scheduled recording no longer exists, removing schedule")
			_ = s.RemoveSchedule(recordingID)
			return
		}
		s.log.Error().Err(err).Str("recording", recordingID).Msg("Failed to start scheduled replay")
		return
	}
	s.log.Info().Str("recording", recordingID).Str("run", run.ID).Msg("Started scheduled replay")
}
