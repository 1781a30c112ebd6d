package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webreplay/internal/config"
	"webreplay/internal/executor"
	"webreplay/internal/models"
	"webreplay/internal/recorder"
	"webreplay/internal/store"
	"webreplay/pkg/chrome"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrTooManyRuns = errors.New("too many concurrent browser runs")
	ErrShutdown    = errors.New("run manager is shutting down")
)

type RunKind string

const (
	KindCapture RunKind = "capture"
	KindReplay  RunKind = "replay"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Run is the externally visible state of one capture or replay.
type Run struct {
	ID          string           `json:"id"`
	Kind        RunKind          `json:"kind"`
	RecordingID string           `json:"recording_id"`
	URL         string           `json:"url,omitempty"`
	Status      RunStatus        `json:"status"`
	Events      int              `json:"events"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     *time.Time       `json:"ended_at,omitempty"`
	Result      *executor.Result `json:"result,omitempty"`

	// Expected is how long the run should take: the capture window, or the
	// summed delays of the replayed session.
	Expected time.Duration `json:"-"`
}

func (r Run) Finished() bool {
	return r.Status != StatusRunning
}

// Progress is streamed to subscribers for every captured signal or replayed
// event, and once more when the run ends.
type Progress struct {
	RunID  string           `json:"run_id"`
	Kind   RunKind          `json:"kind"`
	Index  int              `json:"index"`
	Type   models.EventType `json:"type,omitempty"`
	Delay  int64            `json:"delay,omitempty"`
	Status RunStatus        `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// CaptureFunc records one session from url.
type CaptureFunc func(ctx context.Context, url string, duration time.Duration, onSignal recorder.SignalFunc) (models.Session, error)

// ReplayFunc replays one session.
type ReplayFunc func(ctx context.Context, session models.Session, onEvent executor.EventFunc) (executor.Result, error)

// ChromeCapture captures with a fresh browser configured by cfg.
func ChromeCapture(cfg *config.Config, log zerolog.Logger) CaptureFunc {
	return func(ctx context.Context, url string, duration time.Duration, onSignal recorder.SignalFunc) (models.Session, error) {
		return recorder.Capture(ctx, url, recorder.Options{
			Browser:  browserOptions(cfg),
			Duration: duration,
			OnSignal: onSignal,
		}, log)
	}
}

// ChromeReplay replays in a fresh browser configured by cfg.
func ChromeReplay(cfg *config.Config, log zerolog.Logger) ReplayFunc {
	return func(ctx context.Context, session models.Session, onEvent executor.EventFunc) (executor.Result, error) {
		return executor.Replay(ctx, session, executor.Options{
			Browser:      browserOptions(cfg),
			InputTimeout: cfg.Replay.InputTimeout,
			Linger:       cfg.Replay.Linger,
			OnEvent:      onEvent,
		}, log)
	}
}

func browserOptions(cfg *config.Config) chrome.Options {
	return chrome.Options{
		Path:     cfg.Chrome.Path,
		Headless: cfg.Chrome.HeadlessMode,
		Device:   cfg.Chrome.Device,
	}
}

type runState struct {
	run         Run
	cancel      context.CancelFunc
	subscribers map[chan Progress]struct{}
}

// RunManager owns all capture and replay runs of the server. Every run holds
// one browser, and at most maxRuns may be running at once.
type RunManager struct {
	store   store.Store
	capture CaptureFunc
	replay  ReplayFunc
	maxRuns int
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex  sync.RWMutex
	runs   map[string]*runState
	closed bool
}

func NewRunManager(st store.Store, capture CaptureFunc, replay ReplayFunc, maxRuns int, log zerolog.Logger) *RunManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunManager{
		store:   st,
		capture: capture,
		replay:  replay,
		maxRuns: maxRuns,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		runs:    make(map[string]*runState),
	}
}

// StartCapture begins recording url in the background. The session is saved
// under the run id once the capture window closes. A cancelled capture still
// saves whatever it captured before the cancellation.
func (m *RunManager) StartCapture(url, name string, duration time.Duration) (Run, error) {
	id := uuid.New().String()
	if name == "" {
		name = url
	}
	state, ctx, err := m.begin(Run{ID: id, Kind: KindCapture, RecordingID: id, URL: url, Expected: duration})
	if err != nil {
		return Run{}, err
	}

	m.log.Info().Str("run", id).Str("url", url).Msg("🔴 Capture started")

	started := state.run
	go func() {
		defer m.wg.Done()

		session, err := m.capture(ctx, url, duration, func(count int, sig models.Signal) {
			m.progress(id, func(r *Run) Progress {
				r.Events = count
				return Progress{Index: count - 1, Type: sig.Type}
			})
		})
		if err == nil || (errors.Is(err, context.Canceled) && len(session) > 0) {
			if saveErr := m.save(id, name, url, session); saveErr != nil {
				err = saveErr
			}
		}
		m.finish(state, nil, err)
	}()

	return started, nil
}

func (m *RunManager) save(id, name, url string, session models.Session) error {
	rec := &models.Recording{ID: id, Name: name, StartURL: url}
	if err := rec.SetSession(session); err != nil {
		return err
	}
	if err := m.store.Save(context.Background(), rec); err != nil {
		return err
	}
	m.log.Info().Str("run", id).Int("events", len(session)).Msg("💾 Recording saved")
	return nil
}

// StartReplay replays a stored recording in the background.
func (m *RunManager) StartReplay(ctx context.Context, recordingID string) (Run, error) {
	rec, err := m.store.Get(ctx, recordingID)
	if err != nil {
		return Run{}, err
	}
	session, err := rec.GetSession()
	if err != nil {
		return Run{}, err
	}
	startURL, err := session.StartURL()
	if err != nil {
		return Run{}, err
	}

	id := uuid.New().String()
	state, runCtx, err := m.begin(Run{
		ID:          id,
		Kind:        KindReplay,
		RecordingID: recordingID,
		URL:         startURL,
		Expected:    time.Duration(session.Duration()) * time.Millisecond,
	})
	if err != nil {
		return Run{}, err
	}

	m.log.Info().Str("run", id).Str("recording", recordingID).Msg("🎬 Replay started")

	started := state.run
	go func() {
		defer m.wg.Done()

		result, err := m.replay(runCtx, session, func(index int, ev models.Event, delay time.Duration) {
			m.progress(id, func(r *Run) Progress {
				r.Events = index + 1
				return Progress{Index: index, Type: ev.Type, Delay: delay.Milliseconds()}
			})
		})
		m.finish(state, &result, err)
	}()

	return started, nil
}

func (m *RunManager) begin(run Run) (*runState, context.Context, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return nil, nil, ErrShutdown
	}
	if m.maxRuns > 0 && m.runningLocked() >= m.maxRuns {
		return nil, nil, fmt.Errorf("%w (limit %d)", ErrTooManyRuns, m.maxRuns)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	run.Status = StatusRunning
	run.StartedAt = time.Now()
	state := &runState{
		run:         run,
		cancel:      cancel,
		subscribers: make(map[chan Progress]struct{}),
	}
	m.runs[run.ID] = state
	m.wg.Add(1)
	return state, ctx, nil
}

func (m *RunManager) runningLocked() int {
	n := 0
	for _, s := range m.runs {
		if !s.run.Finished() {
			n++
		}
	}
	return n
}

func (m *RunManager) progress(id string, update func(r *Run) Progress) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	state, ok := m.runs[id]
	if !ok || state.run.Finished() {
		return
	}
	p := update(&state.run)
	p.RunID = id
	p.Kind = state.run.Kind
	p.Status = state.run.Status
	m.publishLocked(state, p)
}

func (m *RunManager) finish(state *runState, result *executor.Result, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	run := &state.run
	run.EndedAt = &now
	run.Result = result

	switch {
	case err == nil:
		run.Status = StatusCompleted
	case errors.Is(err, context.Canceled):
		run.Status = StatusCancelled
		run.Error = err.Error()
	default:
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	state.cancel()

	m.publishLocked(state, Progress{
		RunID:  run.ID,
		Kind:   run.Kind,
		Index:  run.Events,
		Status: run.Status,
		Error:  run.Error,
	})
	for ch := range state.subscribers {
		close(ch)
	}
	state.subscribers = nil

	ev := m.log.Info()
	if err != nil {
		ev = m.log.Warn().Err(err)
	}
	ev.Str("run", run.ID).Str("kind", string(run.Kind)).Str("status", string(run.Status)).Int("events", run.Events).Msg("🏁 Run finished")
}

// publishLocked never blocks; a subscriber that falls behind loses updates.
func (m *RunManager) publishLocked(state *runState, p Progress) {
	for ch := range state.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

func (m *RunManager) Get(id string) (Run, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return state.run, nil
}

// List returns all known runs, newest first.
func (m *RunManager) List() []Run {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	runs := make([]Run, 0, len(m.runs))
	for _, s := range m.runs {
		runs = append(runs, s.run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// Running reports how many runs currently hold a browser.
func (m *RunManager) Running() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.runningLocked()
}

// Subscribe streams progress of a running run. The channel is closed when the
// run ends; for a finished run it yields the final state and closes.
func (m *RunManager) Subscribe(id string) (<-chan Progress, func(), error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, nil, ErrRunNotFound
	}

	ch := make(chan Progress, 64)
	if state.run.Finished() {
		ch <- Progress{
			RunID:  id,
			Kind:   state.run.Kind,
			Index:  state.run.Events,
			Status: state.run.Status,
			Error:  state.run.Error,
		}
		close(ch)
		return ch, func() {}, nil
	}

	state.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		if _, ok := state.subscribers[ch]; ok {
			delete(state.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

// Cancel stops a running run. The run closes its browser and ends as cancelled.
func (m *RunManager) Cancel(id string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if !state.run.Finished() {
		m.log.Info().Str("run", id).Msg("Cancelling run")
		state.cancel()
	}
	return nil
}

// Prune forgets finished runs that ended before cutoff.
func (m *RunManager) Prune(cutoff time.Time) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	pruned := 0
	for id, s := range m.runs {
		if s.run.Finished() && s.run.EndedAt != nil && s.run.EndedAt.Before(cutoff) {
			delete(m.runs, id)
			pruned++
		}
	}
	return pruned
}

// CancelOverdue cancels runs still going at now although they started more
// than their expected duration plus grace ago.
func (m *RunManager) CancelOverdue(now time.Time, grace time.Duration) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	cancelled := 0
	for _, s := range m.runs {
		deadline := s.run.StartedAt.Add(s.run.Expected + grace)
		if !s.run.Finished() && now.After(deadline) {
			s.cancel()
			cancelled++
		}
	}
	return cancelled
}

// Shutdown cancels every run and waits until their browsers are released or
// ctx expires.
func (m *RunManager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	m.closed = true
	m.mutex.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
