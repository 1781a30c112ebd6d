package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"webreplay/internal/models"
)

var (
	ErrAlreadyRun         = errors.New("dispatcher already ran")
	ErrUnsupportedPayload = errors.New("payload does not match event type")
)

// Page is the browser surface the dispatcher drives. Coordinates are viewport
// pixels of the replay page.
type Page interface {
	Navigate(ctx context.Context, url string) error
	MouseMove(ctx context.Context, x, y float64) error
	Click(ctx context.Context, x, y float64, button models.MouseButton) error
	KeyDown(ctx context.Context, key models.Key) error
	KeyUp(ctx context.Context, key models.Key) error
	Fill(ctx context.Context, selector, value string) error
	ScrollTo(ctx context.Context, x, y float64) error
	ScrollPosition(ctx context.Context) (float64, float64, error)
	ApplyScale(ctx context.Context, scale float64) error
}

type State int32

const (
	StateIdle State = iota
	StateWaiting
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StepLog is the outcome of one replayed event.
type StepLog struct {
	Timestamp   time.Time        `json:"timestamp"`
	StepIndex   int              `json:"step_index"`
	StepType    models.EventType `json:"step_type"`
	StepStatus  string           `json:"step_status"` // success, skipped, failed
	Delay       int64            `json:"delay"`       // milliseconds waited before the step
	Duration    int64            `json:"duration"`    // milliseconds
	ErrorDetail string           `json:"error_detail,omitempty"`
}

type Result struct {
	Replayed      int       `json:"replayed"`
	InputFailures int       `json:"input_failures"`
	Logs          []StepLog `json:"logs"`
}

// EventFunc is called after every dispatched event with the delay that was
// waited before it.
type EventFunc func(index int, ev models.Event, delay time.Duration)

// Dispatcher replays one session against one page, strictly in order. A
// dispatcher runs once.
type Dispatcher struct {
	page  Page
	log   zerolog.Logger
	state atomic.Int32

	// OnEvent, when set, observes progress.
	OnEvent EventFunc
	// Sleep waits between events. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(page Page, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		page:  page,
		log:   log,
		Sleep: sleepContext,
	}
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

// Run waits each event's delay and then performs exactly one action for it.
// Input failures are logged and skipped; any other action error stops the run.
func (d *Dispatcher) Run(ctx context.Context, session models.Session) (Result, error) {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateWaiting)) {
		return Result{}, ErrAlreadyRun
	}
	defer d.setState(StateDone)

	result := Result{Logs: make([]StepLog, 0, len(session))}

	for i, ev := range session {
		delay := time.Duration(ev.Delay) * time.Millisecond
		if err := d.Sleep(ctx, delay); err != nil {
			return result, err
		}

		d.setState(StateDispatching)
		start := time.Now()
		err := d.dispatch(ctx, ev)
		step := StepLog{
			Timestamp:  start,
			StepIndex:  i,
			StepType:   ev.Type,
			StepStatus: "success",
			Delay:      ev.Delay,
			Duration:   time.Since(start).Milliseconds(),
		}

		if err != nil {
			step.ErrorDetail = err.Error()
			if ev.Type != models.EventInput {
				step.StepStatus = "failed"
				result.Logs = append(result.Logs, step)
				d.log.Error().Err(err).Int("index", i).Str("type", string(ev.Type)).Msg("❌ Replay aborted")
				return result, fmt.Errorf("event %d (%s): %w", i, ev.Type, err)
			}
			step.StepStatus = "skipped"
			result.InputFailures++
			d.log.Warn().Err(err).Int("index", i).Msg("⚠️ Input target not found, skipping")
		} else {
			result.Replayed++
			d.log.Info().Int("index", i).Str("type", string(ev.Type)).Int64("delay", ev.Delay).Msg("▶️ Replayed event")
		}
		result.Logs = append(result.Logs, step)

		if d.OnEvent != nil {
			d.OnEvent(i, ev, delay)
		}
		d.setState(StateWaiting)
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev models.Event) error {
	switch p := ev.Data.(type) {
	case models.MouseMove:
		return d.page.MouseMove(ctx, p.X, p.Y)
	case models.Click:
		return d.page.Click(ctx, p.X, p.Y, p.MouseButton())
	case models.Key:
		if ev.Type == models.EventKeyUp {
			return d.page.KeyUp(ctx, p)
		}
		return d.page.KeyDown(ctx, p)
	case models.Input:
		if p.Selector == "" {
			return nil
		}
		return d.page.Fill(ctx, p.Selector, p.Value)
	case models.Scroll:
		return d.page.ScrollTo(ctx, p.ScrollX, p.ScrollY)
	case models.URLChange:
		if p.URL == "" {
			return nil
		}
		return d.page.Navigate(ctx, p.URL)
	case models.Zoom:
		return d.zoom(ctx, p)
	}
	return fmt.Errorf("%w: %s carries %T", ErrUnsupportedPayload, ev.Type, ev.Data)
}

func (d *Dispatcher) zoom(ctx context.Context, z models.Zoom) error {
	scrollX, scrollY, err := d.page.ScrollPosition(ctx)
	if err != nil {
		return err
	}
	anchorX, anchorY := z.Anchor()
	x := ZoomScroll(scrollX, anchorX, z.OldScale, z.NewScale)
	y := ZoomScroll(scrollY, anchorY, z.OldScale, z.NewScale)

	if err := d.page.ApplyScale(ctx, z.NewScale); err != nil {
		return err
	}
	return d.page.ScrollTo(ctx, x, y)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
