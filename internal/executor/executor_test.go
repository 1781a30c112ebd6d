package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"webreplay/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePage struct {
	mu       sync.Mutex
	calls    []string
	scrollX  float64
	scrollY  float64
	scale    float64
	fillErr  error
	clickErr error
}

func (p *fakePage) record(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.record("navigate %s", url)
	return nil
}

func (p *fakePage) MouseMove(_ context.Context, x, y float64) error {
	p.record("move %v,%v", x, y)
	return nil
}

func (p *fakePage) Click(_ context.Context, x, y float64, button models.MouseButton) error {
	p.record("click %v,%v %s", x, y, button)
	return p.clickErr
}

func (p *fakePage) KeyDown(_ context.Context, key models.Key) error {
	p.record("keydown %s", key.Key)
	return nil
}

func (p *fakePage) KeyUp(_ context.Context, key models.Key) error {
	p.record("keyup %s", key.Key)
	return nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	p.record("fill %s=%s", selector, value)
	return p.fillErr
}

func (p *fakePage) ScrollTo(_ context.Context, x, y float64) error {
	p.record("scroll %v,%v", x, y)
	p.scrollX, p.scrollY = x, y
	return nil
}

func (p *fakePage) ScrollPosition(context.Context) (float64, float64, error) {
	return p.scrollX, p.scrollY, nil
}

func (p *fakePage) ApplyScale(_ context.Context, scale float64) error {
	p.record("scale %v", scale)
	p.scale = scale
	return nil
}

func (p *fakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// newTestDispatcher records requested waits instead of sleeping.
func newTestDispatcher(page Page) (*Dispatcher, *[]time.Duration) {
	waits := &[]time.Duration{}
	d := NewDispatcher(page, zerolog.Nop())
	d.Sleep = func(ctx context.Context, dur time.Duration) error {
		*waits = append(*waits, dur)
		return ctx.Err()
	}
	return d, waits
}

func ptr(s string) *string { return &s }

func sessionFrom(t *testing.T, raw string) models.Session {
	t.Helper()
	var s models.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestDispatcher_OrderAndWaits(t *testing.T) {
	session := sessionFrom(t, `[
		{"type":"mousemove","data":{"x":1,"y":2},"url":"https://example.com/","delay":100,"time":1},
		{"type":"click","data":{"x":10,"y":20,"button":0},"url":"https://example.com/","delay":50,"time":2},
		{"type":"keydown","data":{"key":"a","code":"KeyA"},"url":"https://example.com/","delay":0,"time":3},
		{"type":"keyup","data":{"key":"a","code":"KeyA"},"url":"https://example.com/","delay":30,"time":4},
		{"type":"scroll","data":{"scrollX":0,"scrollY":400},"url":"https://example.com/","time":5}
	]`)

	page := &fakePage{}
	d, waits := newTestDispatcher(page)
	assert.Equal(t, StateIdle, d.State())

	result, err := d.Run(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"move 1,2",
		"click 10,20 left",
		"keydown a",
		"keyup a",
		"scroll 0,400",
	}, page.Calls())
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		50 * time.Millisecond,
		0,
		30 * time.Millisecond,
		200 * time.Millisecond, // missing delay
	}, *waits)
	assert.Equal(t, 5, result.Replayed)
	assert.Zero(t, result.InputFailures)
	require.Len(t, result.Logs, 5)
	assert.Equal(t, "success", result.Logs[4].StepStatus)
	assert.Equal(t, StateDone, d.State())
}

func TestDispatcher_RightClick(t *testing.T) {
	session := sessionFrom(t, `[{"type":"click","data":{"x":5,"y":6,"button":2},"url":"https://example.com/","delay":0,"time":1}]`)

	page := &fakePage{}
	d, _ := newTestDispatcher(page)
	_, err := d.Run(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, []string{"click 5,6 right"}, page.Calls())
}

func TestDispatcher_InputFailureContinues(t *testing.T) {
	session := sessionFrom(t, `[
		{"type":"input","data":{"selector":"INPUT#missing","value":"hello"},"url":"https://example.com/","delay":0,"time":1},
		{"type":"input","data":{"selector":"","value":"ignored"},"url":"https://example.com/","delay":0,"time":2},
		{"type":"click","data":{"x":1,"y":1,"button":0},"url":"https://example.com/","delay":0,"time":3}
	]`)

	page := &fakePage{fillErr: errors.New("no such element")}
	d, _ := newTestDispatcher(page)
	result, err := d.Run(context.Background(), session)
	require.NoError(t, err)

	// The input without a selector never reaches the page.
	assert.Equal(t, []string{"fill INPUT#missing=hello", "click 1,1 left"}, page.Calls())
	assert.Equal(t, 1, result.InputFailures)
	assert.Equal(t, 2, result.Replayed)
	require.Len(t, result.Logs, 3)
	assert.Equal(t, "skipped", result.Logs[0].StepStatus)
	assert.Contains(t, result.Logs[0].ErrorDetail, "no such element")
	assert.Equal(t, "success", result.Logs[1].StepStatus)
}

func TestChromePage_FillWithoutSelector(t *testing.T) {
	p := NewChromePage(context.Background(), time.Hour)
	assert.NoError(t, p.Fill(context.Background(), "", "value"))
}

func TestDispatcher_OtherFailureAborts(t *testing.T) {
	boom := errors.New("target closed")
	session := sessionFrom(t, `[
		{"type":"click","data":{"x":1,"y":1,"button":0},"url":"https://example.com/","delay":0,"time":1},
		{"type":"mousemove","data":{"x":2,"y":2},"url":"https://example.com/","delay":0,"time":2}
	]`)

	page := &fakePage{clickErr: boom}
	d, _ := newTestDispatcher(page)
	result, err := d.Run(context.Background(), session)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "event 0 (click)")
	assert.Equal(t, []string{"click 1,1 left"}, page.Calls())
	assert.Zero(t, result.Replayed)
	assert.Equal(t, "failed", result.Logs[0].StepStatus)
	assert.Equal(t, StateDone, d.State())
}

func TestDispatcher_URLChange(t *testing.T) {
	session := sessionFrom(t, `[
		{"type":"urlchange","data":{"url":"https://example.com/b"},"url":"https://example.com/b","delay":0,"time":1},
		{"type":"urlchange","data":{},"url":"https://example.com/b","delay":0,"time":2}
	]`)

	page := &fakePage{}
	d, _ := newTestDispatcher(page)
	result, err := d.Run(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, []string{"navigate https://example.com/b"}, page.Calls())
	assert.Equal(t, 2, result.Replayed)
}

func TestDispatcher_ZoomKeepsAnchor(t *testing.T) {
	session := sessionFrom(t, `[{"type":"zoom","data":{"oldScale":1,"newScale":2,"x":100,"y":100},"url":"https://example.com/","delay":0,"time":1}]`)

	page := &fakePage{}
	d, _ := newTestDispatcher(page)
	_, err := d.Run(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, []string{"scale 2", "scroll 100,100"}, page.Calls())
	assert.Equal(t, 2.0, page.scale)
}

func TestDispatcher_RunsOnce(t *testing.T) {
	d, _ := newTestDispatcher(&fakePage{})
	_, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, d.State())

	_, err = d.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestDispatcher_OnEvent(t *testing.T) {
	session := sessionFrom(t, `[
		{"type":"mousemove","data":{"x":1,"y":2},"url":"https://example.com/","delay":100,"time":1},
		{"type":"mousemove","data":{"x":3,"y":4},"url":"https://example.com/","delay":25,"time":2}
	]`)

	d, _ := newTestDispatcher(&fakePage{})
	var seen []string
	d.OnEvent = func(index int, ev models.Event, delay time.Duration) {
		assert.Equal(t, StateDispatching, d.State())
		seen = append(seen, fmt.Sprintf("%d:%s:%s", index, ev.Type, delay))
	}
	_, err := d.Run(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, []string{"0:mousemove:100ms", "1:mousemove:25ms"}, seen)
}

func TestDispatcher_CancelWhileWaiting(t *testing.T) {
	session := sessionFrom(t, `[{"type":"mousemove","data":{"x":1,"y":2},"url":"https://example.com/","delay":60000,"time":1}]`)

	page := &fakePage{}
	d := NewDispatcher(page, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for d.State() != StateWaiting {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := d.Run(ctx, session)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Calls())
}

// A navigation captured through pushState replays as a navigation after at
// least the first-event delay.
func TestCaptureToReplay_URLChange(t *testing.T) {
	signals := []models.Signal{{
		Type: models.EventURLChange,
		Data: json.RawMessage(`{"url":"https://example.com/next"}`),
		URL:  ptr("https://example.com/next"),
		Time: 1700000000000,
	}}
	session, report := models.Finalize(signals)
	require.Zero(t, report.Dropped)

	page := &fakePage{}
	d := NewDispatcher(page, zerolog.Nop())
	var waited time.Duration
	d.Sleep = func(ctx context.Context, dur time.Duration) error {
		waited += dur
		return sleepContext(ctx, dur)
	}

	start := time.Now()
	_, err := d.Run(context.Background(), session)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, waited)
	assert.Equal(t, []string{"navigate https://example.com/next"}, page.Calls())
}

func TestReplayOn(t *testing.T) {
	session := sessionFrom(t, `[
		{"type":"click","data":{"x":1,"y":1,"button":1},"url":"https://example.com/start","delay":0,"time":1}
	]`)

	page := &fakePage{}
	result, err := ReplayOn(context.Background(), page, session, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, []string{"navigate https://example.com/start", "click 1,1 middle"}, page.Calls())

	_, err = ReplayOn(context.Background(), page, nil, Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrEmptySession)

	noURL := models.Session{{Type: models.EventMouseMove, Data: models.MouseMove{}}}
	_, err = ReplayOn(context.Background(), page, noURL, Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrNoStartURL)
}

func TestZoomScroll(t *testing.T) {
	tests := []struct {
		name     string
		scroll   float64
		anchor   float64
		oldScale float64
		newScale float64
		want     float64
	}{
		{"zoom in at anchor", 0, 100, 1, 2, 100},
		{"zoom out at anchor", 100, 100, 2, 1, 0},
		{"scrolled page", 50, 10, 1, 1.5, 80},
		{"origin anchor", 40, 0, 2, 4, 80},
		{"non-positive old scale", 0, 100, 0, 2, 100},
		{"unchanged scale", 300, 25, 1.25, 1.25, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ZoomScroll(tt.scroll, tt.anchor, tt.oldScale, tt.newScale), 1e-9)
		})
	}
}

func TestKeyDefinition(t *testing.T) {
	enter := keyDefinition("Enter")
	assert.Equal(t, int64(13), enter.windows)

	left := keyDefinition("ArrowLeft")
	assert.Equal(t, int64(37), left.windows)
	assert.Empty(t, left.text)

	a := keyDefinition("a")
	assert.Equal(t, "a", a.text)
	assert.Equal(t, int64(65), a.windows)

	assert.Equal(t, keyDef{}, keyDefinition("F13"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "done", StateDone.String())
}
