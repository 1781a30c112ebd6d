package recorder

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webreplay/internal/models"
)

func TestBuffer_AppendKeepsArrivalOrder(t *testing.T) {
	b := NewBuffer()
	for _, ts := range []int64{30, 10, 20} {
		b.Append(models.Signal{Type: models.EventMouseMove, Time: ts})
	}

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(30), snap[0].Time)
	assert.Equal(t, int64(10), snap[1].Time)
	assert.Equal(t, int64(20), snap[2].Time)

	snap[0].Time = 99
	assert.Equal(t, int64(30), b.Snapshot()[0].Time)
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Append(models.Signal{Type: models.EventMouseMove, Time: int64(i)})
		}
	}()
	for i := 0; i < 100; i++ {
		_ = b.Snapshot()
		_ = b.Len()
	}
	wg.Wait()
	assert.Equal(t, 1000, b.Len())
}

func TestChromeRecorder_HandleBinding(t *testing.T) {
	var seen []int
	r := NewChromeRecorder(context.Background(), func(count int, sig models.Signal) {
		seen = append(seen, count)
	}, zerolog.Nop())

	r.HandleBinding(`{"type":"click","data":{"x":10,"y":20,"button":2},"url":"https://example.com/a","time":1000}`)
	r.HandleBinding(`not json`)
	r.HandleBinding(`{"type":"keydown","data":{"key":"a","code":"KeyA","ctrl":false,"alt":false,"shift":false,"meta":false},"url":"https://example.com/a","time":1040}`)
	r.HandleBinding(`{"type":"scroll","data":{"scrollX":0},"url":"https://example.com/a","time":1050}`)
	r.HandleBinding(`{"type":"urlchange","data":{"url":"https://example.com/b"},"url":"https://example.com/b","time":1030}`)

	assert.Equal(t, []int{1, 2, 3, 4}, seen)

	session := r.Finalize()
	require.Len(t, session, 3)

	assert.Equal(t, models.EventClick, session[0].Type)
	assert.Equal(t, models.DefaultFirstDelay, session[0].Delay)
	assert.Equal(t, models.ButtonRight, session[0].Data.(models.Click).MouseButton())

	assert.Equal(t, models.EventKeyDown, session[1].Type)
	assert.Equal(t, int64(40), session[1].Delay)

	// arrived after a later timestamp: kept in place, delay clamped
	assert.Equal(t, models.EventURLChange, session[2].Type)
	assert.Equal(t, int64(0), session[2].Delay)
}

func TestRecorderScript(t *testing.T) {
	assert.Contains(t, RecorderScript, `window["record_event"]`)
	assert.Contains(t, RecorderScript, "window.__recorderInstalled")
	assert.Contains(t, RecorderScript, "history.pushState")
	assert.Contains(t, RecorderScript, "visualViewport")
	assert.Equal(t, 1, strings.Count(RecorderScript, "if (window.__recorderInstalled) return;"))
	for _, kind := range []string{"mousemove", "click", "keydown", "keyup", "input", "scroll", "urlchange", "zoom"} {
		assert.Contains(t, RecorderScript, `"`+kind+`"`, kind)
	}
	// pushState must still navigate before the change is recorded
	assert.Less(t, strings.Index(RecorderScript, "pushState.apply"), strings.Index(RecorderScript, `record("urlchange", { url: window.location.href });
    return result;`))
}
