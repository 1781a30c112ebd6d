package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func signal(t EventType, data string, ts int64) Signal {
	return Signal{Type: t, Data: json.RawMessage(data), URL: strPtr("https://example.com/a"), Time: ts}
}

func TestFinalize_Delays(t *testing.T) {
	cases := map[string]struct {
		times  []int64
		delays []int64
	}{
		"single event gets default": {
			times:  []int64{5000},
			delays: []int64{DefaultFirstDelay},
		},
		"gaps between events": {
			times:  []int64{1000, 1250, 1300, 2000},
			delays: []int64{DefaultFirstDelay, 250, 50, 700},
		},
		"identical timestamps": {
			times:  []int64{1000, 1000, 1000},
			delays: []int64{DefaultFirstDelay, 0, 0},
		},
		"out of order arrival clamps to zero": {
			times:  []int64{1000, 990, 1010},
			delays: []int64{DefaultFirstDelay, 0, 20},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			signals := make([]Signal, 0, len(tc.times))
			for i, ts := range tc.times {
				signals = append(signals, signal(EventMouseMove, `{"x":`+string(rune('0'+i))+`,"y":1}`, ts))
			}

			session, report := Finalize(signals)
			require.Zero(t, report.Dropped)
			require.Len(t, session, len(signals))
			for i, ev := range session {
				assert.Equal(t, tc.delays[i], ev.Delay, "event %d", i)
				assert.GreaterOrEqual(t, ev.Delay, int64(0))
				assert.Equal(t, tc.times[i], ev.Time)
			}
		})
	}
}

func TestFinalize_KeepsCaptureOrder(t *testing.T) {
	signals := []Signal{
		signal(EventClick, `{"x":1,"y":2,"button":0}`, 300),
		signal(EventScroll, `{"scrollX":0,"scrollY":10}`, 100),
		signal(EventKeyDown, `{"key":"a","code":"KeyA"}`, 200),
	}

	session, _ := Finalize(signals)
	require.Len(t, session, 3)
	assert.Equal(t, EventClick, session[0].Type)
	assert.Equal(t, EventScroll, session[1].Type)
	assert.Equal(t, EventKeyDown, session[2].Type)
}

func TestFinalize_DropsInvalidSignals(t *testing.T) {
	signals := []Signal{
		signal(EventMouseMove, `{"x":1,"y":2}`, 100),
		signal("hover", `{}`, 150),
		signal(EventMouseMove, `{"x":3}`, 175),
		signal(EventMouseMove, `{"x":3,"y":4}`, 200),
	}

	session, report := Finalize(signals)
	require.Len(t, session, 2)
	assert.Equal(t, 2, report.Dropped)
	assert.ErrorIs(t, report.Errors[0], ErrUnknownEventType)
	assert.ErrorIs(t, report.Errors[1], ErrMissingField)
	assert.Equal(t, int64(100), session[1].Delay)
}

func TestSession_RoundTrip(t *testing.T) {
	ax, ay := 40.0, 60.0
	session := Session{
		{Type: EventURLChange, Data: URLChange{URL: "https://example.com/a"}, URL: strPtr("https://example.com/a"), Delay: 100, Time: 1000},
		{Type: EventMouseMove, Data: MouseMove{X: 10, Y: 20.5}, URL: strPtr("https://example.com/a"), Delay: 16, Time: 1016},
		{Type: EventClick, Data: Click{X: 10, Y: 20, Button: 2}, URL: strPtr("https://example.com/a"), Delay: 0, Time: 1016},
		{Type: EventKeyDown, Data: Key{Type: EventKeyDown, Key: "A", Code: "KeyA", Shift: true}, Delay: 40, Time: 1056},
		{Type: EventKeyUp, Data: Key{Type: EventKeyUp, Key: "A", Code: "KeyA"}, Delay: 80, Time: 1136},
		{Type: EventInput, Data: Input{Selector: "INPUT#email", Value: "me@example.com"}, Delay: 1, Time: 1137},
		{Type: EventScroll, Data: Scroll{ScrollX: 0, ScrollY: 480}, Delay: 300, Time: 1437},
		{Type: EventZoom, Data: Zoom{OldScale: 1, NewScale: 1.5, X: &ax, Y: &ay}, Delay: 20, Time: 1457},
		{Type: EventZoom, Data: Zoom{OldScale: 1.5, NewScale: 1}, Delay: 20, Time: 1477},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, session))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, session, decoded)
}

func TestEncode_WireFormat(t *testing.T) {
	session := Session{
		{Type: EventClick, Data: Click{X: 5, Y: 6, Button: 1}, Delay: 100, Time: 42},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, session))

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "click", raw[0]["type"])
	assert.Nil(t, raw[0]["url"])
	assert.Equal(t, float64(100), raw[0]["delay"])
	assert.Equal(t, float64(42), raw[0]["time"])
	assert.Equal(t, map[string]interface{}{"x": float64(5), "y": float64(6), "button": float64(1)}, raw[0]["data"])
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]struct {
		input string
		err   error
	}{
		"unknown type":     {input: `[{"type":"hover","data":{},"delay":0}]`, err: ErrUnknownEventType},
		"negative delay":   {input: `[{"type":"scroll","data":{"scrollX":0,"scrollY":1},"delay":-5}]`, err: ErrNegativeDelay},
		"missing x":        {input: `[{"type":"click","data":{"y":1},"delay":0}]`, err: ErrMissingField},
		"missing key":      {input: `[{"type":"keyup","data":{"code":"KeyA"},"delay":0}]`, err: ErrMissingField},
		"null scroll axis": {input: `[{"type":"scroll","data":{"scrollX":null,"scrollY":1}}]`, err: ErrMissingField},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Contains(t, err.Error(), "event 0")
		})
	}

	_, err := Decode(strings.NewReader(`[{"type":`))
	assert.Error(t, err)
}

func TestDecode_Defaults(t *testing.T) {
	input := `[
		{"type":"zoom","data":{},"url":"https://example.com"},
		{"type":"urlchange","data":null,"url":null,"delay":0},
		{"type":"click","data":{"x":1,"y":2},"delay":3}
	]`

	session, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, session, 3)

	assert.Equal(t, DefaultReplayDelay, session[0].Delay)
	zoom := session[0].Data.(Zoom)
	assert.Equal(t, 1.0, zoom.OldScale)
	assert.Equal(t, 1.0, zoom.NewScale)
	x, y := zoom.Anchor()
	assert.Zero(t, x)
	assert.Zero(t, y)

	assert.Equal(t, URLChange{}, session[1].Data)
	assert.Nil(t, session[1].URL)

	click := session[2].Data.(Click)
	assert.Equal(t, ButtonLeft, click.MouseButton())
}

func TestClick_MouseButton(t *testing.T) {
	assert.Equal(t, ButtonLeft, Click{Button: 0}.MouseButton())
	assert.Equal(t, ButtonMiddle, Click{Button: 1}.MouseButton())
	assert.Equal(t, ButtonRight, Click{Button: 2}.MouseButton())
	assert.Equal(t, ButtonLeft, Click{Button: 7}.MouseButton())
}

func TestSession_StartURL(t *testing.T) {
	_, err := Session{}.StartURL()
	assert.ErrorIs(t, err, ErrEmptySession)

	_, err = Session{{Type: EventScroll, Data: Scroll{}}}.StartURL()
	assert.ErrorIs(t, err, ErrNoStartURL)

	url, err := Session{{Type: EventScroll, Data: Scroll{}, URL: strPtr("https://example.com/a")}}.StartURL()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", url)
}

func TestRecording_SetSession(t *testing.T) {
	session := Session{
		{Type: EventMouseMove, Data: MouseMove{X: 1, Y: 1}, URL: strPtr("https://example.com/a"), Delay: 100, Time: 1},
		{Type: EventMouseMove, Data: MouseMove{X: 2, Y: 2}, URL: strPtr("https://example.com/a"), Delay: 50, Time: 51},
	}

	var rec Recording
	require.NoError(t, rec.SetSession(session))
	assert.Equal(t, 2, rec.EventCount)
	assert.Equal(t, int64(150), rec.DurationMs)
	assert.Equal(t, "https://example.com/a", rec.StartURL)

	back, err := rec.GetSession()
	require.NoError(t, err)
	assert.Equal(t, session, back)
}
