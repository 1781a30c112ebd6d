package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type EventType string

const (
	EventMouseMove EventType = "mousemove"
	EventClick     EventType = "click"
	EventKeyDown   EventType = "keydown"
	EventKeyUp     EventType = "keyup"
	EventInput     EventType = "input"
	EventScroll    EventType = "scroll"
	EventURLChange EventType = "urlchange"
	EventZoom      EventType = "zoom"
)

// DefaultReplayDelay is applied when a log entry carries no delay at all.
const DefaultReplayDelay int64 = 200

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingField     = errors.New("missing payload field")
	ErrNegativeDelay    = errors.New("negative delay")
)

// Valid reports whether t belongs to the closed set of captured kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventMouseMove, EventClick, EventKeyDown, EventKeyUp,
		EventInput, EventScroll, EventURLChange, EventZoom:
		return true
	}
	return false
}

// Payload is the variant part of an Event. The concrete type is fixed by Event.Type.
type Payload interface {
	Kind() EventType
}

type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Click struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
}

// Key is shared by keydown and keyup; Type tells them apart.
type Key struct {
	Type  EventType `json:"-"`
	Key   string    `json:"key"`
	Code  string    `json:"code"`
	Ctrl  bool      `json:"ctrl"`
	Alt   bool      `json:"alt"`
	Shift bool      `json:"shift"`
	Meta  bool      `json:"meta"`
}

type Input struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

type Scroll struct {
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

type URLChange struct {
	URL string `json:"url,omitempty"`
}

// Zoom records a visual viewport scale change. X and Y, when present, are the
// pointer anchor in viewport coordinates.
type Zoom struct {
	OldScale float64  `json:"oldScale"`
	NewScale float64  `json:"newScale"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

func (MouseMove) Kind() EventType { return EventMouseMove }
func (Click) Kind() EventType     { return EventClick }
func (k Key) Kind() EventType {
	if k.Type == EventKeyUp {
		return EventKeyUp
	}
	return EventKeyDown
}
func (Input) Kind() EventType     { return EventInput }
func (Scroll) Kind() EventType    { return EventScroll }
func (URLChange) Kind() EventType { return EventURLChange }
func (Zoom) Kind() EventType      { return EventZoom }

// Anchor returns the zoom anchor, defaulting to the viewport origin.
func (z Zoom) Anchor() (float64, float64) {
	var x, y float64
	if z.X != nil {
		x = *z.X
	}
	if z.Y != nil {
		y = *z.Y
	}
	return x, y
}

type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonMiddle MouseButton = "middle"
	ButtonRight  MouseButton = "right"
)

// MouseButton maps the DOM button index onto a named button. Unknown indexes are
// replayed as a left click.
func (c Click) MouseButton() MouseButton {
	switch c.Button {
	case 1:
		return ButtonMiddle
	case 2:
		return ButtonRight
	default:
		return ButtonLeft
	}
}

// Event is one entry of a session log.
type Event struct {
	Type  EventType
	Data  Payload
	URL   *string
	Delay int64
	Time  int64
}

type wireEvent struct {
	Type  EventType       `json:"type"`
	Data  json.RawMessage `json:"data"`
	URL   *string         `json:"url"`
	Delay *int64          `json:"delay,omitempty"`
	Time  int64           `json:"time"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data := []byte("{}")
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		data = b
	}
	delay := e.Delay
	return json.Marshal(wireEvent{
		Type:  e.Type,
		Data:  data,
		URL:   e.URL,
		Delay: &delay,
		Time:  e.Time,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	payload, err := DecodePayload(w.Type, w.Data)
	if err != nil {
		return err
	}
	delay := DefaultReplayDelay
	if w.Delay != nil {
		delay = *w.Delay
	}
	if delay < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDelay, delay)
	}
	*e = Event{
		Type:  w.Type,
		Data:  payload,
		URL:   w.URL,
		Delay: delay,
		Time:  w.Time,
	}
	return nil
}

// DecodePayload validates raw payload JSON against the shape required by t.
func DecodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}

	var (
		p   Payload
		err error
	)
	switch t {
	case EventMouseMove:
		var v MouseMove
		err = decodeInto(t, raw, fields, &v, "x", "y")
		p = v
	case EventClick:
		var v Click
		err = decodeInto(t, raw, fields, &v, "x", "y")
		p = v
	case EventKeyDown, EventKeyUp:
		var v Key
		err = decodeInto(t, raw, fields, &v, "key")
		v.Type = t
		p = v
	case EventInput:
		var v Input
		err = decodeInto(t, raw, fields, &v)
		p = v
	case EventScroll:
		var v Scroll
		err = decodeInto(t, raw, fields, &v, "scrollX", "scrollY")
		p = v
	case EventURLChange:
		var v URLChange
		err = decodeInto(t, raw, fields, &v)
		p = v
	default:
		v := Zoom{OldScale: 1, NewScale: 1}
		err = decodeInto(t, raw, fields, &v)
		p = v
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeInto(t EventType, raw json.RawMessage, fields map[string]json.RawMessage, dst interface{}, required ...string) error {
	for _, name := range required {
		v, ok := fields[name]
		if !ok || bytes.Equal(v, []byte("null")) {
			return fmt.Errorf("%w: %s.%s", ErrMissingField, t, name)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t, err)
	}
	return nil
}
