package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultFirstDelay is the think time before the first replayed action.
const DefaultFirstDelay int64 = 100

var (
	ErrEmptySession = errors.New("session has no events")
	ErrNoStartURL   = errors.New("first event has no url")
)

// Session is an ordered event log. Index order is capture order and replay order.
type Session []Event

// StartURL is the document the replay page has to open before dispatching.
func (s Session) StartURL() (string, error) {
	if len(s) == 0 {
		return "", ErrEmptySession
	}
	if s[0].URL == nil || *s[0].URL == "" {
		return "", ErrNoStartURL
	}
	return *s[0].URL, nil
}

// Duration is the sum of all delays in milliseconds.
func (s Session) Duration() int64 {
	var total int64
	for _, e := range s {
		total += e.Delay
	}
	return total
}

// Counts tallies events per type.
func (s Session) Counts() map[EventType]int {
	counts := make(map[EventType]int)
	for _, e := range s {
		counts[e.Type]++
	}
	return counts
}

// Signal is a captured record as posted by the page, before delay derivation.
type Signal struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
	URL  *string         `json:"url"`
	Time int64           `json:"time"`
}

// FinalizeReport describes signals that could not become events.
type FinalizeReport struct {
	Dropped int
	Errors  []error
}

// Finalize converts captured signals into a replayable session. The first kept
// signal gets DefaultFirstDelay; every later one gets the gap to its predecessor,
// clamped at zero. Signals are never reordered.
func Finalize(signals []Signal) (Session, FinalizeReport) {
	var report FinalizeReport
	session := make(Session, 0, len(signals))

	var prev int64
	for i, sig := range signals {
		payload, err := DecodePayload(sig.Type, sig.Data)
		if err != nil {
			report.Dropped++
			report.Errors = append(report.Errors, fmt.Errorf("signal %d: %w", i, err))
			continue
		}
		delay := DefaultFirstDelay
		if len(session) > 0 {
			delay = sig.Time - prev
			if delay < 0 {
				delay = 0
			}
		}
		prev = sig.Time
		session = append(session, Event{
			Type:  sig.Type,
			Data:  payload,
			URL:   sig.URL,
			Delay: delay,
			Time:  sig.Time,
		})
	}
	return session, report
}

// Encode writes the session log format: an indented JSON array.
func Encode(w io.Writer, s Session) error {
	if s == nil {
		s = Session{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return nil
}

// Decode reads a whole session log. Any invalid event fails the load.
func Decode(r io.Reader) (Session, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	session := make(Session, len(raw))
	for i, b := range raw {
		if err := json.Unmarshal(b, &session[i]); err != nil {
			return nil, fmt.Errorf("decode session event %d: %w", i, err)
		}
	}
	return session, nil
}
