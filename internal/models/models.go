package models

import (
	"bytes"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Recording is a stored capture. Log holds the session log exactly as written
// to disk by the capture binary.
type Recording struct {
	BaseModel
	ID         string `json:"id" gorm:"primarykey;size:36"`
	Name       string `json:"name" gorm:"size:200"`
	StartURL   string `json:"start_url" gorm:"size:2000"`
	EventCount int    `json:"event_count"`
	DurationMs int64  `json:"duration_ms"`
	Log        string `json:"-" gorm:"type:longtext"`
}

// GetSession parses the stored log.
func (r *Recording) GetSession() (Session, error) {
	if r.Log == "" {
		return Session{}, nil
	}
	return Decode(bytes.NewBufferString(r.Log))
}

// SetSession stores s as the recording log and refreshes the summary columns.
func (r *Recording) SetSession(s Session) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}
	r.Log = buf.String()
	r.EventCount = len(s)
	r.DurationMs = s.Duration()
	if start, err := s.StartURL(); err == nil {
		r.StartURL = start
	}
	return nil
}
