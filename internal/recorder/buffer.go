package recorder

import (
	"sync"

	"webreplay/internal/models"
)

// Buffer is the append-only signal store of one capture run. Only the binding
// callback appends; readers take snapshots.
type Buffer struct {
	mutex   sync.RWMutex
	signals []models.Signal
}

func NewBuffer() *Buffer {
	return &Buffer{signals: make([]models.Signal, 0, 1024)}
}

// Append adds sig in arrival order and returns the new length.
func (b *Buffer) Append(sig models.Signal) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.signals = append(b.signals, sig)
	return len(b.signals)
}

func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.signals)
}

func (b *Buffer) Snapshot() []models.Signal {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return append([]models.Signal(nil), b.signals...)
}
