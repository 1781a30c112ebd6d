package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"webreplay/internal/models"
)

const metaSuffix = ".meta.json"

// FileStore keeps every recording as <id>.json, a plain session log that the
// replay command reads directly, next to <id>.meta.json with its summary.
type FileStore struct {
	dir   string
	mutex sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// LogPath is the session log location of id.
func (s *FileStore) LogPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+metaSuffix)
}

func (s *FileStore) Save(_ context.Context, rec *models.Recording) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recording %s: %w", rec.ID, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := writeFileAtomic(s.LogPath(rec.ID), []byte(rec.Log)); err != nil {
		return err
	}
	return writeFileAtomic(s.metaPath(rec.ID), meta)
}

func (s *FileStore) Get(_ context.Context, id string) (*models.Recording, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	log, err := os.ReadFile(s.LogPath(id))
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", id, err)
	}
	rec.Log = string(log)
	return rec, nil
}

func (s *FileStore) List(_ context.Context) ([]models.Recording, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	recordings := make([]models.Recording, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		rec, err := s.readMeta(strings.TrimSuffix(name, metaSuffix))
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, *rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].CreatedAt.After(recordings[j].CreatedAt)
	})
	return recordings, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.metaPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	if err := os.Remove(s.LogPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) readMeta(id string) (*models.Recording, error) {
	b, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read recording %s: %w", id, err)
	}
	var rec models.Recording
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", id, err)
	}
	return &rec, nil
}

// validID rejects ids that would escape the store directory.
func validID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
