package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"webreplay/internal/config"
	"webreplay/internal/models"
	"webreplay/pkg/database"
)

var ErrNotFound = errors.New("recording not found")

// Store persists recordings. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, rec *models.Recording) error
	Get(ctx context.Context, id string) (*models.Recording, error)
	// List returns recordings newest first, without their logs.
	List(ctx context.Context) ([]models.Recording, error)
	Delete(ctx context.Context, id string) error
}

// New opens the backend selected by cfg.Store.Backend.
func New(cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return NewFileStore(cfg.Store.Dir)
	case "mysql":
		db, err := database.Open(cfg, log)
		if err != nil {
			return nil, err
		}
		return NewDBStore(db), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
