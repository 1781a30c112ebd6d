package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"webreplay/internal/models"
)

// DBStore keeps recordings in the recordings table, the log in a longtext column.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Save(ctx context.Context, rec *models.Recording) error {
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}
	return nil
}

func (s *DBStore) Get(ctx context.Context, id string) (*models.Recording, error) {
	var rec models.Recording
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %s: %w", id, err)
	}
	return &rec, nil
}

func (s *DBStore) List(ctx context.Context) ([]models.Recording, error) {
	var recordings []models.Recording
	err := s.db.WithContext(ctx).
		Omit("log").
		Order("created_at DESC").
		Find(&recordings).Error
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return recordings, nil
}

func (s *DBStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Recording{})
	if result.Error != nil {
		return fmt.Errorf("delete recording %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
