/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the persistence collaborator: a flat load/save surface
// over the job and lane tables. The timeline engine never touches gorm; the
// planner service moves snapshots between the two.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/volund_planner/internal/models"
)

// Store wraps gorm access for jobs and lanes.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store.
func New(database *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     database,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// LoadAllJobs returns every persisted job record.
func (s *Store) LoadAllJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return jobs, nil
}

// SaveAllJobs replaces the persisted job set with the given snapshot in one
// transaction. On failure nothing is written and the previous rows stay
// authoritative.
func (s *Store) SaveAllJobs(ctx context.Context, jobs []models.Job) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("clear jobs: %w", err)
		}
		if len(jobs) == 0 {
			return nil
		}
		if err := tx.Create(&jobs).Error; err != nil {
			return fmt.Errorf("write jobs: %w", err)
		}
		return nil
	})
}

// SaveJobs upserts the given job records without touching the rest.
func (s *Store) SaveJobs(ctx context.Context, jobs []models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&jobs).Error
	if err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

// DeleteJob removes one job record.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	result := s.db.WithContext(ctx).Delete(&models.Job{}, "id = ?", jobID)
	if result.Error != nil {
		return fmt.Errorf("delete job: %w", result.Error)
	}
	return nil
}

// ListLanes returns the lane catalog in display order.
func (s *Store) ListLanes(ctx context.Context) ([]models.Lane, error) {
	var lanes []models.Lane
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&lanes).Error; err != nil {
		return nil, fmt.Errorf("load lanes: %w", err)
	}
	return lanes, nil
}

// CreateLane inserts a lane at the end of the display order.
func (s *Store) CreateLane(ctx context.Context, lane models.Lane) (models.Lane, error) {
	if lane.ID == "" {
		lane.ID = uuid.NewString()
	}
	if lane.Position == 0 {
		var maxPos int
		row := s.db.WithContext(ctx).Model(&models.Lane{}).Select("COALESCE(MAX(position), 0)").Row()
		if err := row.Scan(&maxPos); err == nil {
			lane.Position = maxPos + 1
		}
	}
	if err := s.db.WithContext(ctx).Create(&lane).Error; err != nil {
		return models.Lane{}, fmt.Errorf("create lane: %w", err)
	}
	return lane, nil
}

// SeedLanes inserts the default lane catalog when the table is empty.
func (s *Store) SeedLanes(ctx context.Context, lanes []models.Lane) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Lane{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count lanes: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range lanes {
		if lanes[i].ID == "" {
			lanes[i].ID = uuid.NewString()
		}
		if lanes[i].Position == 0 {
			lanes[i].Position = i + 1
		}
		lanes[i].CreatedAt = now
		lanes[i].UpdatedAt = now
	}
	if err := s.db.WithContext(ctx).Create(&lanes).Error; err != nil {
		return fmt.Errorf("seed lanes: %w", err)
	}
	s.logger.Info().Int("count", len(lanes)).Msg("seeded lane catalog")
	return nil
}

// QCStatus looks one batch verdict up, reporting presence explicitly.
func (s *Store) QCStatus(ctx context.Context, batch string) (models.QCStatus, bool, error) {
	var record models.QCRecord
	err := s.db.WithContext(ctx).First(&record, "batch = ?", batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("qc lookup: %w", err)
	}
	return record.Status, true, nil
}

// UpsertQCRecord writes a lab verdict (used by the lab sync feed).
func (s *Store) UpsertQCRecord(ctx context.Context, record models.QCRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("upsert qc record: %w", err)
	}
	return nil
}
