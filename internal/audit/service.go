/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
)

// Bus is the subscription surface the service needs; both the in-process
// and the Redis-backed bus satisfy it.
type Bus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(database *gorm.DB, bus Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     database,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to plan mutation events and logs them as audit entries.
// Blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	jobCreate := s.bus.Subscribe(events.EventAuditJobCreate)
	jobPlace := s.bus.Subscribe(events.EventAuditJobPlace)
	jobUpdate := s.bus.Subscribe(events.EventAuditJobUpdate)
	jobRemove := s.bus.Subscribe(events.EventAuditJobRemove)
	scheduleImport := s.bus.Subscribe(events.EventAuditImport)
	laneCreate := s.bus.Subscribe(events.EventAuditLaneCreate)

	defer func() {
		s.bus.Unsubscribe(events.EventAuditJobCreate, jobCreate)
		s.bus.Unsubscribe(events.EventAuditJobPlace, jobPlace)
		s.bus.Unsubscribe(events.EventAuditJobUpdate, jobUpdate)
		s.bus.Unsubscribe(events.EventAuditJobRemove, jobRemove)
		s.bus.Unsubscribe(events.EventAuditImport, scheduleImport)
		s.bus.Unsubscribe(events.EventAuditLaneCreate, laneCreate)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-jobCreate:
			s.logEntry(ctx, "job.create", payload)

		case payload := <-jobPlace:
			s.logEntry(ctx, "job.place", payload)

		case payload := <-jobUpdate:
			s.logEntry(ctx, "job.update", payload)

		case payload := <-jobRemove:
			s.logEntry(ctx, "job.remove", payload)

		case payload := <-scheduleImport:
			s.logEntry(ctx, "schedule.import", payload)

		case payload := <-laneCreate:
			s.logEntry(ctx, "lane.create", payload)
		}
	}
}

// logEntry creates an audit log entry from an event payload.
func (s *Service) logEntry(ctx context.Context, action string, payload events.Payload) {
	entry := models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	details := make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case "user_id":
			if id, ok := v.(string); ok {
				entry.UserID = id
			}
		case "user_email":
			if email, ok := v.(string); ok {
				entry.UserEmail = email
			}
		case "ip_address":
			if addr, ok := v.(string); ok {
				entry.IPAddress = addr
			}
		case "entity_type":
			if et, ok := v.(string); ok {
				entry.EntityType = et
			}
		case "entity_id":
			if id, ok := v.(string); ok {
				entry.EntityID = id
			}
		default:
			details[k] = v
		}
	}

	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to log audit entry")
	}
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID   string
	Action   string
	EntityID string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// Query retrieves audit logs with filters, most recent first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.EntityID != "" {
		query = query.Where("entity_id = ?", filters.EntityID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
