/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package qc exposes the external lab's batch verdicts to the rendering
// layer. Verdicts are synced into the qc_records table by an external feed;
// lookups here go through a Redis cache with graceful fallback so a flaky
// cache never blocks the day view.
package qc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/store"
)

const keyPrefix = "volund:cache:qc:" // + batch

// Config contains cache configuration for QC lookups.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration

	// DisableOnError trips the circuit breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default QC cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		TTL:            15 * time.Minute,
		DisableOnError: true,
	}
}

// Service answers batch → status lookups.
type Service struct {
	store  *store.Store
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// cachedVerdict is the Redis payload; Known false caches a miss.
type cachedVerdict struct {
	Status models.QCStatus `json:"status"`
	Known  bool            `json:"known"`
}

// New creates the QC service. A dead Redis leaves the service functional
// with every lookup going straight to the database.
func New(st *store.Store, cfg Config, logger zerolog.Logger) *Service {
	svc := &Service{
		store:  st,
		logger: logger.With().Str("component", "qc").Logger(),
		config: cfg,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		svc.logger.Warn().Err(err).Msg("Redis unavailable, QC lookups uncached")
		svc.disabled = true
		return svc
	}

	svc.client = client
	return svc
}

// Close closes the Redis connection.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Status returns the lab verdict for a batch, with ok reporting whether the
// lab knows the batch at all.
func (s *Service) Status(ctx context.Context, batch string) (models.QCStatus, bool, error) {
	if batch == "" {
		return "", false, nil
	}

	if verdict, hit := s.cacheGet(ctx, batch); hit {
		return verdict.Status, verdict.Known, nil
	}

	status, known, err := s.store.QCStatus(ctx, batch)
	if err != nil {
		return "", false, err
	}

	s.cacheSet(ctx, batch, cachedVerdict{Status: status, Known: known})
	return status, known, nil
}

// Invalidate drops a batch's cached verdict (called by the lab sync feed).
func (s *Service) Invalidate(ctx context.Context, batch string) {
	if !s.available() {
		return
	}
	if err := s.client.Del(ctx, keyPrefix+batch).Err(); err != nil {
		s.handleError(err, "invalidate")
	}
}

func (s *Service) cacheGet(ctx context.Context, batch string) (cachedVerdict, bool) {
	if !s.available() {
		return cachedVerdict{}, false
	}

	data, err := s.client.Get(ctx, keyPrefix+batch).Bytes()
	if err != nil {
		s.handleError(err, "get")
		return cachedVerdict{}, false
	}

	var verdict cachedVerdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return cachedVerdict{}, false
	}
	return verdict, true
}

func (s *Service) cacheSet(ctx context.Context, batch string, verdict cachedVerdict) {
	if !s.available() {
		return
	}

	data, err := json.Marshal(verdict)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, keyPrefix+batch, data, s.config.TTL).Err(); err != nil {
		s.handleError(err, "set")
	}
}

func (s *Service) available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled && s.client != nil
}

func (s *Service) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	s.logger.Debug().Err(err).Str("operation", operation).Msg("qc cache operation failed")

	if s.config.DisableOnError {
		s.mu.Lock()
		s.disabled = true
		s.mu.Unlock()
		s.logger.Warn().Msg("disabling qc cache after Redis error")
	}
}
