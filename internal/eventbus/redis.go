/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus provides a Redis-backed event bus so multiple planner
// instances see each other's plan rewrites. When Redis is unavailable it
// degrades to the in-process bus and keeps the node fully functional.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/volund_planner/internal/events"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxFailures trips the circuit breaker onto the in-memory fallback.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// RedisBus fans events out across planner instances via Redis pub/sub.
// Local subscribers are always served through the in-process bus; Redis only
// carries the cross-node copies, tagged with the publishing node's ID so a
// node never echoes its own events back to itself.
type RedisBus struct {
	client   *redis.Client
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu       sync.RWMutex
	subs     map[events.EventType][]events.Subscriber
	channels map[events.EventType]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	useFallback bool
	failCount   int
	maxFails    int
}

// NewRedisBus creates a Redis-backed event bus. Falls back to the in-memory
// bus when Redis is unreachable.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	rb := &RedisBus{
		client:   client,
		logger:   logger.With().Str("component", "eventbus").Logger(),
		fallback: events.NewBus(),
		nodeID:   nodeID,
		maxFails: cfg.MaxFailures,
		subs:     make(map[events.EventType][]events.Subscriber),
		channels: make(map[events.EventType]*redis.PubSub),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Msg("Redis unreachable, running single-node with in-memory bus")
		rb.useFallback = true
		return rb, nil
	}

	rb.logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	return rb, nil
}

// Subscribe registers a subscriber for an event type. Remote publications on
// the same event type are delivered into the returned channel.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.useFallback {
		return rb.fallback.Subscribe(eventType)
	}

	sub := make(events.Subscriber, 100)
	rb.subs[eventType] = append(rb.subs[eventType], sub)

	if _, exists := rb.channels[eventType]; !exists {
		pubsub := rb.client.Subscribe(rb.ctx, channelName(eventType))
		rb.channels[eventType] = pubsub

		rb.wg.Add(1)
		go rb.receive(eventType, pubsub)
	}

	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Warn().Str("event_type", string(eventType)).Msg("Redis channel closed")
				rb.handleFailure()
				return
			}

			var envelope busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				rb.logger.Error().Err(err).Msg("malformed bus message")
				continue
			}
			if envelope.NodeID == rb.nodeID {
				continue
			}

			rb.mu.RLock()
			subs := append([]events.Subscriber(nil), rb.subs[eventType]...)
			rb.mu.RUnlock()

			for _, sub := range subs {
				select {
				case sub <- envelope.Payload:
				default:
					rb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
				}
			}
		}
	}
}

// Publish sends an event to local subscribers and to every other node.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.fallback.Publish(eventType, payload)

	rb.mu.RLock()
	degraded := rb.useFallback
	rb.mu.RUnlock()
	if degraded {
		return
	}

	data, err := json.Marshal(busMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    rb.nodeID,
	})
	if err != nil {
		rb.logger.Error().Err(err).Msg("marshal bus message failed")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, channelName(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Redis publish failed")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()

	// Local delivery of remote-tagged copies happens in receive(); the
	// fallback publish above already served same-node subscribers.
	rb.deliverLocal(eventType, payload)
}

// deliverLocal hands the payload to subscribers registered through the Redis
// path on this node (they filter own-node echoes out of the Redis stream).
func (rb *RedisBus) deliverLocal(eventType events.EventType, payload events.Payload) {
	rb.mu.RLock()
	subs := append([]events.Subscriber(nil), rb.subs[eventType]...)
	rb.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes a subscriber and tears down the Redis subscription when
// it was the last one for its event type.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	subs := rb.subs[eventType]
	found := false
	for i, candidate := range subs {
		if candidate == sub {
			rb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		rb.fallback.Unsubscribe(eventType, sub)
		return
	}
	close(sub)

	if len(rb.subs[eventType]) == 0 {
		if pubsub, exists := rb.channels[eventType]; exists {
			_ = pubsub.Close()
			delete(rb.channels, eventType)
		}
	}
}

// Close shuts down the Redis connection and all subscriptions.
func (rb *RedisBus) Close() error {
	if rb.cancel != nil {
		rb.cancel()
	}
	rb.wg.Wait()

	rb.mu.Lock()
	for _, pubsub := range rb.channels {
		_ = pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	if rb.client != nil {
		return rb.client.Close()
	}
	return nil
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, using in-memory fallback")
		rb.useFallback = true
	}
}

func channelName(eventType events.EventType) string {
	return fmt.Sprintf("volund:events:%s", eventType)
}

// busMessage is the wire envelope published to Redis.
type busMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}
