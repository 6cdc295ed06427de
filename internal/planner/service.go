/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner wraps the timeline engine with persistence and event
// publication. The engine itself is not concurrency-safe; every operation
// here takes the service mutex, mutates the in-memory snapshot, persists the
// result and only then announces the change on the bus. When persistence
// fails the snapshot is reloaded from the database so memory never drifts
// ahead of disk.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/store"
	"github.com/friendsincode/volund_planner/internal/telemetry"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

// EventBus is the publishing surface the service needs. Both the in-process
// bus and the Redis-backed bus satisfy it.
type EventBus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Publish(eventType events.EventType, payload events.Payload)
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
}

// Service owns the live timeline state for this node.
type Service struct {
	mu     sync.Mutex
	engine *timeline.Engine
	store  *store.Store
	bus    EventBus
	logger zerolog.Logger
	nodeID string

	engineOpts []timeline.Option
}

// New creates the planner service around an already-constructed engine.
// engineOpts must match the options the engine was built with so the lane
// catalog can be rebuilt when lanes are added.
func New(engine *timeline.Engine, st *store.Store, bus EventBus, nodeID string, logger zerolog.Logger, engineOpts ...timeline.Option) *Service {
	return &Service{
		engine:     engine,
		store:      st,
		bus:        bus,
		logger:     logger.With().Str("component", "planner").Logger(),
		nodeID:     nodeID,
		engineOpts: engineOpts,
	}
}

// Load pulls the persisted job set into the engine. Overlaps present in the
// stored data (manual edits, older versions) are repaired by the sweep and
// the repaired snapshot is written back.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.store.LoadAllJobs(ctx)
	if err != nil {
		return err
	}

	adjustments := s.engine.ReplaceSnapshot(jobs)
	telemetry.SweepRunsTotal.WithLabelValues("load").Inc()
	if len(adjustments) > 0 {
		telemetry.JobsDisplacedTotal.Add(float64(len(adjustments)))
		s.logger.Info().Int("displaced", len(adjustments)).Msg("repaired overlaps in stored plan")
		if err := s.store.SaveAllJobs(ctx, s.engine.Jobs()); err != nil {
			return err
		}
	}

	s.logger.Info().Int("jobs", len(jobs)).Msg("plan loaded")
	return nil
}

// Start listens for plan rewrites from other nodes and reloads the snapshot
// when one arrives. Blocks until ctx is cancelled; run in a goroutine.
func (s *Service) Start(ctx context.Context) {
	sub := s.bus.Subscribe(events.EventJobsChanged)
	defer s.bus.Unsubscribe(events.EventJobsChanged, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if node, _ := payload["node_id"].(string); node == s.nodeID {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.logger.Error().Err(err).Msg("snapshot reload after remote change failed")
			}
		}
	}
}

// Reload replaces the in-memory snapshot with the persisted one.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Service) reloadLocked(ctx context.Context) error {
	jobs, err := s.store.LoadAllJobs(ctx)
	if err != nil {
		return err
	}
	s.engine.ReplaceSnapshot(jobs)
	return nil
}

// Jobs returns the full job snapshot.
func (s *Service) Jobs() []models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Jobs()
}

// Job returns one job by ID.
func (s *Service) Job(id string) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Job(id)
}

// Lanes returns the lane catalog in display order.
func (s *Service) Lanes() []models.Lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Lanes()
}

// LaneJobs returns the assigned jobs of one lane in start order.
func (s *Service) LaneJobs(laneID string) []models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.LaneJobs(laneID)
}

// DayView projects one lane onto a calendar date.
func (s *Service) DayView(laneID string, date time.Time) ([]timeline.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DayView(laneID, date)
}

// DayViewAll projects every lane onto a calendar date.
func (s *Service) DayViewAll(date time.Time) map[string][]timeline.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DayViewAll(date)
}

// CreateJob adds a job to the plan. Jobs arrive unassigned unless the record
// already carries a placement (imports reuse this path).
func (s *Service) CreateJob(ctx context.Context, job models.Job) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	adjustments, err := s.engine.AddJob(job)
	if err != nil {
		s.recordRejection(err)
		return models.Job{}, err
	}

	if err := s.persistLocked(ctx); err != nil {
		return models.Job{}, err
	}

	stored, _ := s.engine.Job(job.ID)
	s.publish(events.EventJobCreated, events.Payload{
		"job_id":    stored.ID,
		"job_name":  stored.Name,
		"displaced": len(adjustments),
	})
	return stored, nil
}

// Place anchors a job on a lane at date + hour and re-sweeps the affected
// lanes. A lane the job's kind is not allowed on rejects the call with no
// state change.
func (s *Service) Place(ctx context.Context, jobID, laneID string, date time.Time, hour float64) ([]timeline.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.engine.Job(jobID)
	if !ok {
		return nil, timeline.ErrJobNotFound
	}
	wasAssigned := previous.Assigned()

	adjustments, err := s.engine.Place(jobID, laneID, date, hour)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	telemetry.SweepRunsTotal.WithLabelValues("place").Inc()
	telemetry.JobsDisplacedTotal.Add(float64(len(adjustments)))

	if err := s.persistLocked(ctx); err != nil {
		if rerr := s.reloadLocked(ctx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("rollback reload failed")
		}
		return nil, err
	}

	eventType := events.EventJobPlaced
	if wasAssigned {
		eventType = events.EventJobMoved
	}
	s.publish(eventType, events.Payload{
		"job_id":    jobID,
		"lane_id":   laneID,
		"date":      date.UTC().Format("2006-01-02"),
		"hour":      hour,
		"displaced": len(adjustments),
	})
	s.publish(events.EventScheduleSwept, events.Payload{
		"lane_id":   laneID,
		"displaced": len(adjustments),
	})
	return adjustments, nil
}

// Unassign returns a job to the pool.
func (s *Service) Unassign(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Unassign(jobID); err != nil {
		return err
	}
	if err := s.persistLocked(ctx); err != nil {
		if rerr := s.reloadLocked(ctx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("rollback reload failed")
		}
		return err
	}

	s.publish(events.EventJobUnassigned, events.Payload{"job_id": jobID})
	return nil
}

// UpdateAttributes edits job fields; duration changes re-sweep the job's lane.
func (s *Service) UpdateAttributes(ctx context.Context, jobID string, update timeline.AttributeUpdate) (models.Job, []timeline.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adjustments, err := s.engine.UpdateAttributes(jobID, update)
	if err != nil {
		return models.Job{}, nil, err
	}
	if len(adjustments) > 0 {
		telemetry.SweepRunsTotal.WithLabelValues("update").Inc()
		telemetry.JobsDisplacedTotal.Add(float64(len(adjustments)))
	}

	if err := s.persistLocked(ctx); err != nil {
		if rerr := s.reloadLocked(ctx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("rollback reload failed")
		}
		return models.Job{}, nil, err
	}

	job, _ := s.engine.Job(jobID)
	s.publish(events.EventJobUpdated, events.Payload{
		"job_id":    jobID,
		"displaced": len(adjustments),
	})
	return job, adjustments, nil
}

// Remove deletes a job from the plan.
func (s *Service) Remove(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Remove(jobID); err != nil {
		return err
	}
	if err := s.persistLocked(ctx); err != nil {
		if rerr := s.reloadLocked(ctx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("rollback reload failed")
		}
		return err
	}

	s.publish(events.EventJobRemoved, events.Payload{"job_id": jobID})
	return nil
}

// Import merges a batch of job records into the plan. Records with an ID
// that already exists replace the stored job; placed records go through the
// usual lane checks and sweep. Returns the number of accepted jobs and the
// per-record errors for the rejected ones.
func (s *Service) Import(ctx context.Context, jobs []models.Job) (int, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	var errs []error
	for i := range jobs {
		job := jobs[i]
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		if _, err := s.engine.AddJob(job); err != nil {
			s.recordRejection(err)
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	telemetry.SweepRunsTotal.WithLabelValues("import").Inc()
	telemetry.ImportedJobsTotal.Add(float64(accepted))

	if accepted > 0 {
		if err := s.persistLocked(ctx); err != nil {
			if rerr := s.reloadLocked(ctx); rerr != nil {
				s.logger.Error().Err(rerr).Msg("rollback reload failed")
			}
			return 0, append(errs, err)
		}
		s.publish(events.EventJobsImported, events.Payload{
			"accepted": accepted,
			"rejected": len(errs),
		})
	}
	return accepted, errs
}

// CreateLane persists a new lane and rebuilds the engine around the grown
// catalog.
func (s *Service) CreateLane(ctx context.Context, lane models.Lane) (models.Lane, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.store.CreateLane(ctx, lane)
	if err != nil {
		return models.Lane{}, err
	}

	lanes, err := s.store.ListLanes(ctx)
	if err != nil {
		return models.Lane{}, err
	}
	jobs := s.engine.Jobs()
	s.engine = timeline.NewEngine(lanes, s.logger, s.engineOpts...)
	s.engine.ReplaceSnapshot(jobs)

	s.publish(events.EventScheduleSwept, events.Payload{"lane_id": created.ID, "displaced": 0})
	return created, nil
}

func (s *Service) persistLocked(ctx context.Context) error {
	if err := s.store.SaveAllJobs(ctx, s.engine.Jobs()); err != nil {
		s.logger.Error().Err(err).Msg("plan persist failed")
		return err
	}
	return nil
}

// publish emits the domain event plus the cross-node change notification.
func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	payload["node_id"] = s.nodeID
	s.bus.Publish(eventType, payload)
	s.bus.Publish(events.EventJobsChanged, events.Payload{"node_id": s.nodeID, "cause": string(eventType)})
}

func (s *Service) recordRejection(err error) {
	switch {
	case errors.Is(err, timeline.ErrLaneNotAllowed):
		telemetry.PlacementRejectionsTotal.WithLabelValues("kind_restricted").Inc()
	case errors.Is(err, timeline.ErrUnknownLane):
		telemetry.PlacementRejectionsTotal.WithLabelValues("unknown_lane").Inc()
	}
}
