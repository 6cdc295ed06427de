/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/volund_planner/internal/models"
)

var (
	// ErrJobNotFound is returned when the referenced job is not in the snapshot.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnknownLane is returned when the referenced lane is not in the catalog.
	ErrUnknownLane = errors.New("unknown lane")
	// ErrLaneNotAllowed is returned when a job kind is restricted to other lanes.
	ErrLaneNotAllowed = errors.New("job kind not allowed on lane")
)

// AttributeUpdate carries optional field edits for a job. Nil fields are
// left untouched. Edits that change the job's duration trigger a re-sweep
// of its lane.
type AttributeUpdate struct {
	Name             *string
	Batch            *string
	Quantity         *float64
	OutputRate       *float64
	PressMode        *models.PressMode
	MaintenanceHours *float64
	CleaningVariant  *models.CleaningVariant
	Notes            *string
}

// Engine holds the current job snapshot and the lane catalog, and runs the
// sweep after every mutation so lanes stay overlap-free. It performs no
// caching of day segments; they are recomputed from current state on every
// request. The engine is not safe for concurrent use — the embedding service
// serializes access.
type Engine struct {
	lanes        []models.Lane
	laneIndex    map[string]models.Lane
	restricted   map[models.JobKind]map[string]struct{}
	jobs         map[string]*models.Job
	fallbackRate float64
	logger       zerolog.Logger
}

// Option configures engine construction.
type Option func(*Engine)

// WithFallbackRate overrides the default output-rate fallback (kg/h).
func WithFallbackRate(rate float64) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.fallbackRate = rate
		}
	}
}

// WithKindRestriction limits a job kind to an allow-list of lanes. Kinds
// without a restriction may be placed anywhere.
func WithKindRestriction(kind models.JobKind, laneIDs ...string) Option {
	return func(e *Engine) {
		allowed := make(map[string]struct{}, len(laneIDs))
		for _, id := range laneIDs {
			allowed[id] = struct{}{}
		}
		e.restricted[kind] = allowed
	}
}

// NewEngine constructs an engine over the given lane catalog.
func NewEngine(lanes []models.Lane, logger zerolog.Logger, opts ...Option) *Engine {
	ordered := append([]models.Lane(nil), lanes...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	e := &Engine{
		lanes:        ordered,
		laneIndex:    make(map[string]models.Lane, len(ordered)),
		restricted:   make(map[models.JobKind]map[string]struct{}),
		jobs:         make(map[string]*models.Job),
		fallbackRate: DefaultFallbackRate,
		logger:       logger.With().Str("component", "timeline_engine").Logger(),
	}
	for _, lane := range ordered {
		e.laneIndex[lane.ID] = lane
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReplaceSnapshot swaps in a full job snapshot (bulk load, external change
// notification) and re-runs the sweep on every lane to repair any overlaps
// present in the incoming data.
func (e *Engine) ReplaceSnapshot(jobs []models.Job) []Adjustment {
	e.jobs = make(map[string]*models.Job, len(jobs))
	for i := range jobs {
		job := jobs[i]
		e.jobs[job.ID] = &job
	}

	var adjustments []Adjustment
	for _, lane := range e.lanes {
		adjustments = append(adjustments, e.resweepLane(lane.ID)...)
	}
	return adjustments
}

// Jobs returns a copy of the snapshot, ordered by ID for determinism.
func (e *Engine) Jobs() []models.Job {
	out := make([]models.Job, 0, len(e.jobs))
	for _, job := range e.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Job returns one job by ID.
func (e *Engine) Job(id string) (models.Job, bool) {
	job, ok := e.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Lanes returns the lane catalog in display order.
func (e *Engine) Lanes() []models.Lane {
	return append([]models.Lane(nil), e.lanes...)
}

// LaneJobs returns the lane's assigned jobs ordered by absolute start.
func (e *Engine) LaneJobs(laneID string) []models.Job {
	var out []models.Job
	for _, job := range e.jobs {
		if job.LaneID == laneID && job.Assigned() {
			out = append(out, *job)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a := ToAbsoluteHour(*out[i].ScheduleDate, *out[i].StartHour)
		b := ToAbsoluteHour(*out[j].ScheduleDate, *out[j].StartHour)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddJob inserts a job into the snapshot. Placed jobs go through the lane
// checks and trigger a sweep of their lane.
func (e *Engine) AddJob(job models.Job) ([]Adjustment, error) {
	if job.Assigned() {
		if err := e.checkLane(job.Kind, job.LaneID); err != nil {
			return nil, err
		}
	}
	stored := job
	e.jobs[stored.ID] = &stored
	if stored.Assigned() {
		return e.resweepLane(stored.LaneID), nil
	}
	return nil, nil
}

// Place anchors a job on a lane at date + hour-of-day and re-sweeps the
// affected lanes. A disallowed lane leaves the snapshot untouched.
func (e *Engine) Place(jobID, laneID string, date time.Time, hour float64) ([]Adjustment, error) {
	job, ok := e.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if err := e.checkLane(job.Kind, laneID); err != nil {
		return nil, err
	}

	date, hour = normalizeAnchor(date, hour)
	previousLane := job.LaneID
	job.SetPlacement(laneID, date, hour)

	adjustments := e.resweepLane(laneID)
	if previousLane != "" && previousLane != laneID {
		adjustments = append(adjustments, e.resweepLane(previousLane)...)
	}
	return adjustments, nil
}

// Unassign returns a job to the pool, dropping its anchor.
func (e *Engine) Unassign(jobID string) error {
	job, ok := e.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.ClearPlacement()
	return nil
}

// Remove deletes a job from the snapshot.
func (e *Engine) Remove(jobID string) error {
	if _, ok := e.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(e.jobs, jobID)
	return nil
}

// UpdateAttributes applies field edits and, when the job sits on a lane,
// re-sweeps it so a longer duration pushes the neighbours later.
func (e *Engine) UpdateAttributes(jobID string, update AttributeUpdate) ([]Adjustment, error) {
	job, ok := e.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	if update.Name != nil {
		job.Name = *update.Name
	}
	if update.Batch != nil {
		job.Batch = *update.Batch
	}
	if update.Quantity != nil {
		job.Quantity = *update.Quantity
	}
	if update.OutputRate != nil {
		job.OutputRate = *update.OutputRate
	}
	if update.PressMode != nil {
		job.PressMode = *update.PressMode
	}
	if update.MaintenanceHours != nil {
		job.MaintenanceHours = *update.MaintenanceHours
	}
	if update.CleaningVariant != nil {
		job.CleaningVariant = *update.CleaningVariant
	}
	if update.Notes != nil {
		job.Notes = *update.Notes
	}

	if job.Assigned() {
		return e.resweepLane(job.LaneID), nil
	}
	return nil, nil
}

// DayView projects one lane onto a calendar date.
func (e *Engine) DayView(laneID string, date time.Time) ([]Segment, error) {
	if _, ok := e.laneIndex[laneID]; !ok {
		return nil, ErrUnknownLane
	}
	return SegmentsForDateWithFallback(e.LaneJobs(laneID), date, e.fallbackRate), nil
}

// DayViewAll projects every lane onto a calendar date, keyed by lane ID.
func (e *Engine) DayViewAll(date time.Time) map[string][]Segment {
	out := make(map[string][]Segment, len(e.lanes))
	for _, lane := range e.lanes {
		out[lane.ID] = SegmentsForDateWithFallback(e.LaneJobs(lane.ID), date, e.fallbackRate)
	}
	return out
}

func (e *Engine) checkLane(kind models.JobKind, laneID string) error {
	if _, ok := e.laneIndex[laneID]; !ok {
		return ErrUnknownLane
	}
	allowed, restricted := e.restricted[kind]
	if !restricted {
		return nil
	}
	if _, ok := allowed[laneID]; !ok {
		return ErrLaneNotAllowed
	}
	return nil
}

// resweepLane runs the sweep over one lane and applies the resulting
// adjustments to the snapshot.
func (e *Engine) resweepLane(laneID string) []Adjustment {
	adjustments := SweepWithFallback(e.LaneJobs(laneID), e.fallbackRate)
	for _, adj := range adjustments {
		job, ok := e.jobs[adj.JobID]
		if !ok {
			continue
		}
		job.SetPlacement(laneID, adj.ScheduleDate, adj.StartHour)
	}
	if len(adjustments) > 0 {
		e.logger.Debug().Str("lane", laneID).Int("displaced", len(adjustments)).Msg("sweep repositioned jobs")
	}
	return adjustments
}

// normalizeAnchor clamps negative hours to 0 and rolls hour >= 24 into the
// following days, so a caller-supplied anchor can never be out of range.
func normalizeAnchor(date time.Time, hour float64) (time.Time, float64) {
	if hour < 0 {
		hour = 0
	}
	if hour >= 24 {
		days := int(math.Floor(hour / 24))
		date = date.AddDate(0, 0, days)
		hour -= float64(days) * 24
	}
	return date, hour
}
