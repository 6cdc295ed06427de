/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/volund_planner/internal/models"
)

func testLanes() []models.Lane {
	return []models.Lane{
		{ID: "lane-1", Name: "Line 1", Position: 1},
		{ID: "lane-2", Name: "Line 2", Position: 2},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(testLanes(), zerolog.Nop(), opts...)
}

func TestEnginePlaceSweepsLane(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	if _, err := engine.AddJob(models.Job{ID: "job-a", Kind: models.KindStandard, Quantity: 100, OutputRate: 50}); err != nil {
		t.Fatalf("add job-a: %v", err)
	}
	if _, err := engine.AddJob(models.Job{ID: "job-b", Kind: models.KindStandard, Quantity: 200, OutputRate: 50}); err != nil {
		t.Fatalf("add job-b: %v", err)
	}

	if _, err := engine.Place("job-a", "lane-1", day, 0); err != nil {
		t.Fatalf("place job-a: %v", err)
	}
	adjustments, err := engine.Place("job-b", "lane-1", day, 1)
	if err != nil {
		t.Fatalf("place job-b: %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].JobID != "job-b" {
		t.Fatalf("expected job-b to be displaced, got %+v", adjustments)
	}

	job, _ := engine.Job("job-b")
	if *job.StartHour != 2 {
		t.Errorf("job-b start hour = %v, want 2", *job.StartHour)
	}
}

func TestEnginePlaceUnknownJobOrLane(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	if _, err := engine.Place("missing", "lane-1", day, 0); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Place(missing job) err = %v, want ErrJobNotFound", err)
	}

	if _, err := engine.AddJob(models.Job{ID: "job-a", Kind: models.KindStandard, Quantity: 100}); err != nil {
		t.Fatalf("add job-a: %v", err)
	}
	if _, err := engine.Place("job-a", "lane-9", day, 0); !errors.Is(err, ErrUnknownLane) {
		t.Errorf("Place(unknown lane) err = %v, want ErrUnknownLane", err)
	}
}

func TestEngineKindRestriction(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, WithKindRestriction(models.KindCleaning, "lane-2"))

	if _, err := engine.AddJob(models.Job{ID: "job-clean", Kind: models.KindCleaning, CleaningVariant: models.CleaningB}); err != nil {
		t.Fatalf("add job: %v", err)
	}

	if _, err := engine.Place("job-clean", "lane-1", day, 4); !errors.Is(err, ErrLaneNotAllowed) {
		t.Fatalf("Place on restricted lane err = %v, want ErrLaneNotAllowed", err)
	}

	// Rejection must leave the job untouched.
	job, _ := engine.Job("job-clean")
	if job.Assigned() {
		t.Errorf("rejected placement mutated the job: %+v", job)
	}

	if _, err := engine.Place("job-clean", "lane-2", day, 4); err != nil {
		t.Fatalf("Place on allowed lane err = %v", err)
	}
}

func TestEngineAttributeEditResweepsLane(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	maintenance := models.Job{ID: "job-m", Kind: models.KindMaintenance, MaintenanceHours: 2.5}
	if _, err := engine.AddJob(maintenance); err != nil {
		t.Fatalf("add maintenance: %v", err)
	}
	follower := models.Job{ID: "job-f", Kind: models.KindStandard, Quantity: 100, OutputRate: 50}
	if _, err := engine.AddJob(follower); err != nil {
		t.Fatalf("add follower: %v", err)
	}

	if _, err := engine.Place("job-m", "lane-1", day, 0); err != nil {
		t.Fatalf("place maintenance: %v", err)
	}
	// 2.5h ends at 2.5, ceil 3: the follower sits right after.
	if _, err := engine.Place("job-f", "lane-1", day, 3); err != nil {
		t.Fatalf("place follower: %v", err)
	}

	hours := 4.0
	adjustments, err := engine.UpdateAttributes("job-m", AttributeUpdate{MaintenanceHours: &hours})
	if err != nil {
		t.Fatalf("update maintenance hours: %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].JobID != "job-f" {
		t.Fatalf("expected follower displacement, got %+v", adjustments)
	}

	follower, _ = engine.Job("job-f")
	if *follower.StartHour != 4 {
		t.Errorf("follower start hour = %v, want 4", *follower.StartHour)
	}
}

func TestEngineReplaceSnapshotRepairsOverlaps(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	jobs := []models.Job{
		placedJob("job-a", models.KindStandard, 100, 50, day, 0),
		placedJob("job-b", models.KindStandard, 100, 50, day, 1),
		placedJob("job-c", models.KindStandard, 100, 50, day, 1.5),
	}

	adjustments := engine.ReplaceSnapshot(jobs)
	if len(adjustments) != 2 {
		t.Fatalf("ReplaceSnapshot() repaired %d jobs, want 2", len(adjustments))
	}

	b, _ := engine.Job("job-b")
	c, _ := engine.Job("job-c")
	if *b.StartHour != 2 || *c.StartHour != 4 {
		t.Errorf("repaired starts = (%v, %v), want (2, 4)", *b.StartHour, *c.StartHour)
	}
}

func TestEngineMoveResweepsBothLanes(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	for _, job := range []models.Job{
		{ID: "job-a", Kind: models.KindStandard, Quantity: 100, OutputRate: 50},
		{ID: "job-b", Kind: models.KindStandard, Quantity: 100, OutputRate: 50},
	} {
		if _, err := engine.AddJob(job); err != nil {
			t.Fatalf("add %s: %v", job.ID, err)
		}
	}
	if _, err := engine.Place("job-a", "lane-1", day, 0); err != nil {
		t.Fatalf("place job-a: %v", err)
	}
	if _, err := engine.Place("job-b", "lane-2", day, 0); err != nil {
		t.Fatalf("place job-b: %v", err)
	}

	// Moving job-b onto lane-1 at the same hour collides with job-a.
	adjustments, err := engine.Place("job-b", "lane-1", day, 0)
	if err != nil {
		t.Fatalf("move job-b: %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].JobID != "job-b" {
		t.Fatalf("expected job-b displacement, got %+v", adjustments)
	}
	if len(engine.LaneJobs("lane-2")) != 0 {
		t.Error("job-b still listed on its old lane")
	}
}

func TestEngineUnassignAndRemove(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	if _, err := engine.AddJob(models.Job{ID: "job-a", Kind: models.KindStandard, Quantity: 100}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if _, err := engine.Place("job-a", "lane-1", day, 5); err != nil {
		t.Fatalf("place job: %v", err)
	}

	if err := engine.Unassign("job-a"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	job, _ := engine.Job("job-a")
	if job.Assigned() {
		t.Errorf("job still assigned after unassign: %+v", job)
	}
	if segments, _ := engine.DayView("lane-1", day); len(segments) != 0 {
		t.Errorf("unassigned job still renders: %+v", segments)
	}

	if err := engine.Remove("job-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := engine.Job("job-a"); ok {
		t.Error("job still present after remove")
	}
	if err := engine.Remove("job-a"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second remove err = %v, want ErrJobNotFound", err)
	}
}

func TestEngineDayViewUnknownLane(t *testing.T) {
	engine := newTestEngine(t)
	if _, err := engine.DayView("lane-9", time.Now()); !errors.Is(err, ErrUnknownLane) {
		t.Errorf("DayView(unknown lane) err = %v, want ErrUnknownLane", err)
	}
}

func TestEngineNormalizesAnchor(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(t)

	if _, err := engine.AddJob(models.Job{ID: "job-a", Kind: models.KindStandard, Quantity: 100}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if _, err := engine.Place("job-a", "lane-1", day, 26); err != nil {
		t.Fatalf("place with hour 26: %v", err)
	}

	job, _ := engine.Job("job-a")
	if !job.ScheduleDate.Equal(day.AddDate(0, 0, 1)) || *job.StartHour != 2 {
		t.Errorf("anchor = (%v, %v), want rolled to next day hour 2", job.ScheduleDate, *job.StartHour)
	}
}
