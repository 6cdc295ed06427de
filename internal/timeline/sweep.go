/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"math"
	"sort"
	"time"

	"github.com/friendsincode/volund_planner/internal/models"
)

// Adjustment is a repositioning the sweep wants applied to one job.
type Adjustment struct {
	JobID        string
	ScheduleDate time.Time
	StartHour    float64
}

// Sweep resolves overlaps within one lane's jobs using the default fallback
// rate. See SweepWithFallback.
func Sweep(jobs []models.Job) []Adjustment {
	return SweepWithFallback(jobs, DefaultFallbackRate)
}

// SweepWithFallback sorts the lane's assigned jobs by absolute start (ties by
// ID) and walks them left to right, pushing any job that starts before the
// running ceil-rounded end to begin exactly at that end. Only repositioned
// jobs are returned. The pass never pulls a job earlier and never reorders
// the lane, so re-running it on a resolved lane is a no-op.
func SweepWithFallback(jobs []models.Job, fallbackRate float64) []Adjustment {
	type placed struct {
		job      models.Job
		absStart float64
		duration float64
	}

	lane := make([]placed, 0, len(jobs))
	for _, job := range jobs {
		if !job.Assigned() {
			continue
		}
		lane = append(lane, placed{
			job:      job,
			absStart: ToAbsoluteHour(*job.ScheduleDate, *job.StartHour),
			duration: DurationWithFallback(job, fallbackRate),
		})
	}
	if len(lane) == 0 {
		return nil
	}

	sort.SliceStable(lane, func(i, j int) bool {
		if lane[i].absStart != lane[j].absStart {
			return lane[i].absStart < lane[j].absStart
		}
		return lane[i].job.ID < lane[j].job.ID
	})

	var adjustments []Adjustment
	currentEnd := math.Ceil(lane[0].absStart + lane[0].duration)

	for _, entry := range lane[1:] {
		if entry.absStart < currentEnd {
			date, hour := FromAbsoluteHour(currentEnd)
			adjustments = append(adjustments, Adjustment{
				JobID:        entry.job.ID,
				ScheduleDate: date,
				StartHour:    hour,
			})
			currentEnd = math.Ceil(currentEnd + entry.duration)
			continue
		}
		currentEnd = math.Ceil(entry.absStart + entry.duration)
	}

	return adjustments
}
