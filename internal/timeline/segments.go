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

// Segment is the portion of one job's span that falls within a single
// calendar date, produced for rendering only and never persisted.
type Segment struct {
	Job models.Job

	// DisplayStartHour / DisplayDuration position the bar within the
	// target date's 0-24h strip.
	DisplayStartHour float64
	DisplayDuration  float64

	// TotalDuration is the job's full resolved span in hours.
	TotalDuration float64

	// CarryOverFromPreviousDay marks the tail of a job begun on an earlier
	// date; ContinuedToNextDay marks a head that runs past midnight.
	CarryOverFromPreviousDay bool
	ContinuedToNextDay       bool

	// DayOffset counts whole days between the job's anchor date and the
	// target date.
	DayOffset int
}

// SegmentsForDate projects a lane's jobs onto one calendar date using the
// default fallback rate. See SegmentsForDateWithFallback.
func SegmentsForDate(jobs []models.Job, target time.Time) []Segment {
	return SegmentsForDateWithFallback(jobs, target, DefaultFallbackRate)
}

// SegmentsForDateWithFallback computes the 0-24h display segment each job
// contributes to the target date, ordered ascending by start hour. A job
// contributes at most one segment per date; the scan stops at the first
// matching day offset (jobs are assumed to be far shorter than a year).
// Unassigned jobs are excluded entirely.
func SegmentsForDateWithFallback(jobs []models.Job, target time.Time, fallbackRate float64) []Segment {
	targetDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)

	var segments []Segment
	for _, job := range jobs {
		if !job.Assigned() {
			continue
		}

		duration := DurationWithFallback(job, fallbackRate)
		startHour := *job.StartHour
		endFromStart := startHour + duration
		daysSpanned := int(math.Ceil(endFromStart / 24))

		anchor := *job.ScheduleDate
		for dayOffset := 0; dayOffset < daysSpanned; dayOffset++ {
			day := anchor.AddDate(0, 0, dayOffset)
			if !day.Equal(targetDay) {
				continue
			}

			segment := Segment{
				Job:                      job,
				TotalDuration:            duration,
				CarryOverFromPreviousDay: dayOffset > 0,
				ContinuedToNextDay:       endFromStart > float64(dayOffset+1)*24,
				DayOffset:                dayOffset,
			}
			if dayOffset == 0 {
				segment.DisplayStartHour = startHour
				if endFromStart <= 24 {
					segment.DisplayDuration = duration
				} else {
					segment.DisplayDuration = 24 - startHour
				}
			} else {
				segment.DisplayStartHour = 0
				segment.DisplayDuration = math.Min(endFromStart-float64(dayOffset)*24, 24)
			}

			segments = append(segments, segment)
			break
		}
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].DisplayStartHour != segments[j].DisplayStartHour {
			return segments[i].DisplayStartHour < segments[j].DisplayStartHour
		}
		return segments[i].Job.ID < segments[j].Job.ID
	})

	return segments
}
