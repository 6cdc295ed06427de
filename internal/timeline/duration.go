/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"github.com/friendsincode/volund_planner/internal/models"
)

// DefaultFallbackRate is substituted when a standard job carries no usable
// output rate (kg/h).
const DefaultFallbackRate = 50.0

// minimumDuration is the last-resort floor when even the fallback rate
// resolves to a non-positive span. Kept deliberately: the planner UI must
// always have a visible bar to grab.
const minimumDuration = 1.0

// cleaningMinutes maps cleaning variants to their fixed minute durations.
var cleaningMinutes = map[models.CleaningVariant]float64{
	models.CleaningA: 30,
	models.CleaningB: 60,
	models.CleaningC: 90,
	models.CleaningD: 120,
	models.CleaningE: 480,
}

// Duration resolves a job's time span in hours using the default fallback
// rate. The result is always strictly positive.
func Duration(job models.Job) float64 {
	return DurationWithFallback(job, DefaultFallbackRate)
}

// DurationWithFallback resolves a job's time span in hours, substituting
// fallbackRate when the job's own output rate is absent or non-positive.
func DurationWithFallback(job models.Job, fallbackRate float64) float64 {
	if fallbackRate <= 0 {
		fallbackRate = DefaultFallbackRate
	}

	var hours float64
	switch job.Kind {
	case models.KindCleaning:
		if minutes, ok := cleaningMinutes[job.CleaningVariant]; ok {
			hours = minutes / 60
		}
	case models.KindMaintenance:
		hours = job.MaintenanceHours
	default:
		rate := job.OutputRate
		if rate <= 0 {
			rate = fallbackRate
		}
		hours = job.Quantity / rate
	}

	if hours <= 0 {
		hours = minimumDuration
	}

	return hours * job.PressMode.Factor()
}
