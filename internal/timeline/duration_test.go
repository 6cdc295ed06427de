/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"testing"

	"github.com/friendsincode/volund_planner/internal/models"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		job  models.Job
		want float64
	}{
		{
			name: "standard job divides quantity by rate",
			job:  models.Job{Kind: models.KindStandard, Quantity: 100, OutputRate: 50},
			want: 2,
		},
		{
			name: "missing rate falls back to 50",
			job:  models.Job{Kind: models.KindStandard, Quantity: 200},
			want: 4,
		},
		{
			name: "negative rate falls back to 50",
			job:  models.Job{Kind: models.KindStandard, Quantity: 100, OutputRate: -10},
			want: 2,
		},
		{
			name: "zero quantity floors to one hour",
			job:  models.Job{Kind: models.KindStandard, Quantity: 0, OutputRate: 50},
			want: 1,
		},
		{
			name: "other kind uses quantity over rate",
			job:  models.Job{Kind: models.KindOther, Quantity: 75, OutputRate: 25},
			want: 3,
		},
		{
			name: "cleaning variant A is 30 minutes",
			job:  models.Job{Kind: models.KindCleaning, CleaningVariant: models.CleaningA},
			want: 0.5,
		},
		{
			name: "cleaning variant C is 90 minutes",
			job:  models.Job{Kind: models.KindCleaning, CleaningVariant: models.CleaningC},
			want: 1.5,
		},
		{
			name: "cleaning variant E is 480 minutes",
			job:  models.Job{Kind: models.KindCleaning, CleaningVariant: models.CleaningE},
			want: 8,
		},
		{
			name: "unknown cleaning variant floors to one hour",
			job:  models.Job{Kind: models.KindCleaning, CleaningVariant: "Z"},
			want: 1,
		},
		{
			name: "maintenance uses explicit hours",
			job:  models.Job{Kind: models.KindMaintenance, MaintenanceHours: 2.5},
			want: 2.5,
		},
		{
			name: "non-positive maintenance floors to one hour",
			job:  models.Job{Kind: models.KindMaintenance, MaintenanceHours: 0},
			want: 1,
		},
		{
			name: "double press doubles the base duration",
			job:  models.Job{Kind: models.KindStandard, Quantity: 100, OutputRate: 50, PressMode: models.PressDouble},
			want: 4,
		},
		{
			name: "triple press triples the base duration",
			job:  models.Job{Kind: models.KindStandard, Quantity: 300, OutputRate: 50, PressMode: models.PressTriple},
			want: 18,
		},
		{
			name: "press multiplier applies after the duration floor",
			job:  models.Job{Kind: models.KindStandard, Quantity: 0, PressMode: models.PressTriple},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Duration(tt.job); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationWithFallback(t *testing.T) {
	job := models.Job{Kind: models.KindStandard, Quantity: 120}

	if got := DurationWithFallback(job, 60); got != 2 {
		t.Errorf("DurationWithFallback(rate 60) = %v, want 2", got)
	}

	// A broken fallback configuration degrades to the built-in default.
	if got := DurationWithFallback(job, 0); got != 2.4 {
		t.Errorf("DurationWithFallback(rate 0) = %v, want 2.4", got)
	}
}

func TestDurationIsAlwaysPositive(t *testing.T) {
	jobs := []models.Job{
		{},
		{Kind: models.KindStandard, Quantity: -100},
		{Kind: models.KindMaintenance, MaintenanceHours: -4},
		{Kind: models.KindCleaning},
		{Kind: models.KindOther, OutputRate: -1},
	}

	for _, job := range jobs {
		if got := Duration(job); got <= 0 {
			t.Errorf("Duration(%+v) = %v, want > 0", job, got)
		}
	}
}
