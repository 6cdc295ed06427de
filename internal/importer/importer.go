/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer reads and writes the YAML schedule exchange format. It is
// the compatibility boundary with the legacy planning sheets: old exports
// carry press_double/press_triple flag pairs, which are resolved triple-first
// into the single press mode the rest of the system works with.
package importer

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/volund_planner/internal/models"
)

const dateLayout = "2006-01-02"

// Record is one job in the exchange document.
type Record struct {
	ID    string `yaml:"id,omitempty"`
	Name  string `yaml:"name"`
	Batch string `yaml:"batch,omitempty"`

	Kind             string  `yaml:"kind,omitempty"`
	CleaningVariant  string  `yaml:"cleaning_variant,omitempty"`
	MaintenanceHours float64 `yaml:"maintenance_hours,omitempty"`

	Quantity   float64 `yaml:"quantity,omitempty"`
	OutputRate float64 `yaml:"output_rate,omitempty"`

	// PressMode is the current format; the flag pair below is the legacy
	// one. When both flags are set, triple wins.
	PressMode   string `yaml:"press_mode,omitempty"`
	PressDouble bool   `yaml:"press_double,omitempty"`
	PressTriple bool   `yaml:"press_triple,omitempty"`

	LaneID       string   `yaml:"lane_id,omitempty"`
	ScheduleDate string   `yaml:"schedule_date,omitempty"`
	StartHour    *float64 `yaml:"start_hour,omitempty"`

	Notes string `yaml:"notes,omitempty"`
}

// Document is the top-level exchange file.
type Document struct {
	Jobs []Record `yaml:"jobs"`
}

// Parse decodes an exchange document into job records.
func Parse(data []byte) ([]models.Job, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schedule document: %w", err)
	}

	jobs := make([]models.Job, 0, len(doc.Jobs))
	for i, rec := range doc.Jobs {
		job, err := rec.toJob()
		if err != nil {
			return nil, fmt.Errorf("record %d (%q): %w", i, rec.Name, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Export encodes the given jobs as an exchange document in the current
// format (press_mode, no legacy flags).
func Export(jobs []models.Job) ([]byte, error) {
	doc := Document{Jobs: make([]Record, 0, len(jobs))}
	for _, job := range jobs {
		rec := Record{
			ID:               job.ID,
			Name:             job.Name,
			Batch:            job.Batch,
			Kind:             string(job.Kind),
			CleaningVariant:  string(job.CleaningVariant),
			MaintenanceHours: job.MaintenanceHours,
			Quantity:         job.Quantity,
			OutputRate:       job.OutputRate,
			LaneID:           job.LaneID,
			Notes:            job.Notes,
		}
		if job.PressMode != "" && job.PressMode != models.PressNone {
			rec.PressMode = string(job.PressMode)
		}
		if job.ScheduleDate != nil {
			rec.ScheduleDate = job.ScheduleDate.Format(dateLayout)
		}
		if job.StartHour != nil {
			hour := *job.StartHour
			rec.StartHour = &hour
		}
		doc.Jobs = append(doc.Jobs, rec)
	}
	return yaml.Marshal(&doc)
}

func (r Record) toJob() (models.Job, error) {
	if r.Name == "" {
		return models.Job{}, fmt.Errorf("name is required")
	}

	kind, err := parseKind(r.Kind)
	if err != nil {
		return models.Job{}, err
	}

	job := models.Job{
		ID:               r.ID,
		Name:             r.Name,
		Batch:            r.Batch,
		Kind:             kind,
		MaintenanceHours: r.MaintenanceHours,
		Quantity:         r.Quantity,
		OutputRate:       r.OutputRate,
		PressMode:        resolvePressMode(r),
		Notes:            r.Notes,
	}

	if kind == models.KindCleaning {
		variant := models.CleaningVariant(r.CleaningVariant)
		switch variant {
		case models.CleaningA, models.CleaningB, models.CleaningC, models.CleaningD, models.CleaningE:
			job.CleaningVariant = variant
		default:
			return models.Job{}, fmt.Errorf("unknown cleaning variant %q", r.CleaningVariant)
		}
	}

	if r.LaneID != "" {
		if r.ScheduleDate == "" || r.StartHour == nil {
			return models.Job{}, fmt.Errorf("placed record needs schedule_date and start_hour")
		}
		date, err := time.ParseInLocation(dateLayout, r.ScheduleDate, time.UTC)
		if err != nil {
			return models.Job{}, fmt.Errorf("invalid schedule_date %q: %w", r.ScheduleDate, err)
		}
		job.SetPlacement(r.LaneID, date, *r.StartHour)
	}

	return job, nil
}

func parseKind(raw string) (models.JobKind, error) {
	if raw == "" {
		return models.KindStandard, nil
	}
	kind := models.JobKind(raw)
	switch kind {
	case models.KindStandard, models.KindCleaning, models.KindMaintenance, models.KindOther:
		return kind, nil
	}
	return "", fmt.Errorf("unknown job kind %q", raw)
}

// resolvePressMode prefers an explicit press_mode; otherwise the legacy flag
// pair is collapsed with triple taking precedence over double.
func resolvePressMode(r Record) models.PressMode {
	switch models.PressMode(r.PressMode) {
	case models.PressDouble, models.PressTriple:
		return models.PressMode(r.PressMode)
	}
	if r.PressTriple {
		return models.PressTriple
	}
	if r.PressDouble {
		return models.PressDouble
	}
	return models.PressNone
}
