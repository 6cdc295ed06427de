/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RolePlanner RoleName = "planner"
	RoleViewer  RoleName = "viewer"
)

// User represents an authenticated account.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Password  string    `json:"-"`
	Role      RoleName  `gorm:"type:varchar(16)" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobKind enumerates how a job derives its duration.
type JobKind string

const (
	KindStandard    JobKind = "standard"
	KindCleaning    JobKind = "cleaning"
	KindMaintenance JobKind = "maintenance"
	KindOther       JobKind = "other"
)

// CleaningVariant selects a fixed cleaning duration.
type CleaningVariant string

const (
	CleaningA CleaningVariant = "A"
	CleaningB CleaningVariant = "B"
	CleaningC CleaningVariant = "C"
	CleaningD CleaningVariant = "D"
	CleaningE CleaningVariant = "E"
)

// PressMode scales a job's computed duration. Modeled as a single enum so
// the contradictory "double and triple at once" state cannot be stored;
// legacy flag pairs are resolved triple-first at the import boundary.
type PressMode string

const (
	PressNone   PressMode = "none"
	PressDouble PressMode = "double"
	PressTriple PressMode = "triple"
)

// Factor returns the duration multiplier for the press mode.
func (p PressMode) Factor() float64 {
	switch p {
	case PressTriple:
		return 3
	case PressDouble:
		return 2
	default:
		return 1
	}
}

// Job is the schedulable unit of production work.
//
// LaneID "" means unassigned; an unassigned job carries no ScheduleDate or
// StartHour. ScheduleDate is a UTC midnight anchor date and StartHour the
// hour-of-day offset within it (fractional allowed, [0,24)).
type Job struct {
	ID   string `gorm:"type:uuid;primaryKey" json:"id"`
	Name string `gorm:"index" json:"name"`

	// Batch ties the job to the QC lab's batch records.
	Batch string `gorm:"index" json:"batch,omitempty"`

	Kind            JobKind         `gorm:"type:varchar(16);index" json:"kind"`
	CleaningVariant CleaningVariant `gorm:"type:varchar(4)" json:"cleaning_variant,omitempty"`

	// MaintenanceHours is the operator-editable duration for maintenance jobs.
	MaintenanceHours float64 `json:"maintenance_hours,omitempty"`

	// Quantity is the mass to produce in kg (standard/other jobs).
	Quantity float64 `json:"quantity,omitempty"`

	// OutputRate is the throughput in kg/h. Non-positive values fall back
	// to the configured default at duration resolution time.
	OutputRate float64 `json:"output_rate,omitempty"`

	PressMode PressMode `gorm:"type:varchar(8)" json:"press_mode,omitempty"`

	LaneID       string     `gorm:"index" json:"lane_id,omitempty"`
	ScheduleDate *time.Time `gorm:"index" json:"schedule_date,omitempty"`
	StartHour    *float64   `json:"start_hour,omitempty"`

	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the job is placed on a lane with a valid anchor.
func (j *Job) Assigned() bool {
	return j.LaneID != "" && j.ScheduleDate != nil && j.StartHour != nil
}

// ClearPlacement returns the job to the unassigned pool.
func (j *Job) ClearPlacement() {
	j.LaneID = ""
	j.ScheduleDate = nil
	j.StartHour = nil
}

// SetPlacement anchors the job on a lane at date + hour-of-day.
func (j *Job) SetPlacement(laneID string, date time.Time, hour float64) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	j.LaneID = laneID
	j.ScheduleDate = &day
	j.StartHour = &hour
}

// Lane is a production line hosting a sequence of non-overlapping jobs.
type Lane struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string `gorm:"uniqueIndex" json:"name"`
	Color    string `gorm:"type:varchar(16)" json:"color,omitempty"`
	Position int    `json:"position"`

	// AvgOutputRate feeds capacity reporting, not placement.
	AvgOutputRate float64 `json:"avg_output_rate,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QCStatus enumerates lab verdicts for a production batch.
type QCStatus string

const (
	QCPending  QCStatus = "pending"
	QCReleased QCStatus = "released"
	QCBlocked  QCStatus = "blocked"
)

// QCRecord mirrors the external lab's batch verdicts.
type QCRecord struct {
	Batch     string    `gorm:"primaryKey" json:"batch"`
	Status    QCStatus  `gorm:"type:varchar(16)" json:"status"`
	CheckedAt time.Time `json:"checked_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditLog records who changed what on the plan.
type AuditLog struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Action     string    `gorm:"type:varchar(64);index" json:"action"`
	EntityType string    `gorm:"type:varchar(32)" json:"entity_type"`
	EntityID   string    `gorm:"index" json:"entity_id"`
	UserID     string    `gorm:"index" json:"user_id"`
	UserEmail  string    `json:"user_email,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
