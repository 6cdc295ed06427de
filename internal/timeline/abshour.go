/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline implements the layout and collision-resolution engine for
// the production plan: duration resolution, absolute-hour arithmetic, the
// per-lane overlap sweep, and per-day display segment projection. Everything
// in this package is pure computation over an in-memory job snapshot; callers
// own serialization and persistence.
package timeline

import (
	"math"
	"time"
)

// epoch anchors the absolute hour count. Any constant date works; it only
// has to stay fixed so stored anchors and derived hours agree.
var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// ToAbsoluteHour maps a (calendar date, hour-of-day) anchor onto the
// epoch-anchored hour count. The date component is truncated to its UTC day
// before the hour offset is added, so timezone drift cannot skew lanes.
func ToAbsoluteHour(date time.Time, hour float64) float64 {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return math.Floor(day.Sub(epoch).Hours()) + hour
}

// FromAbsoluteHour inverts ToAbsoluteHour. The value is clamped to >= 0 and
// rounded up to the next integer before decoding: when the sweep relocates a
// job to "right after" a predecessor with a fractional end (13.5h), the new
// start must never land fractionally inside the occupied slot. The returned
// hour is therefore always an integer in [0,24); values on a day boundary
// roll into hour 0 of the next date.
func FromAbsoluteHour(value float64) (time.Time, float64) {
	if value < 0 {
		value = 0
	}
	total := int(math.Ceil(value))
	days := total / 24
	hour := total % 24
	return epoch.AddDate(0, 0, days), float64(hour)
}
