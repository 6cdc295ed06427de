/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"testing"
	"time"
)

func TestToAbsoluteHour(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		hour float64
		want float64
	}{
		{
			name: "epoch midnight is zero",
			date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			hour: 0,
			want: 0,
		},
		{
			name: "hour offset within epoch day",
			date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			hour: 13.5,
			want: 13.5,
		},
		{
			name: "next day",
			date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			hour: 6,
			want: 30,
		},
		{
			name: "time-of-day on the date is ignored",
			date: time.Date(2020, 1, 2, 17, 45, 0, 0, time.UTC),
			hour: 6,
			want: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToAbsoluteHour(tt.date, tt.hour); got != tt.want {
				t.Errorf("ToAbsoluteHour() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromAbsoluteHour(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantDate time.Time
		wantHour float64
	}{
		{
			name:     "zero decodes to epoch",
			value:    0,
			wantDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantHour: 0,
		},
		{
			name:     "fractional value rounds up",
			value:    13.5,
			wantDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantHour: 14,
		},
		{
			name:     "negative value clamps to zero",
			value:    -5,
			wantDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantHour: 0,
		},
		{
			name:     "day boundary rolls into next date",
			value:    24,
			wantDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			wantHour: 0,
		},
		{
			name:     "value just under a day boundary ceils into the next date",
			value:    23.2,
			wantDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			wantHour: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, hour := FromAbsoluteHour(tt.value)
			if !date.Equal(tt.wantDate) {
				t.Errorf("FromAbsoluteHour() date = %v, want %v", date, tt.wantDate)
			}
			if hour != tt.wantHour {
				t.Errorf("FromAbsoluteHour() hour = %v, want %v", hour, tt.wantHour)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	// Ceiling semantics: re-encoding the decoded anchor lands on an
	// integer within [v, v+1).
	values := []float64{0, 0.25, 1, 13.5, 23.999, 24, 47.01, 100, 719.5, 8760}

	for _, v := range values {
		date, hour := FromAbsoluteHour(v)
		back := ToAbsoluteHour(date, hour)
		if back != float64(int(back)) {
			t.Errorf("round trip of %v produced non-integer %v", v, back)
		}
		if back < v || back >= v+1 {
			t.Errorf("round trip of %v = %v, want within [%v, %v)", v, back, v, v+1)
		}
	}
}
