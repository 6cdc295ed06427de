/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/importer"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

const maxImportSize = 4 << 20 // 4 MiB

// segmentResponse is the day-view wire shape. QCStatus is looked up per
// batch so the board can grey out blocked material.
type segmentResponse struct {
	Job              models.Job `json:"job"`
	DisplayStartHour float64    `json:"display_start_hour"`
	DisplayDuration  float64    `json:"display_duration"`
	TotalDuration    float64    `json:"total_duration"`
	CarryOver        bool       `json:"carry_over_from_previous_day"`
	Continued        bool       `json:"continued_to_next_day"`
	DayOffset        int        `json:"day_offset"`
	QCStatus         string     `json:"qc_status,omitempty"`
}

func (a *API) handleLaneDayView(w http.ResponseWriter, r *http.Request) {
	laneID := chi.URLParam(r, "laneID")
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	segments, err := a.planner.DayView(laneID, date)
	if err != nil {
		a.writePlannerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lane_id":  laneID,
		"date":     date.Format(dateLayout),
		"segments": a.segmentResponses(r, segments),
	})
}

func (a *API) handleDayView(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	byLane := a.planner.DayViewAll(date)
	lanes := make(map[string][]segmentResponse, len(byLane))
	for laneID, segments := range byLane {
		lanes[laneID] = a.segmentResponses(r, segments)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format(dateLayout),
		"lanes": lanes,
	})
}

func (a *API) handleScheduleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed")
		return
	}

	jobs, err := importer.Parse(data)
	if err != nil {
		a.logger.Warn().Err(err).Msg("schedule import rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_document",
			"detail": err.Error(),
		})
		return
	}

	accepted, errs := a.planner.Import(r.Context(), jobs)
	details := make([]string, 0, len(errs))
	for _, e := range errs {
		details = append(details, e.Error())
	}

	a.publishAudit(r, events.EventAuditImport, "schedule", "", events.Payload{
		"accepted": accepted,
		"rejected": len(errs),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"rejected": len(errs),
		"errors":   details,
	})
}

func (a *API) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	data, err := importer.Export(a.planner.Jobs())
	if err != nil {
		a.logger.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.yaml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) segmentResponses(r *http.Request, segments []timeline.Segment) []segmentResponse {
	out := make([]segmentResponse, 0, len(segments))
	for _, seg := range segments {
		resp := segmentResponse{
			Job:              seg.Job,
			DisplayStartHour: seg.DisplayStartHour,
			DisplayDuration:  seg.DisplayDuration,
			TotalDuration:    seg.TotalDuration,
			CarryOver:        seg.CarryOverFromPreviousDay,
			Continued:        seg.ContinuedToNextDay,
			DayOffset:        seg.DayOffset,
		}
		if a.qc != nil && seg.Job.Batch != "" {
			if status, known, err := a.qc.Status(r.Context(), seg.Job.Batch); err == nil && known {
				resp.QCStatus = string(status)
			}
		}
		out = append(out, resp)
	}
	return out
}
