/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

type jobCreateRequest struct {
	Name             string  `json:"name"`
	Batch            string  `json:"batch"`
	Kind             string  `json:"kind"`
	CleaningVariant  string  `json:"cleaning_variant"`
	MaintenanceHours float64 `json:"maintenance_hours"`
	Quantity         float64 `json:"quantity"`
	OutputRate       float64 `json:"output_rate"`
	PressMode        string  `json:"press_mode"`
	Notes            string  `json:"notes"`
}

type jobUpdateRequest struct {
	Name             *string  `json:"name"`
	Batch            *string  `json:"batch"`
	Quantity         *float64 `json:"quantity"`
	OutputRate       *float64 `json:"output_rate"`
	PressMode        *string  `json:"press_mode"`
	MaintenanceHours *float64 `json:"maintenance_hours"`
	CleaningVariant  *string  `json:"cleaning_variant"`
	Notes            *string  `json:"notes"`
}

type placeRequest struct {
	LaneID string  `json:"lane_id"`
	Date   string  `json:"date"`
	Hour   float64 `json:"hour"`
}

func (a *API) handleJobsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.planner.Jobs())
}

func (a *API) handleJobsGet(w http.ResponseWriter, r *http.Request) {
	job, ok := a.planner.Job(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job_not_found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	kind := models.JobKind(req.Kind)
	if req.Kind == "" {
		kind = models.KindStandard
	}
	switch kind {
	case models.KindStandard, models.KindCleaning, models.KindMaintenance, models.KindOther:
	default:
		writeError(w, http.StatusBadRequest, "unknown_kind")
		return
	}

	job := models.Job{
		Name:             req.Name,
		Batch:            req.Batch,
		Kind:             kind,
		MaintenanceHours: req.MaintenanceHours,
		Quantity:         req.Quantity,
		OutputRate:       req.OutputRate,
		PressMode:        models.PressMode(req.PressMode),
		Notes:            req.Notes,
	}
	if job.PressMode == "" {
		job.PressMode = models.PressNone
	}
	if kind == models.KindCleaning {
		variant := models.CleaningVariant(req.CleaningVariant)
		switch variant {
		case models.CleaningA, models.CleaningB, models.CleaningC, models.CleaningD, models.CleaningE:
			job.CleaningVariant = variant
		default:
			writeError(w, http.StatusBadRequest, "unknown_cleaning_variant")
			return
		}
	}

	created, err := a.planner.CreateJob(r.Context(), job)
	if err != nil {
		a.logger.Error().Err(err).Msg("job create failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}

	a.publishAudit(r, events.EventAuditJobCreate, "job", created.ID, events.Payload{"name": created.Name})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleJobsUpdate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req jobUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	update := timeline.AttributeUpdate{
		Name:             req.Name,
		Batch:            req.Batch,
		Quantity:         req.Quantity,
		OutputRate:       req.OutputRate,
		MaintenanceHours: req.MaintenanceHours,
		Notes:            req.Notes,
	}
	if req.PressMode != nil {
		mode := models.PressMode(*req.PressMode)
		switch mode {
		case models.PressNone, models.PressDouble, models.PressTriple:
			update.PressMode = &mode
		default:
			writeError(w, http.StatusBadRequest, "unknown_press_mode")
			return
		}
	}
	if req.CleaningVariant != nil {
		variant := models.CleaningVariant(*req.CleaningVariant)
		switch variant {
		case models.CleaningA, models.CleaningB, models.CleaningC, models.CleaningD, models.CleaningE:
			update.CleaningVariant = &variant
		default:
			writeError(w, http.StatusBadRequest, "unknown_cleaning_variant")
			return
		}
	}

	job, adjustments, err := a.planner.UpdateAttributes(r.Context(), jobID, update)
	if err != nil {
		a.writePlannerError(w, err)
		return
	}

	a.publishAudit(r, events.EventAuditJobUpdate, "job", jobID, events.Payload{"displaced": len(adjustments)})
	writeJSON(w, http.StatusOK, map[string]any{
		"job":       job,
		"displaced": len(adjustments),
	})
}

func (a *API) handleJobsDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := a.planner.Remove(r.Context(), jobID); err != nil {
		a.writePlannerError(w, err)
		return
	}
	a.publishAudit(r, events.EventAuditJobRemove, "job", jobID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleJobsPlace(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	adjustments, err := a.planner.Place(r.Context(), jobID, req.LaneID, date, req.Hour)
	if err != nil {
		a.writePlannerError(w, err)
		return
	}

	job, _ := a.planner.Job(jobID)
	a.publishAudit(r, events.EventAuditJobPlace, "job", jobID, events.Payload{
		"lane_id":   req.LaneID,
		"date":      req.Date,
		"hour":      req.Hour,
		"displaced": len(adjustments),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"job":         job,
		"adjustments": adjustments,
	})
}

func (a *API) handleJobsUnassign(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := a.planner.Unassign(r.Context(), jobID); err != nil {
		a.writePlannerError(w, err)
		return
	}
	a.publishAudit(r, events.EventAuditJobUpdate, "job", jobID, events.Payload{"unassigned": true})
	w.WriteHeader(http.StatusNoContent)
}

// writePlannerError maps timeline errors onto HTTP statuses.
func (a *API) writePlannerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job_not_found")
	case errors.Is(err, timeline.ErrUnknownLane):
		writeError(w, http.StatusNotFound, "unknown_lane")
	case errors.Is(err, timeline.ErrLaneNotAllowed):
		writeError(w, http.StatusConflict, "lane_not_allowed")
	default:
		a.logger.Error().Err(err).Msg("planner operation failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
