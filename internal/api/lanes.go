/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
)

func (a *API) handleLanesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.planner.Lanes())
}

func (a *API) handleLanesCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string  `json:"name"`
		Color         string  `json:"color"`
		AvgOutputRate float64 `json:"avg_output_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	lane, err := a.planner.CreateLane(r.Context(), models.Lane{
		Name:          req.Name,
		Color:         req.Color,
		AvgOutputRate: req.AvgOutputRate,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("lane create failed")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}

	a.publishAudit(r, events.EventAuditLaneCreate, "lane", lane.ID, events.Payload{"name": lane.Name})
	writeJSON(w, http.StatusCreated, lane)
}
