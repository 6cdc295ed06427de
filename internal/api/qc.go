/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/volund_planner/internal/telemetry"
)

func (a *API) handleQCStatus(w http.ResponseWriter, r *http.Request) {
	batch := chi.URLParam(r, "batch")
	if batch == "" {
		writeError(w, http.StatusBadRequest, "batch_required")
		return
	}

	status, known, err := a.qc.Status(r.Context(), batch)
	if err != nil {
		a.logger.Error().Err(err).Str("batch", batch).Msg("qc lookup failed")
		telemetry.QCLookupsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "qc_lookup_failed")
		return
	}
	if !known {
		telemetry.QCLookupsTotal.WithLabelValues("unknown").Inc()
		writeError(w, http.StatusNotFound, "batch_unknown")
		return
	}

	telemetry.QCLookupsTotal.WithLabelValues("hit").Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"batch":  batch,
		"status": string(status),
	})
}
