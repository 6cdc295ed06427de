/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/volund_planner/internal/audit"
)

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := audit.QueryFilters{
		UserID:   q.Get("user_id"),
		Action:   q.Get("action"),
		EntityID: q.Get("entity_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			filters.Offset = offset
		}
	}
	if raw := q.Get("since"); raw != "" {
		if since, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Since = &since
		}
	}
	if raw := q.Get("until"); raw != "" {
		if until, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Until = &until
		}
	}

	logs, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit query failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"logs":  logs,
	})
}
