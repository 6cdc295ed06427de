/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/volund_planner/internal/audit"
	"github.com/friendsincode/volund_planner/internal/auth"
	"github.com/friendsincode/volund_planner/internal/events"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/planner"
	"github.com/friendsincode/volund_planner/internal/qc"
)

const dateLayout = "2006-01-02"

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	planner   *planner.Service
	qc        *qc.Service
	auditSvc  *audit.Service
	bus       planner.EventBus
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, plannerSvc *planner.Service, qcSvc *qc.Service, auditSvc *audit.Service, bus planner.EventBus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		planner:   plannerSvc,
		qc:        qcSvc,
		auditSvc:  auditSvc,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/lanes", func(r chi.Router) {
				r.Get("/", a.handleLanesList)
				r.With(a.requireRoles(models.RoleAdmin)).Post("/", a.handleLanesCreate)
				r.Get("/{laneID}/day", a.handleLaneDayView)
			})

			pr.Route("/jobs", func(r chi.Router) {
				r.Get("/", a.handleJobsList)
				r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Post("/", a.handleJobsCreate)
				r.Route("/{jobID}", func(r chi.Router) {
					r.Get("/", a.handleJobsGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Patch("/", a.handleJobsUpdate)
					r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Delete("/", a.handleJobsDelete)
					r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Post("/place", a.handleJobsPlace)
					r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Post("/move", a.handleJobsPlace)
					r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Post("/unassign", a.handleJobsUnassign)
				})
			})

			pr.Route("/schedule", func(r chi.Router) {
				r.Get("/day", a.handleDayView)
				r.Get("/export", a.handleScheduleExport)
				r.With(a.requireRoles(models.RoleAdmin, models.RolePlanner)).Post("/import", a.handleScheduleImport)
			})

			pr.Get("/qc/{batch}", a.handleQCStatus)

			pr.With(a.requireRoles(models.RoleAdmin)).Get("/audit", a.handleAuditList)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "email = ?", req.Email).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, 24*time.Hour)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  string(user.Role),
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, exists := allowedSet[claims.Role]; !exists {
				writeError(w, http.StatusForbidden, "insufficient_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		payload["user_id"] = claims.UserID
		payload["user_email"] = claims.Email
	}
	return payload
}

func (a *API) publishAudit(r *http.Request, eventType events.EventType, entityType, entityID string, extra events.Payload) {
	if a.bus == nil {
		return
	}
	payload := a.auditContext(r)
	payload["entity_type"] = entityType
	payload["entity_id"] = entityID
	for k, v := range extra {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, time.UTC)
}
