/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volund_api_requests_total",
		Help: "Total number of API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration tracks request latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "volund_api_request_duration_seconds",
		Help:    "API request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volund_api_active_connections",
		Help: "Number of in-flight API requests.",
	})

	// SweepRunsTotal counts lane sweeps by trigger.
	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volund_sweep_runs_total",
		Help: "Total number of lane collision sweeps.",
	}, []string{"trigger"})

	// JobsDisplacedTotal counts jobs moved by the sweep to resolve overlaps.
	JobsDisplacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volund_jobs_displaced_total",
		Help: "Total number of jobs displaced during sweeps.",
	})

	// PlacementRejectionsTotal counts placements refused by lane restrictions.
	PlacementRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volund_placement_rejections_total",
		Help: "Total number of rejected job placements.",
	}, []string{"reason"})

	// ImportedJobsTotal counts jobs ingested through schedule imports.
	ImportedJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volund_imported_jobs_total",
		Help: "Total number of jobs ingested via schedule import.",
	})

	// QCLookupsTotal counts quality-control verdict lookups by outcome.
	QCLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volund_qc_lookups_total",
		Help: "Total number of QC verdict lookups.",
	}, []string{"outcome"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
