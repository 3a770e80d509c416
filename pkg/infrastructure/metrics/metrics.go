// Package metrics exposes Prometheus counters for import pipeline outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal counts import/reimport operations by terminal result.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stravapress_imports_total",
		Help: "Import operations by operation and result.",
	}, []string{"operation", "result"})

	// PhotoDownloadsTotal counts individual photo downloads.
	PhotoDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stravapress_photo_downloads_total",
		Help: "Photo download attempts by result.",
	}, []string{"result"})

	// TokenRefreshesTotal counts OAuth token refresh attempts.
	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stravapress_token_refreshes_total",
		Help: "OAuth token refresh attempts by result.",
	}, []string{"result"})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
