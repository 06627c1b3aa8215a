// Package status serves the progress of a running dump over http.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/dumper"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:generate moq -rm -out reporter_mock.go . ProgressReporter

type ProgressReporter interface {
	Progress() dumper.Summary
}

func RegisterHandlers(ctx context.Context, r chi.Router, app ProgressReporter, gatherer prometheus.Gatherer) {
	log := logging.GetFromContext(ctx)

	r.Get("/health", NewHealthHandler(app))
	r.Get("/progress", NewProgressHandler(log, app))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// NewHealthHandler reports the service as unavailable once the dump has been aborted.
func NewHealthHandler(app ProgressReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "text/plain")

		if app.Progress().State == dumper.Aborted {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("aborted"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func NewProgressHandler(log *slog.Logger, app ProgressReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(app.Progress())
		if err != nil {
			log.Error("failed to marshal progress", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}
