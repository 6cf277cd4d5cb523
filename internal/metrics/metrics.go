// Package metrics exposes the process counters on a dedicated registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "postkey"

var metricsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	metricsLogger = l
}

var Registry = prometheus.NewRegistry()

var (
	Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Conversation events handled, by kind.",
		},
		[]string{"kind"},
	)

	TemplatesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "templates_committed_total",
		Help:      "Templates committed.",
	})

	KeyCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "key_collisions_total",
		Help:      "Generated template keys that were already taken.",
	})

	ValidationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_errors_total",
		Help:      "User input rejected by validation.",
	})

	TemplatesPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "templates_purged_total",
		Help:      "Templates removed by the retention sweep.",
	})

	InlineLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inline_lookups_total",
			Help:      "Template lookups by key, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		Events,
		TemplatesCommitted,
		KeyCollisions,
		ValidationErrors,
		TemplatesPurged,
		InlineLookups,
		collectors.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	metricsLogger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
