// Package metrics provides Prometheus counters for the practice controller.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AutoLoopsTotal counts End-mark hits that paused and rewound playback.
	AutoLoopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadowplay_auto_loops_total",
		Help: "Total number of automatic pause-and-rewind cycles.",
	})

	// LoopCancellationsTotal counts auto-resume cycles cancelled by the user.
	LoopCancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadowplay_loop_cancellations_total",
		Help: "Total number of auto-resume cycles cancelled, by trigger.",
	}, []string{"trigger"})

	// StaleResumesTotal counts resume callbacks that fired with an invalidated token.
	StaleResumesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadowplay_stale_resumes_total",
		Help: "Total number of resume callbacks ignored because their token was stale.",
	})

	MarkTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadowplay_mark_toggles_total",
		Help: "Total number of mark toggles, by kind and result (added/removed).",
	}, []string{"kind", "result"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadowplay_commands_total",
		Help: "Total number of dispatched keyboard commands, by action.",
	}, []string{"action"})

	PassModeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadowplay_pass_mode_transitions_total",
		Help: "Total number of pass-mode state changes, by new state.",
	}, []string{"state"})
)

// Router exposes /metrics and a liveness probe.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// Serve blocks serving Router on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
