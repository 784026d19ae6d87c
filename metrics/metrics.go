// Package metrics exposes Prometheus metrics for the gateway: HTTP requests
// by route and status, and commands by name and outcome.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toitware/broker"
)

const namespace = "broker"

// Outcome labels for failed commands, by error kind.
var outcomes = []struct {
	kind  error
	label string
}{
	{broker.ErrMalformedEnvelope, "malformed_envelope"},
	{broker.ErrMalformedUpload, "malformed_upload"},
	{broker.ErrMalformedJSON, "malformed_json"},
	{broker.ErrInvalidPath, "invalid_path"},
	{broker.ErrUnsupportedRange, "unsupported_range"},
	{broker.ErrUnknownCommand, "unknown_command"},
	{broker.ErrBackend, "backend_error"},
}

// Recorder collects gateway metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpRequestDurations *prometheus.HistogramVec
	commands             *prometheus.CounterVec
	commandDurations     *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		httpRequestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"path", "method"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled commands by name and outcome.",
		}, []string{"command", "outcome"}),
		commandDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command latency including backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpRequestDurations,
		r.commands,
		r.commandDurations,
	)

	return r
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveCommand records one handled command.
func (r *Recorder) ObserveCommand(cmd broker.Command, err error, duration time.Duration) {
	name := commandLabel(cmd)
	r.commands.WithLabelValues(name, outcomeLabel(err)).Inc()
	r.commandDurations.WithLabelValues(name).Observe(duration.Seconds())
}

// Middleware records request counts and latency per chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		r.httpRequestDurations.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
	})
}

func commandLabel(cmd broker.Command) string {
	if !cmd.IsValid() {
		return "invalid"
	}
	return cmd.String()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.kind) {
			return o.label
		}
	}
	return "internal_error"
}

// Server serves /metrics and /healthz on a separate listener.
type Server struct {
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a metrics server listening on addr. health reports
// readiness; nil means always healthy.
func NewServer(addr string, recorder *Recorder, health func(*http.Request) error) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		log:    slog.With("component", "metrics"),
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background.
func (s *Server) Start() {
	s.log.Info("starting metrics server", "addr", s.server.Addr)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", "error", err)
		}
	}()
}

// Stop closes the listener.
func (s *Server) Stop() {
	s.log.Info("stopping metrics server")
	if err := s.server.Close(); err != nil {
		s.log.Error("failed to close metrics server", "error", err)
	}
}
