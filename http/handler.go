package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/toitware/broker"
)

// Service executes one request body against a backend.
// *broker.Gateway implements it.
type Service interface {
	Handle(ctx context.Context, body []byte, backend broker.Backend) (broker.Command, broker.Outcome, error)
}

// CommandObserver is notified once per handled request.
type CommandObserver interface {
	ObserveCommand(cmd broker.Command, err error, duration time.Duration)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

// HealthPath is the readiness route served next to the command endpoint.
const HealthPath = "/healthz"

type HandlerConfig struct {
	// Path is the command endpoint. Defaults to "/".
	Path string
	// AnonKey is used as the bearer credential when a request has no
	// Authorization header.
	AnonKey string
	// MaxBodySize limits request bodies. Zero means no limit.
	MaxBodySize int64
	CORS        CORSConfig

	// Public, when set, is mounted under PublicPrefix and serves public
	// objects for backends that don't have their own public origin.
	Public       http.Handler
	PublicPrefix string

	// Health backs GET /healthz. Nil reports healthy.
	Health func(*http.Request) error

	Observer CommandObserver
	// Middleware runs inside the request logger and recoverer, for example
	// a metrics recorder.
	Middleware []func(http.Handler) http.Handler
}

// Handler serves the command endpoint.
type Handler struct {
	config    HandlerConfig
	service   Service
	connector broker.Connector
}

// NewHandler creates a new Handler. Every request gets its own backend from
// connector, built from the request's credential.
func NewHandler(config *HandlerConfig, service Service, connector broker.Connector) *Handler {
	return &Handler{
		config:    *config,
		service:   service,
		connector: connector,
	}
}

// Router returns an http.Handler with the command endpoint and, when
// configured, the public object routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(Recoverer)
	r.Use(h.config.Middleware...)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.Public != nil {
		prefix := "/" + strings.Trim(h.config.PublicPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, h.config.Public))
	}

	r.Get(HealthPath, h.handleHealth)

	path := h.config.Path
	if path == "" {
		path = "/"
	}

	r.Group(func(r chi.Router) {
		r.Use(MaxBodySize(h.config.MaxBodySize))
		r.Post(path, h.handleCommand)
	})

	r.NotFound(writeDefaultNotFound)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if h.config.Health != nil {
		if err := h.config.Health(r); err != nil {
			status = map[string]string{"status": "unavailable", "error": err.Error()}
			code = http.StatusServiceUnavailable
		}
	}
	_ = WriteJSON(w, code, status)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = ErrRequestTooLarge
		}
		HandleError(w, err)
		return
	}

	backend := h.connector.Connect(h.authorization(r))

	cmd, outcome, err := h.service.Handle(r.Context(), body, backend)
	if h.config.Observer != nil {
		h.config.Observer.ObserveCommand(cmd, err, time.Since(start))
	}
	if err != nil {
		slog.WarnContext(r.Context(), "command failed", "command", cmd, "error", err)
		HandleError(w, err)
		return
	}

	if err := WriteOutcome(w, outcome); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", "command", cmd, "error", err)
	}
}

func (h *Handler) authorization(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	slog.DebugContext(r.Context(), "no authorization header, using anon key")
	return "Bearer " + h.config.AnonKey
}
