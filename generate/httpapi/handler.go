// Package httpapi exposes a generate.Service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/rules"
)

const maxBodyBytes = 64 << 10

// Generator is the subset of *generate.Service the handler needs.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (draft.RawSurvey, error)
}

// Config defines handler dependencies.
type Config struct {
	Generator      Generator
	AllowedOrigins []string
	// Middleware runs after the built-in request id, real ip and recoverer.
	Middleware []func(http.Handler) http.Handler
}

// Handler serves the generation and health endpoints.
type Handler struct {
	generator Generator
	validate  *validator.Validate
	document  map[string]any
}

func NewHandler(generator Generator) *Handler {
	return &Handler{
		generator: generator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		document:  Document(),
	}
}

// NewRouter builds the full chi router.
func NewRouter(cfg Config) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			router.Use(mw)
		}
	}
	router.Use(withCORS(origins))

	NewHandler(cfg.Generator).Register(router)
	return router
}

// Register mounts the routes onto r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.healthHandler())
	r.Get("/openapi.json", h.openAPIHandler())
	r.Post(generate.GeneratePath, h.generateHandler())
}

func (h *Handler) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{OK: true})
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string          `json:"error"`
	Failures []rules.Failure `json:"failures,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

func (h *Handler) generateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generate.Request
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
		req.Description = strings.TrimSpace(req.Description)
		if err := h.validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationMessage(err)})
			return
		}

		survey, err := h.generator.Generate(r.Context(), req)
		if err != nil {
			status, body := errorResponse(err)
			writeJSON(w, status, body)
			return
		}
		survey.Prompt = ""
		writeJSON(w, http.StatusOK, survey)
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var violation *generate.RuleViolation
	switch {
	case errors.Is(err, generate.ErrEmptyDescription):
		return http.StatusBadRequest, ErrorResponse{Error: "description is required"}
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "generated survey rejected", Failures: violation.Failures}
	case errors.Is(err, generate.ErrProvider):
		return http.StatusBadGateway, ErrorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "generation timed out"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return "invalid request"
	}
	field := fields[0]
	switch field.Tag() {
	case "required":
		return "description is required"
	case "max":
		return "description is too long"
	default:
		return "invalid " + strings.ToLower(field.Field())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			allowAll = true
		default:
			allowed[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				if _, ok := allowed[origin]; ok || allowAll {
					if allowAll {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					} else {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.Header().Set("Access-Control-Max-Age", "300")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
