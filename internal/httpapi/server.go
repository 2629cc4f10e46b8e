package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overlayd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Plugins() types.PluginsResponse
	Resolve(role types.PluginRole, id string) (string, bool)
	Applications() []string
	Options() types.OptionsResponse
	SubmitResult(req types.ResultRequest) (types.DispatchResponse, error)
	Spin() (types.DispatchResponse, error)
	Queues() types.QueuesResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/plugins", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Plugins())
	})

	r.Get("/plugins/{role}/{id}", func(w http.ResponseWriter, r *http.Request) {
		role, ok := types.ParseRole(strings.ToLower(chi.URLParam(r, "role")))
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "role must be one of view, controller, application")
			return
		}
		id := chi.URLParam(r, "id")
		path, ok := svc.Resolve(role, id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, string(role)+" not found: "+id)
			return
		}
		writeJSON(w, types.ResolveResponse{Role: role, ID: strings.ToLower(strings.TrimSpace(id)), Path: path})
	})

	r.Get("/applications", func(w http.ResponseWriter, r *http.Request) {
		apps := svc.Applications()
		if apps == nil {
			apps = []string{}
		}
		writeJSON(w, types.ApplicationsResponse{Applications: apps})
	})

	r.Get("/options", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Options())
	})

	r.Post("/results", func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			IncrementRejected("invalid_body")
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Name) == "" && (strings.TrimSpace(req.Application) == "" || strings.TrimSpace(req.Controller) == "") {
			IncrementRejected("invalid_body")
			writeJSONError(w, http.StatusBadRequest, "name or application and controller are required")
			return
		}
		resp, err := svc.SubmitResult(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Post("/spin", func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.Spin()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Get("/queues", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Queues())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, reason := statusFor(err)
	IncrementRejected(reason)
	writeJSONError(w, status, err.Error())
}
