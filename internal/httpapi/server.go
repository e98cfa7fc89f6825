package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	GenerateImage(ctx context.Context, req types.ImageRequest) (types.GenerateResponse, error)
	Agent(ctx context.Context, req types.AgentRequest) (types.AgentResponse, error)
	ClearHistory()
	Providers() types.ProvidersResponse
	Status() types.StatusResponse
	Ready() bool
	Evict(keepCritical bool) error
	Warm(name string) (string, error)
	ReleaseSlot(name string) error
	Operation(id string) (types.OperationStatus, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   corsAllowedMethods,
			AllowedHeaders:   corsAllowedHeaders,
			AllowCredentials: corsAllowCredentials,
			MaxAge:           corsMaxAge,
		}))
	}

	h := handlers{svc: svc}
	r.Post("/generate", h.generate)
	r.Post("/generate/image", h.generateImage)
	r.Post("/agent", h.agent)
	r.Delete("/history", h.clearHistory)
	r.Get("/providers", h.providers)
	r.Get("/status", h.status)

	r.Route("/scheduler", func(r chi.Router) {
		r.Post("/evict", h.evict)
		r.Post("/slots/{name}/warm", h.warm)
		r.Post("/slots/{name}/release", h.release)
		r.Get("/ops/{id}", h.operation)
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
		_, _ = w.Write([]byte("degraded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}
