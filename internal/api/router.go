package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/lookup"
	"crosslink/internal/metrics"
	"crosslink/internal/services"
	"crosslink/internal/syncer"
)

// Syncer runs a scheduled sync.
type Syncer interface {
	RunScheduledSync(ctx context.Context, budget time.Duration) (*syncer.SyncReport, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Store   *linkstore.Store
	Syncer  Syncer
	Lookup  *lookup.Service
	Metrics *metrics.Metrics
	Token   string
	Logger  *slog.Logger
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler builds the chi router.
func NewHandler(deps Deps) http.Handler {
	h := &handlers{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "api")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestContext)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(deps.Token))
		r.Post("/cron/sync", h.handleSync)
		r.Get("/sync/runs", h.handleSyncRuns)
		r.Get("/links/{key}", h.handleLink)
		r.Get("/links/{key}/seasons/{season}", h.handleLink)
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	return r
}

// requestContext copies the chi request id into the services context so
// loggers pick it up.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates bearer tokens. An empty token disables the check.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
