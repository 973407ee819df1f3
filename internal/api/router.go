package api

import (
	"net/http"

	"github.com/offerboard/backend/internal/auth"
	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/health"
	"github.com/offerboard/backend/internal/logger"
	"github.com/offerboard/backend/internal/metrics"
	"github.com/offerboard/backend/internal/middleware"
	"github.com/offerboard/backend/internal/offer"
	"github.com/offerboard/backend/internal/user"
)

type Config struct {
	Users   *user.Handlers
	Offers  *offer.Handlers
	Tokens  *auth.Tokens
	Health  *health.Handler
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	cfg     Config
}

func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	r := &Router{
		mux: http.NewServeMux(),
		cfg: cfg,
	}
	r.setupRoutes()

	httpLog := cfg.Logger.WithComponent("http")
	r.handler = middleware.Chain(r.mux,
		middleware.RequestID,
		middleware.Logging(httpLog),
		metrics.Middleware(cfg.Metrics),
		middleware.SecurityHeaders,
		middleware.CORS,
		// innermost: Logging and metrics must see the 500 it writes
		middleware.Recoverer(httpLog),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	if r.cfg.Health != nil {
		r.mux.HandleFunc("GET /health", r.cfg.Health.HealthHandler)
	}
	r.mux.HandleFunc("GET /metrics", r.cfg.Metrics.Handler())

	u := r.cfg.Users
	r.mux.HandleFunc("GET /user", apperrors.HandleFunc(u.List))
	r.mux.HandleFunc("POST /user/signup", apperrors.HandleFunc(u.Signup))
	r.mux.HandleFunc("POST /user/login/{id}", apperrors.HandleFunc(u.Login))
	r.mux.HandleFunc("PUT /user/{id}", r.withAuth(auth.Access, u.Update))
	r.mux.HandleFunc("DELETE /user/{id}", r.withAuth(auth.Access, u.Delete))
	r.mux.HandleFunc("GET /user/refreshToken/{id}", r.withAuth(auth.Refresh, u.Refresh))

	o := r.cfg.Offers
	r.mux.HandleFunc("GET /offer", r.withAuth(auth.Access, o.List))
	r.mux.HandleFunc("POST /offer", r.withAuth(auth.Access, o.Create))
	r.mux.HandleFunc("GET /offer/{id}", r.withAuth(auth.Access, o.Get))
	r.mux.HandleFunc("PUT /offer/{id}", r.withAuth(auth.Access, o.Replace))
	r.mux.HandleFunc("DELETE /offer/{id}", r.withAuth(auth.Access, o.Delete))

	r.mux.HandleFunc("/", apperrors.HandleFunc(routeNotFound))
}

func (r *Router) withAuth(kind auth.Kind, h apperrors.Handler) http.HandlerFunc {
	return auth.Middleware(r.cfg.Tokens, kind)(apperrors.HandleFunc(h)).ServeHTTP
}

func routeNotFound(w http.ResponseWriter, r *http.Request) error {
	return apperrors.RouteNotFound(r.URL.RequestURI())
}
