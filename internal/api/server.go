// Package api is the HTTP host of the decision pipeline. It owns routing, the per-request
// configuration lookup and the mapping of pipeline failures to error responses.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/config"
	"github.com/TimurManjosov/flagedge/internal/datafile"
	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/logging"
	"github.com/TimurManjosov/flagedge/internal/telemetry"
)

// Decider runs the pipeline for one request.
type Decider interface {
	Decide(ctx context.Context, rc config.RequestConfig) (decider.Result, error)
}

// RequestConfigSource yields the configuration of the current request.
// *config.Config implements it.
type RequestConfigSource interface {
	Request() config.RequestConfig
}

// Options tune the router.
type Options struct {
	RequestTimeout time.Duration // 0 disables the route timeout
	RateLimitPerIP int           // requests per minute per client IP, 0 disables
}

type Server struct {
	decider  Decider
	requests RequestConfigSource
	log      zerolog.Logger
	opts     Options
}

func NewServer(d Decider, requests RequestConfigSource, log zerolog.Logger, opts Options) *Server {
	return &Server{decider: d, requests: requests, log: log, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Middleware(s.log), telemetry.Middleware, middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NotFoundError(w, req, "no route for "+req.URL.Path)
	})

	r.Group(func(r chi.Router) {
		if s.opts.RateLimitPerIP > 0 {
			r.Use(httprate.Limit(
				s.opts.RateLimitPerIP,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
					RateLimitedError(w, req, "rate limit exceeded")
				}),
			))
		}
		r.HandleFunc("/", s.handleDecide)
	})

	return r
}

// handleDecide answers with the plain-text decision message.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	res, err := s.decider.Decide(r.Context(), s.requests.Request())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("decision request failed")
		if r.Context().Err() != nil {
			// the timeout middleware answers 504; a gone client gets nothing
			return
		}
		switch {
		case errors.Is(err, datafile.ErrFetch):
			InternalError(w, r, ErrCodeDatafileUnavailable, "datafile could not be fetched")
		case errors.Is(err, decision.ErrEngine):
			InternalError(w, r, ErrCodeInvalidDatafile, "datafile could not be loaded")
		default:
			InternalError(w, r, ErrCodeInternal, "request failed")
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Message))
}
