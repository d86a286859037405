// Package webd is the HTTP/websocket daemon fronting the tracking engine:
// session control, fix ingest, workout queries, and a live state socket.
package webd

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"

	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/publish"
	"github.com/runstr/trackd/sensor"
	"github.com/runstr/trackd/state"
	"github.com/runstr/trackd/tracker"
	"github.com/runstr/trackd/types/fix"
)

const pushBufferLen = 256

type WebDaemon struct {
	Config *params.WebDaemonConfig

	logger         *slog.Logger
	melodyInstance *melody.Melody

	// ctx is the daemon's lifetime, not any single request's. Sessions
	// started over HTTP must outlive the request that started them.
	ctx context.Context

	store      *state.Store
	push       *sensor.Push
	tracker    *tracker.Tracker
	dedupe     func(fix.Fix) bool
	publishers []publish.Publisher
}

func NewWebDaemon(config *params.WebDaemonConfig, store *state.Store, hs health.Source) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	push := sensor.NewPush(pushBufferLen)
	d := &WebDaemon{
		Config:  config,
		logger:  slog.With("d", "web"),
		store:   store,
		push:    push,
		tracker: tracker.New(nil, push, hs),
		dedupe:  fix.NewDedupeLRUFunc(),
	}
	if params.AWS_BUCKETNAME != "" {
		d.publishers = append(d.publishers, publish.NewS3(params.AWS_BUCKETNAME))
	}
	return d
}

// Run starts the HTTP server (ListenAndServe) and waits for it,
// returning any server error.
func (s *WebDaemon) Run(ctx context.Context) error {
	router := s.NewRouter(ctx)
	listeningOn := s.Config.ListenAddr()
	s.logger.Info("Starting web daemon", "addr", listeningOn)
	server := &http.Server{Addr: listeningOn, Handler: router}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}

func (s *WebDaemon) NewRouter(ctx context.Context) *mux.Router {
	s.ctx = ctx
	s.initMelody(ctx)

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint.
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLastSnapshot).Methods(http.MethodGet)
	apiJSONRoutes.Path("/workouts").HandlerFunc(s.handleListWorkouts).Methods(http.MethodGet)
	apiJSONRoutes.Path("/workouts/{id}").HandlerFunc(s.handleGetWorkout).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/session/start").HandlerFunc(s.handleStart).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/session/pause").HandlerFunc(s.handlePause).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/session/resume").HandlerFunc(s.handleResume).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/session/stop").HandlerFunc(s.handleStop).Methods(http.MethodPost)

	authenticatedAPIRoutes.Path("/populate").HandlerFunc(s.handlePopulate).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/populate/").HandlerFunc(s.handlePopulate).Methods(http.MethodPost)

	return router
}
