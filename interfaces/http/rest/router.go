// Package rest wires the HTTP surface: routing, middleware, and the
// WebSocket upgrade endpoint.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/services"
	"github.com/danilohgds/f-system/interfaces/http/rest/handlers"
	"github.com/danilohgds/f-system/interfaces/http/rest/middleware"
	"github.com/danilohgds/f-system/interfaces/websocket"
	"github.com/danilohgds/f-system/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	tree           *services.TreeService
	wsServer       *websocket.Server
	validator      *auth.Validator
	allowDevHeader bool
	logger         *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	tree *services.TreeService,
	wsServer *websocket.Server,
	validator *auth.Validator,
	allowDevHeader bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		tree:           tree,
		wsServer:       wsServer,
		validator:      validator,
		allowDevHeader: allowDevHeader,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.healthCheck)
	router.Handle("/metrics", promhttp.Handler())

	authenticate := middleware.Authenticate(rt.validator, rt.allowDevHeader, rt.logger)

	router.Route("/api/v1/fs", func(r chi.Router) {
		r.Use(authenticate)

		fsHandler := handlers.NewFilesystemHandler(rt.tree, rt.logger)
		r.Post("/root", fsHandler.InitializeRoot)
		r.Route("/folders/{folderID}", func(r chi.Router) {
			r.Get("/children", fsHandler.ListChildren)
			r.Post("/items", fsHandler.CreateItem)
			r.Post("/rename", fsHandler.RenameItem)
			r.Delete("/", fsHandler.DeleteSubtree)
		})
		r.Delete("/items/{itemID}", fsHandler.DeleteItem)
		r.Delete("/paths", fsHandler.DeleteByPathPrefix)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/ws", rt.wsServer.HandleWebSocket)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
