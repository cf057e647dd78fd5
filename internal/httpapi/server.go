// Package httpapi is the thin HTTP demonstration adapter for the
// Operation API (§6.1). It is explicitly out of the core's scope (§1:
// "HTTP transport, authentication, role checks, request parsing") and
// holds no business logic of its own — every handler parses a request
// body, calls straight into internal/engine, and serializes the result.
// It exists only so the engine can be driven over the wire the way the
// teacher's internal/api package drives its services.
package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/pinggolf/inventory-engine/internal/config"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/engine"
	"github.com/rs/cors"
)

// Server mirrors the teacher's api.Server shape: router, session store,
// and the dependencies its handlers need — here a single *engine.Engine
// instead of the teacher's grab-bag of per-concern services.
type Server struct {
	config       *config.Config
	engine       *engine.Engine
	db           *sql.DB
	queries      *db.Queries
	router       *mux.Router
	sessionStore sessions.Store
}

// NewServer creates a new HTTP server instance around an already-built
// Engine.
func NewServer(cfg *config.Config, eng *engine.Engine, database *sql.DB, queries *db.Queries) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		config:       cfg,
		engine:       eng,
		db:           database,
		queries:      queries,
		router:       mux.NewRouter(),
		sessionStore: sessionStore,
	}

	s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler with CORS applied.
func (s *Server) Router() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.config.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Acting-User"},
		AllowCredentials: s.config.CORSAllowCredentials,
		MaxAge:           300,
	})
	return c.Handler(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	ops := api.PathPrefix("").Subrouter()
	ops.Use(s.actingUserMiddleware)

	ops.HandleFunc("/batches", s.handleProduceBatch).Methods("POST")
	ops.HandleFunc("/cut-roll", s.handleCutRoll).Methods("POST")
	ops.HandleFunc("/split-bundle", s.handleSplitBundle).Methods("POST")
	ops.HandleFunc("/combine-spares", s.handleCombineSpares).Methods("POST")
	ops.HandleFunc("/dispatches", s.handleCreateDispatch).Methods("POST")
	ops.HandleFunc("/returns", s.handleCreateReturn).Methods("POST")
	ops.HandleFunc("/scraps", s.handleCreateScrap).Methods("POST")
	ops.HandleFunc("/revert", s.handleRevertTransaction).Methods("POST")

	ops.HandleFunc("/stock", s.handleListAvailableStock).Methods("GET")
	ops.HandleFunc("/batches/{id}/history", s.handleGetBatchHistory).Methods("GET")
	ops.HandleFunc("/pieces/{id}/audit-trail", s.handleGetPieceAuditTrail).Methods("GET")
	ops.HandleFunc("/timeline", s.handleGetTransactionTimeline).Methods("GET")
	ops.HandleFunc("/stock/summary", s.handleGetStockSummary).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
