package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/api/handlers"
	appMiddleware "github.com/regulatech/oraclo/internal/api/middlewares"
	"github.com/regulatech/oraclo/internal/chat"
	"github.com/regulatech/oraclo/internal/classify"
	"github.com/regulatech/oraclo/internal/config"
	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/ingest"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	validator *ingest.Validator,
	organizer *ingest.Organizer,
	pipeline *ingest.Pipeline,
	classifier *classify.Classifier,
	embedder core.EmbeddingProvider,
	llm core.LLMProvider,
	chunker *ingest.Chunker,
	chatCfg chat.Config,
	archive core.ObjectClient,
	log *zap.Logger,
) *Server {
	authHandler := handlers.NewAuthHandler(db)
	docHandler := handlers.NewDocumentHandler(db, db, validator, organizer, pipeline, classifier, archive, log)
	categoryHandler := handlers.NewCategoryHandler(db)
	regulationHandler := handlers.NewRegulationHandler(db, db)
	chatHandler := handlers.NewChatHandler(db, embedder, llm, chunker, chatCfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Post("/documents/upload", docHandler.Upload)
			protected.Get("/documents", docHandler.List)
			protected.Get("/documents/{id}", docHandler.Get)
			protected.Delete("/documents/{id}", docHandler.Delete)
			protected.Post("/documents/{id}/classify", docHandler.Classify)
			protected.Get("/documents/{id}/regulations", docHandler.Regulations)

			protected.Post("/categories", categoryHandler.Create)
			protected.Get("/categories", categoryHandler.List)
			protected.Delete("/categories/{id}", categoryHandler.Delete)

			protected.Get("/regulations", regulationHandler.List)
			protected.Post("/regulations", regulationHandler.Create)

			protected.Post("/chat/query", chatHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
