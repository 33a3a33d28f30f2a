package http

import (
	"context"
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Server is the optional HTTP ingress of spec §6: command submission and
// event queries over the same repository/pipeline a gRPC business
// client would use, fronted by fiber the way every teacher component
// fronts its use cases (components/ledger/internal/bootstrap/server.go).
//
// It depends directly on *repository.Repository and *pipeline.Pipeline
// rather than *bootstrap.Service, so internal/bootstrap can construct
// and own it without an import cycle.
type Server struct {
	app    *fiber.App
	logger mlog.Logger
}

// NewServer builds a Server and registers its routes.
func NewServer(repo *repository.Repository, p *pipeline.Pipeline, logger mlog.Logger) *Server {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	h := NewHandler(repo, p)

	app.Get("/health", Health)

	v1 := app.Group("/v1/domains/:domain/aggregates/:root")
	v1.Post("/commands", h.Dispatch)
	v1.Get("/", h.Get)

	return &Server{app: app, logger: logger}
}

// Listen starts serving on addr. Blocks until the listener stops.
func (s *Server) Listen(addr string) error {
	s.logger.Infof("http: listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}

	return nil
}
