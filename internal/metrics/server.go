package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Providers supply the JSON bodies for the status endpoints. A nil
// provider leaves its endpoint returning 404.
type Providers struct {
	Status    func() any
	Positions func() any
	Stats     func() any
	Farm      func() any
}

// Server exposes /metrics, /healthz and the read-only status API
type Server struct {
	port   int
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger
}

// NewServer builds the router. Run starts it.
func NewServer(port int, p Providers, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	registerProvider(v1, "/status", p.Status)
	registerProvider(v1, "/positions", p.Positions)
	registerProvider(v1, "/stats", p.Stats)
	registerProvider(v1, "/farm/status", p.Farm)

	return &Server{
		port:   port,
		router: router,
		logger: logger.With().Str("component", "status_server").Logger(),
	}
}

func registerProvider(g *gin.RouterGroup, path string, provider func() any) {
	if provider == nil {
		return
	}
	g.GET(path, func(c *gin.Context) {
		c.JSON(http.StatusOK, provider())
	})
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info().Int("port", s.port).Msg("Status server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("Status server stopped")
	return nil
}
