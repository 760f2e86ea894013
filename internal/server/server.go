package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/quote-compare/internal/auth"
	"github.com/joseph-ayodele/quote-compare/internal/export"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
	"github.com/joseph-ayodele/quote-compare/internal/session"
)

// Deps is everything the HTTP layer is wired with.
type Deps struct {
	Auth      *auth.Authenticator
	Sessions  *session.Store
	Resolver  *fieldschema.Resolver
	Processor *pipeline.Processor
	Export    *export.Service

	// Optional.
	Jobs              repository.ExtractJobRepository
	DB                *repository.DB
	RendererAvailable func() bool

	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server serves the quote comparison API.
type Server struct {
	Deps
	engine *gin.Engine
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	s := &Server{Deps: d}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.MaxUploadBytes
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.Logger))

	r.GET("/health", s.health)
	r.POST("/login", s.login)

	authed := r.Group("/", RequireAuth(s.Auth, s.Sessions, s.Logger))
	authed.POST("/logout", s.logout)

	api := authed.Group("/api/v1")
	{
		api.GET("/fields", s.getFields)
		api.POST("/schema", s.uploadSchema)
		api.DELETE("/schema", s.resetSchema)
		api.POST("/extract", s.extract)
		api.GET("/table", s.getTable)
		api.GET("/export", s.exportXLSX)
		api.GET("/jobs", s.listJobs)
	}
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http.serve", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	out := gin.H{"status": "ok"}
	code := http.StatusOK
	if s.DB != nil {
		if err := repository.HealthCheck(c.Request.Context(), s.DB, 2*time.Second, s.Logger); err != nil {
			out["status"] = "degraded"
			out["db"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			out["db"] = "ok"
		}
	}
	if s.RendererAvailable != nil {
		out["renderer"] = s.RendererAvailable()
	}
	c.JSON(code, out)
}
