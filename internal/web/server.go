// Package web serves the browser form over the export pipeline.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

//go:embed templates/form.html
var templateFS embed.FS

// Runner is the pipeline the form submits to.
type Runner interface {
	Run(ctx context.Context, rawURL string) (*pipeline.Outcome, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	runner     Runner
	logger     *slog.Logger
	form       *template.Template
	router     http.Handler
	httpServer *http.Server
}

func NewServer(runner Runner, logger *slog.Logger) (*Server, error) {
	form, err := template.ParseFS(templateFS, "templates/form.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse form template: %w", err)
	}
	s := &Server{runner: runner, logger: logger, form: form}
	s.router = s.setupRouter()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// exports include a page fetch and image downloads
		WriteTimeout: 5 * time.Minute,
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func ServeAction(c *cli.Context) error {
	cfg, logger, err := common.LoadRuntime(c)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}

	runner, err := pipeline.NewRunner(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(2)
	}

	server, err := NewServer(runner, logger)
	if err != nil {
		logger.Error("failed to initialize web form", "error", err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", c.String("addr"))
	if err != nil {
		logger.Error("failed to listen", "addr", c.String("addr"), "error", err)
		os.Exit(2)
	}
	formURL := "http://" + ln.Addr().String() + "/"
	fmt.Fprintf(os.Stderr, "Export form running at %s (Ctrl+C to stop)\n", formURL)

	if !c.Bool("no-browser") {
		if err := common.OpenPath(formURL); err != nil {
			logger.Warn("failed to open browser", "url", formURL, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web form stopped", "error", err)
			os.Exit(2)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down web form", "error", err)
		}
	}
	return nil
}
