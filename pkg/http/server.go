package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StockTracker/pkg/http/middleware"
	applogger "StockTracker/pkg/logger"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ErrorPageFunc renders an HTML error page. It is used for every non-API
// request that ends in an error.
type ErrorPageFunc func(c echo.Context, status int, message string) error

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowRequest     time.Duration
	Renderer        echo.Renderer
	ErrorPage       ErrorPageFunc
	HealthCheck     func(ctx context.Context) error
	HTTPMetrics     *middleware.HTTPMetrics
	MetricsPath     string
	Gatherer        prometheus.Gatherer
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	l      *applogger.Logger
}

// NewServer creates a new HTTP server with Echo.
func NewServer(l *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Renderer = cfg.Renderer

	s := &Server{echo: e, config: cfg, l: l}
	e.HTTPErrorHandler = s.handleError

	// Middleware: metrics outermost so it sees the final status
	if cfg.HTTPMetrics != nil {
		e.Use(cfg.HTTPMetrics.Middleware(l, cfg.SlowRequest))
	}
	e.Use(middleware.RequestLogging(l))
	e.Use(middleware.Recover(l))

	for _, h := range handlers {
		h.RegisterRoutes(e)
	}

	if cfg.HealthCheck != nil {
		e.GET("/healthz", s.health)
	}

	if cfg.MetricsPath != "" {
		g := cfg.Gatherer
		if g == nil {
			g = prometheus.DefaultGatherer
		}
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}

	return s
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.config.HealthCheck(ctx); err != nil {
		s.l.Warn("health check failed", applogger.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, appErr := classify(err)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}

	if s.config.ErrorPage != nil && !wantsJSON(c) {
		perr := s.config.ErrorPage(c, status, appErr.Message)
		if perr == nil {
			return
		}
		s.l.Error("render error page failed", applogger.Error(perr))
	}

	if werr := DataResponse(c, status, []*AppError{appErr}); werr != nil {
		s.l.Error("write error response failed", applogger.Error(werr))
	}
}

// classify maps any handler error onto a status and a client-safe AppError.
func classify(err error) (int, *AppError) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= 500 {
			return appErr.Status, InternalError("Something went wrong")
		}
		return appErr.Status, appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && he.Code < 500 {
			msg = m
		}
		return he.Code, NewAppError(errorCode(he.Code), "", msg, he.Code)
	}

	return http.StatusInternalServerError, InternalError("Something went wrong")
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "ERR_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "ERR_METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "ERR_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "ERR_RATE_LIMITED"
	}
	if status >= 500 {
		return "ERR_INTERNAL"
	}
	return "ERR_BAD_REQUEST"
}

func wantsJSON(c echo.Context) bool {
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}

// Start starts the HTTP server in the background. Listen errors are sent on the returned channel.
func (s *Server) Start() <-chan error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errs := make(chan error, 1)

	go func() {
		s.l.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	return errs
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.l.Info("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithTimeouts sets read/write timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithRenderer sets the HTML renderer and the page used for HTML errors.
func WithRenderer(r echo.Renderer, errorPage ErrorPageFunc) ServerOption {
	return func(c *ServerConfig) {
		c.Renderer = r
		c.ErrorPage = errorPage
	}
}

// WithHealthCheck exposes GET /healthz backed by check.
func WithHealthCheck(check func(ctx context.Context) error) ServerOption {
	return func(c *ServerConfig) {
		c.HealthCheck = check
	}
}

// WithMetrics records request metrics and serves g at path. An empty path
// keeps the request metrics but does not expose the endpoint.
func WithMetrics(m *middleware.HTTPMetrics, g prometheus.Gatherer, path string, slow time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.HTTPMetrics = m
		c.Gatherer = g
		c.MetricsPath = path
		c.SlowRequest = slow
	}
}
