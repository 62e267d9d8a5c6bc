// Package echo provides the HTTP viewer API. Every front end reads the
// archive through these endpoints; the server itself never writes.
package echo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/subgrab"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Server serves the viewer API over HTTP.
type Server struct {
	echo   *echo.Echo
	viewer subgrab.Viewer
	logger *slog.Logger
	addr   string
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Defaults to DefaultAddr.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a Server over the given viewer.
func NewServer(viewer subgrab.Viewer, opts ...Option) *Server {
	s := &Server{
		viewer: viewer,
		logger: slog.Default(),
		addr:   DefaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/api/chunks/count", s.handleChunkCount)
	e.GET("/api/chunks/:id", s.handleChunk)
	e.GET("/api/posts/:id/comments", s.handlePostComments)
	e.GET("/images/:filename", s.handleImage)

	s.echo = e
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("viewer listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleChunk(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return s.errorResponse(c, subgrab.Errorf(subgrab.EINVALID, "chunk id must be a number"))
	}

	// An unparseable size falls back to the default instead of failing;
	// the viewer treats any non-positive size the same way.
	size, _ := strconv.Atoi(c.QueryParam("size"))

	chunk, err := s.viewer.Chunk(c.Request().Context(), n, size)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, chunk)
}

func (s *Server) handleChunkCount(c echo.Context) error {
	size, _ := strconv.Atoi(c.QueryParam("size"))

	total, err := s.viewer.TotalChunks(c.Request().Context(), size)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": total})
}

func (s *Server) handlePostComments(c echo.Context) error {
	trees, err := s.viewer.PostComments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]*subgrab.CommentNode{"comments": trees})
}

// handleImage serves an archived image with a content-based ETag so
// browsers cache the immutable files across viewer sessions.
func (s *Server) handleImage(c echo.Context) error {
	path, err := s.viewer.ImagePath(c.Param("filename"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s.errorResponse(c, subgrab.Errorf(subgrab.ENOTFOUND, "image not found"))
	}

	etag := fmt.Sprintf(`"%x"`, xxhash.Sum64(data))
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	c.Response().Header().Set("ETag", etag)
	return c.Blob(http.StatusOK, contentTypeFor(path), data)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// errorResponse maps domain error codes onto HTTP statuses.
func (s *Server) errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch subgrab.ErrorCode(err) {
	case subgrab.EINVALID:
		status = http.StatusBadRequest
	case subgrab.ENOTFOUND:
		status = http.StatusNotFound
	case subgrab.EUNAVAILABLE:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	return c.JSON(status, map[string]string{"error": subgrab.ErrorMessage(err)})
}
