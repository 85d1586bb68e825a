package httpserver

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/domain"
)

func (s *Server) registerDownloadRoutes() {
	s.echo.GET("/api/download/:session_id/:filename", s.handleDownload)
	s.echo.GET("/api/download-all/:session_id", s.handleDownloadAll)
}

func (s *Server) handleDownload(c echo.Context) error {
	ctx, cancel := s.backendContext(c)
	defer cancel()

	dl, err := s.app.Download(ctx, c.Param("session_id"), c.Param("filename"))
	if err != nil {
		return err
	}
	return streamDownload(c, dl)
}

func (s *Server) handleDownloadAll(c echo.Context) error {
	ctx, cancel := s.backendContext(c)
	defer cancel()

	dl, err := s.app.DownloadAll(ctx, c.Param("session_id"))
	if err != nil {
		return err
	}
	return streamDownload(c, dl)
}

func streamDownload(c echo.Context, dl *domain.Download) error {
	defer dl.Body.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	if dl.ContentLength > 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(dl.ContentLength, 10))
	}

	if err := c.Stream(http.StatusOK, dl.ContentType, dl.Body); err != nil {
		return fmt.Errorf("failed to stream download: %w", err)
	}
	return nil
}
