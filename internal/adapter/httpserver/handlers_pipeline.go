package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/app"
	"github.com/pscheid92/fontsubset/internal/charset"
	"github.com/pscheid92/fontsubset/internal/domain"
	apperrors "github.com/pscheid92/fontsubset/internal/platform/errors"
)

type resolveRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Preset    string `json:"preset"`
}

type resolveResponse struct {
	Characters string `json:"characters"`
	Count      int    `json:"count"`
}

type subsetRequest struct {
	SessionID      string `json:"session_id"`
	Characters     string `json:"characters"`
	Text           string `json:"text"`
	Preset         string `json:"preset"`
	FontNameSuffix string `json:"font_name_suffix"`
	CustomFontName string `json:"custom_font_name"`
}

type subsetResponse struct {
	Status string `json:"status"`
	*domain.SubsetRecord
}

type exportRequest struct {
	SessionID string   `json:"session_id"`
	Formats   []string `json:"formats"`
	FontName  string   `json:"font_name"`
}

type exportResponse struct {
	SessionID string                    `json:"session_id"`
	Files     []domain.ExportedArtifact `json:"files"`
}

func (s *Server) registerPipelineRoutes() {
	s.echo.GET("/api/fonts/:session_id", s.handleFonts)
	s.echo.GET("/api/presets", s.handlePresets)
	s.echo.POST("/api/resolve", s.handleResolve)
	s.echo.POST("/api/subset", s.handleSubset)
	s.echo.POST("/api/export", s.handleExport)
	s.echo.DELETE("/api/session/:session_id", s.handleDeleteSession)
}

func (s *Server) handleFonts(c echo.Context) error {
	sessionID := c.Param("session_id")
	fonts, err := s.app.Fonts(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	if fonts == nil {
		fonts = []domain.FontRecord{}
	}
	if err := c.JSON(http.StatusOK, map[string]any{"session_id": sessionID, "fonts": fonts}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePresets(c echo.Context) error {
	if err := c.JSON(http.StatusOK, map[string]any{"presets": charset.Presets()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleResolve(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.SessionID == "" {
		return apperrors.ValidationError("session_id is required")
	}

	sel, err := selectionFrom(req.Text, req.Preset)
	if err != nil {
		return err
	}

	chars, err := s.app.Resolve(c.Request().Context(), req.SessionID, sel)
	if err != nil {
		return err
	}

	resp := resolveResponse{Characters: chars, Count: utf8.RuneCountInString(chars)}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleSubset takes explicit characters, or resolves text or a preset
// against the session first.
func (s *Server) handleSubset(c echo.Context) error {
	var req subsetRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.SessionID == "" {
		return apperrors.ValidationError("session_id is required")
	}

	ctx, cancel := s.backendContext(c)
	defer cancel()

	chars := req.Characters
	if chars == "" && (req.Text != "" || req.Preset != "") {
		sel, err := selectionFrom(req.Text, req.Preset)
		if err != nil {
			return err
		}
		if chars, err = s.app.Resolve(ctx, req.SessionID, sel); err != nil {
			return err
		}
	}

	rec, err := s.app.Subset(ctx, app.SubsetParams{
		SessionID:      req.SessionID,
		Characters:     chars,
		NameSuffix:     req.FontNameSuffix,
		CustomFontName: req.CustomFontName,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, subsetResponse{Status: "success", SubsetRecord: rec}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleExport(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.SessionID == "" {
		return apperrors.ValidationError("session_id is required")
	}

	ctx, cancel := s.backendContext(c)
	defer cancel()

	files, err := s.app.Export(ctx, app.ExportParams{
		SessionID: req.SessionID,
		Formats:   req.Formats,
		FontName:  req.FontName,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, exportResponse{SessionID: req.SessionID, Files: files}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	ctx, cancel := s.backendContext(c)
	defer cancel()

	if err := s.app.Reap(ctx, c.Param("session_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func selectionFrom(text, preset string) (charset.Selection, error) {
	if strings.TrimSpace(preset) == "" {
		return charset.Selection{Text: text}, nil
	}
	p, err := charset.ParsePreset(preset)
	if err != nil {
		return charset.Selection{}, err
	}
	return charset.Selection{Preset: p}, nil
}
