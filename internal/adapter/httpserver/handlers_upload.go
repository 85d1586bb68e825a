package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/fontsubset/internal/domain"
	apperrors "github.com/pscheid92/fontsubset/internal/platform/errors"
)

const (
	formFieldFile      = "file"
	formFieldSessionID = "session_id"
)

type batchUploadResponse struct {
	SessionID string                   `json:"session_id"`
	Fonts     []domain.FontRecord      `json:"fonts"`
	Uploaded  int                      `json:"uploaded"`
	Error     *apperrors.ErrorResponse `json:"error,omitempty"`
}

func (s *Server) registerUploadRoutes() {
	s.echo.POST("/api/upload", s.handleUpload,
		middleware.BodyLimit(s.config.MaxUploadSize),
		newRateLimiter(s.config.UploadRateLimit, s.config.UploadRateBurst),
	)
}

// handleUpload accepts one or more "file" parts. A single file answers with
// its FontRecord; several files answer with the whole batch.
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.ValidationError("expected a multipart form with at least one font file")
	}

	headers := form.File[formFieldFile]
	if len(headers) == 0 {
		return apperrors.ValidationError("no font file provided").WithField("field", formFieldFile)
	}

	var sessionID string
	if v := form.Value[formFieldSessionID]; len(v) > 0 {
		sessionID = strings.TrimSpace(v[0])
	}

	files := make([]domain.FontFile, 0, len(headers))
	for _, h := range headers {
		f, err := readFormFile(h)
		if err != nil {
			return apperrors.ValidationError("failed to read uploaded file").WithField("filename", h.Filename)
		}
		files = append(files, f)
	}

	if len(files) == 1 {
		ctx, cancel := s.backendContext(c)
		defer cancel()

		rec, err := s.app.Upload(ctx, sessionID, files[0])
		if err != nil {
			return err
		}
		if err := c.JSON(http.StatusOK, rec); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	records, err := s.app.UploadBatch(c.Request().Context(), sessionID, files, s.perBackendCall)
	var partial *domain.PartialBatchError
	switch {
	case errors.As(err, &partial):
		cause := toStructured(partial.Err)
		resp := apperrors.ErrorResponse{
			Error:   partial.Error(),
			Type:    apperrors.TypePartialBatch,
			Context: map[string]any{"failed_file": partial.Filename, "cause_type": cause.Type},
		}
		logError(c, &apperrors.Error{Type: apperrors.TypePartialBatch, Message: partial.Error(), Cause: partial.Err})
		return s.sendBatch(c, http.StatusMultiStatus, records, &resp)
	case err != nil:
		return err
	}
	return s.sendBatch(c, http.StatusOK, records, nil)
}

func (s *Server) sendBatch(c echo.Context, status int, records []domain.FontRecord, failure *apperrors.ErrorResponse) error {
	resp := batchUploadResponse{
		Fonts:    records,
		Uploaded: len(records),
		Error:    failure,
	}
	if len(records) > 0 {
		resp.SessionID = records[0].SessionID
	}
	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func readFormFile(h *multipart.FileHeader) (domain.FontFile, error) {
	src, err := h.Open()
	if err != nil {
		return domain.FontFile{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return domain.FontFile{}, err
	}
	return domain.FontFile{Filename: h.Filename, Data: data}, nil
}
