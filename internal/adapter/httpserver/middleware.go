package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/pscheid92/fontsubset/internal/platform/correlation"
	apperrors "github.com/pscheid92/fontsubset/internal/platform/errors"
)

// correlationMiddleware adopts the caller's correlation ID or mints one and
// echoes it in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders every error a handler returns as a
// structured JSON response. m may be nil.
func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := toStructured(err)
			logError(c, structuredErr)
			if m != nil {
				m.ErrorsTotal.WithLabelValues(string(structuredErr.Type)).Inc()
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toStructured maps pipeline errors onto their HTTP kind. The message is the
// error text itself so the backend's reason reaches the caller unchanged.
func toStructured(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	var backendErr *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrNoSubsetYet):
		return apperrors.ConflictError(err.Error())
	case errors.Is(err, domain.ErrValidation):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.NotFoundError(err.Error())
	case errors.As(err, &backendErr):
		e := apperrors.BackendError(backendErr.Reason, err).WithField("operation", backendErr.Op)
		if backendErr.StatusCode != 0 {
			e = e.WithField("backend_status", backendErr.StatusCode)
		}
		return e
	default:
		return apperrors.InternalError("internal server error", err)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if sessionID := c.Param("session_id"); sessionID != "" {
		attrs = append(attrs, "session_id", sessionID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeRateLimited:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict, apperrors.TypePartialBatch:
		slog.WarnContext(ctx, "Request partially failed or out of order", attrs...)
	case apperrors.TypeBackend:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Font backend error", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// httpErrorHandler renders errors that bypass ErrorHandlingMiddleware, such as
// unknown routes, oversized bodies or panics, in the same JSON shape.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var structuredErr *apperrors.Error
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		structuredErr = WrapHTTPError(httpErr)
	} else {
		structuredErr = toStructured(err)
	}
	logError(c, structuredErr)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(structuredErr.HTTPStatus())
		return
	}
	_ = c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse())
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := "internal server error"
	if httpErr.Message != nil {
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		errType = apperrors.TypeValidation
	case http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusTooManyRequests:
		errType = apperrors.TypeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = apperrors.TypeBackend
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
