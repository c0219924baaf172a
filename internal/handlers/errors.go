package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// httpError maps a service error onto the HTTP status and message the client sees.
func httpError(c echo.Context, err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, services.ErrUnauthenticated),
		services.IsTokenError(err),
		errors.Is(err, services.ErrBadCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied")
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrDuplicateSlug),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slog.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

// optionalImage reads the named multipart file if the client sent one.
func optionalImage(c echo.Context, field string, limit int64) (*storage.Upload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}
	return storage.ReadImage(header, limit)
}
