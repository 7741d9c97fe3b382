package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/feedcore/internal/conn"
	"horse.fit/feedcore/internal/store"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is a JSend response. fail carries client errors, error carries server errors.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: statusSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Status: statusFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return errorWithStatus(c, http.StatusInternalServerError, message)
}

func errorWithStatus(c echo.Context, code int, message string) error {
	return c.JSON(code, envelope{Status: statusError, Message: message, Code: code})
}

// storeError answers a failed store or feed read. An unreachable backend is a 503 so
// callers can retry; anything else is a 500.
func storeError(c echo.Context, err error, message string) error {
	if errors.Is(err, store.ErrReadFailed) || errors.Is(err, conn.ErrConnectionFailure) {
		return errorWithStatus(c, http.StatusServiceUnavailable, message)
	}
	return internalError(c, message)
}
