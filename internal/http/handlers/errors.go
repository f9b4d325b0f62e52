package handlers

import (
	"educrm/pkg/apperrors"

	"github.com/labstack/echo/v4"
)

// jsonError maps a service error onto the HTTP response using the error's
// own status code
func jsonError(c echo.Context, err error) error {
	return c.JSON(apperrors.Code(err), map[string]string{"error": apperrors.Message(err)})
}
