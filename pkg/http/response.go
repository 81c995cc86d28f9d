package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the API envelope. The HTTP status matches the envelope status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// ListResponse writes rows with their total count.
func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return SuccessResponse(c, &ListDataResponse{Rows: rows, Total: total})
}

// ErrorResponse writes err in the envelope: *RequestError as 400 with its fields,
// *AppError with its own status, anything else as an opaque 500.
func ErrorResponse(c echo.Context, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return DataResponse(c, http.StatusBadRequest, reqErr.Fields)
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return DataResponse(c, http.StatusInternalServerError,
		[]*AppError{StatusError(http.StatusInternalServerError, "something went wrong")})
}
