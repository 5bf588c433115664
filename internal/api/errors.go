package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jaxxstorm/atlastodo/internal/todo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var errorCodeToStatus = map[string]int{
	todo.CodeValidation: http.StatusBadRequest,
	todo.CodeInvalidID:  http.StatusBadRequest,
	todo.CodeNotFound:   http.StatusNotFound,
}

// HandleError renders every handler error as {success:false, message}.
func (h *Handler) HandleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := err.Error()

	var he *echo.HTTPError
	var te *todo.Error
	switch {
	case errors.As(err, &te):
		if code, ok := errorCodeToStatus[te.Code]; ok {
			status = code
		}
		message = te.Message
	case errors.As(err, &he):
		status = he.Code
		message = fmt.Sprint(he.Message)
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, Response{Success: false, Message: message})
}
