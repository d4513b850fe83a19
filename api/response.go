package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/nikolaus/internal/apperr"
)

type envelope struct {
	Data  any        `json:"data"`
	Meta  any        `json:"meta,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func respond(c *gin.Context, status int, data, meta any) {
	c.JSON(status, envelope{Data: data, Meta: meta})
}

// writeError renders err in the {data: null, error: {...}} shape the
// frontend expects. Errors without a kind are reported as internal.
func writeError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err)
	}
	if appErr.Kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	abortWith(c, appErr.Status.Code, string(appErr.Kind), appErr.Message, appErr.Body)
}

func abortWith(c *gin.Context, status int, name, message string, details any) {
	if details == nil {
		details = gin.H{}
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, envelope{Error: &errorBody{
		Status:  status,
		Name:    name,
		Message: message,
		Details: details,
	}})
}
