package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"listing-chat/apperrors"
)

// RespondSuccess writes data as a 200 JSON body.
func RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondError writes {"error", "code"} with the status mapped from err and
// aborts the chain. Internal causes are logged, never returned.
func RespondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperrors.PublicMessage(err),
		"code":  apperrors.CodeOf(err),
	})
}
