package middleware

import (
	"errors"
	"net/http"

	"reporting-scheduler/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last handler error as a JSON body with the mapped HTTP
// status. Unrecognized errors become a plain 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ginErr := c.Errors.Last()
		if ginErr == nil || c.Writer.Written() {
			return
		}

		var base errutil.BaseError
		if errors.As(ginErr.Err, &base) {
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": errutil.StatusInternal, "message": ginErr.Error()},
		})
	}
}
