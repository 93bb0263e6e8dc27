package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/status"

	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

// Error writes a classified failure in the envelope the browser client
// understands: {"error": {"status": <code name>, "message": <text>}}.
// The message is safe for direct display.
func Error(c *gin.Context, err error) {
	err = svcErr.Map(err)
	st := status.Convert(err)
	c.AbortWithStatusJSON(svcErr.HTTPStatus(err), gin.H{
		"error": gin.H{
			"status":  st.Code().String(),
			"message": st.Message(),
		},
	})
}

// OK writes a 200 response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}
