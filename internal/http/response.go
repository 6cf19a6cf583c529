package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      any    `json:"data,omitempty"`
	Error     any    `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondOK(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, envelope{
		Code:      http.StatusOK,
		Msg:       msg,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
	})
}

func respondError(c *gin.Context, status int, msg string, detail any) {
	c.AbortWithStatusJSON(status, envelope{
		Code:      status,
		Msg:       msg,
		Error:     detail,
		RequestID: c.GetString(requestIDKey),
	})
}
