package handlers

import "github.com/gin-gonic/gin"

// Envelope is the wire shape of every API response: code 0 on success,
// non-zero with msg on failure.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(200, Envelope{Code: 0, Data: data})
}

func respondErr(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{Code: 1, Msg: msg})
}
