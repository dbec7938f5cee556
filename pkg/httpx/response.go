package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// codedError 带业务错误码和HTTP状态的错误，ErrorMessage为可返回给客户端的文案
type codedError interface {
	error
	ErrorCode() string
	ErrorMessage() string
	HTTPStatus() int
}

const internalMessage = "internal server error"

// ErrorBody 错误响应体
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteObject 写入成功响应
func WriteObject(c *gin.Context, status int, obj interface{}) {
	c.JSON(status, obj)
}

// WriteError 写入错误响应，未识别的错误统一为500，底层原因只进日志不进响应
func WriteError(c *gin.Context, err error) {
	var ce codedError
	if errors.As(err, &ce) {
		status := ce.HTTPStatus()
		message := ce.ErrorMessage()
		if status >= http.StatusInternalServerError {
			message = internalMessage
		}
		c.AbortWithStatusJSON(status, ErrorBody{Code: ce.ErrorCode(), Message: message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
		Code:    "INTERNAL",
		Message: internalMessage,
	})
}

// WriteStatusError 直接指定状态码和错误码
func WriteStatusError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Code: code, Message: message})
}
