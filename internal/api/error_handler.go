package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// handler 通过 c.Error 记录错误后由这里统一渲染
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		RespondError(c, c.Errors.Last().Err)
	}
}

// RespondError 按错误类别渲染响应
// 领域错误映射到对应状态码,其余错误一律 500 且不向调用方暴露细节
func RespondError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
		return
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Kind != apperror.KindInternal {
		status := appErr.HTTPStatus()
		c.JSON(status, ErrorResponse{
			Code:      status,
			Message:   appErr.Message,
			Reason:    appErr.Code,
			Retryable: appErr.Retryable(),
		})
		return
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
	}).WithError(err).Error("request failed")
	Error(c, http.StatusInternalServerError, "internal server error", "")
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// fail 记录错误并中止后续 handler
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// badRequest 请求体或参数不合法
func badRequest(c *gin.Context, err error) {
	fail(c, WrapError(err, http.StatusBadRequest, "invalid request"))
}
