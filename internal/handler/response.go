package handler

import (
	"errors"
	"net/http"

	"github.com/blues/ideafund/internal/feed"
	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/wallet"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	ErrorResponseWithData(c, statusCode, message, nil)
}

// ErrorResponseWithData 带数据的错误响应
func ErrorResponseWithData(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    data,
	})
}

// statusOf 错误分类到 HTTP 状态码
func statusOf(err error) int {
	var (
		ve *funding.ValidationError
		pe *funding.PersistenceError
		fe *feed.FetchError
	)
	switch {
	case errors.As(err, &ve):
		if errors.Is(err, funding.ErrIdeaNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, wallet.ErrUnknownAccount), errors.Is(err, ledger.ErrUnauthorizedSigner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidAddress), errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransactionFailed):
		return http.StatusBadGateway
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.Is(err, funding.ErrStatusConflict):
		return http.StatusConflict
	case errors.As(err, &fe):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse 按错误类型响应。持久化失败时返回待修复的投资，客户端据此调用修复接口。
func errorResponse(c *gin.Context, err error) {
	code := statusOf(err)

	var pe *funding.PersistenceError
	if errors.As(err, &pe) {
		logger.Error("Investment needs repair: %v", err)
		ErrorResponseWithData(c, code, err.Error(), RepairRequest(pe.Pending))
		return
	}
	if code == http.StatusInternalServerError {
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	ErrorResponse(c, code, err.Error())
}
