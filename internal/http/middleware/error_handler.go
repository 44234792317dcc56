package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

const internalErrorMessage = "внутренняя ошибка сервера"

// ErrorHandler логирует ошибки, переданные через c.Error, и отвечает, если хэндлер ещё не ответил.
// Ошибки сервисов (AppError) отдаются со своим статусом и кодом, внутренние маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := ErrorResponse(err)

		entry := logger.WithComponent("http").WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request error")
		} else {
			entry.Debug("request rejected")
		}

		if !c.Writer.Written() {
			c.JSON(status, body)
		}
	}
}

// ErrorResponse превращает ошибку в HTTP статус и тело ответа.
func ErrorResponse(err error) (int, gin.H) {
	appErr, ok := apperror.As(err)
	if !ok {
		return http.StatusInternalServerError, gin.H{"error": internalErrorMessage, "code": apperror.ErrCodeInternal}
	}

	message := appErr.Message
	if appErr.IsInternal() {
		message = internalErrorMessage
	}
	return appErr.HTTPStatus, gin.H{"error": message, "code": appErr.Code}
}
