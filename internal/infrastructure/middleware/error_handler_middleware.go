package middleware

import (
	"net/http"

	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func appErrorBody(appErr *apperrors.AppError) gin.H {
	body := gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Context) > 0 {
		body["details"] = appErr.Context
	}
	return body
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErrorBody(appErr))
}

// ErrorHandlerMiddleware renders the last error a handler attached with
// c.Error. Errors that are not AppErrors become INTERNAL_ERROR without
// leaking their text.
func ErrorHandlerMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		log := cl.For(c.Request.Context()).With("method", c.Request.Method, "route", c.FullPath())

		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			log.Errorw("Unhandled error", "error", err)
			appErr = apperrors.NewInternalError("internal server error")
		} else if appErr.HTTPStatus >= http.StatusInternalServerError {
			log.Errorw("Request failed", "code", appErr.Code, "error", err)
		} else {
			// rejected intents are routine
			log.Infow("Request rejected", "code", appErr.Code, "message", appErr.Message)
		}

		c.JSON(appErr.HTTPStatus, appErrorBody(appErr))
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("Panic recovered", "panic", r, "path", c.Request.URL.Path, "method", c.Request.Method)
				abortWithAppError(c, apperrors.NewInternalError("internal server error"))
			}
		}()
		c.Next()
	}
}
