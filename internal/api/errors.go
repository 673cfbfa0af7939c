package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/service"
	"storefront/internal/util"
)

// errorBody maps a service error onto a status code and JSON body.
func errorBody(err error) (int, gin.H) {
	var verr *checkout.ValidationError
	var uerr *service.UploadError
	var perr *service.PersistenceError

	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields}
	case errors.As(err, &uerr):
		return http.StatusBadGateway, gin.H{"error": "upload failed, nothing was saved", "retryable": true}
	case errors.As(err, &perr):
		msg := "could not save, please try again"
		if perr.Conflict {
			msg = "order id collision, please submit again"
		}
		return http.StatusServiceUnavailable, gin.H{"error": msg, "retryable": true}
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrCustomOrderNotFound),
		errors.Is(err, service.ErrMessageNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, service.ErrTerminalStatus),
		errors.Is(err, service.ErrCheckoutInProgress):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	}
	return http.StatusInternalServerError, gin.H{"error": "internal error"}
}

func respondError(c *gin.Context, err error) {
	respondErrorWith(c, err, nil)
}

// respondErrorWith adds extra to the body of a failure the caller may retry.
func respondErrorWith(c *gin.Context, err error, extra gin.H) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		for k, v := range extra {
			body[k] = v
		}
	}
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
