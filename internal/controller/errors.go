package controller

import (
	"errors"
	"net/http"

	"mocktest_backend/internal/service"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors onto the response envelope. Anything
// unrecognised is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		util.ErrorWithData(c, http.StatusBadRequest, "Invalid question data.", gin.H{"errors": verr.Rows})
	case errors.Is(err, util.ErrTestNotFound):
		util.NotFound(c, util.ErrTestNotFound.Error())
	case errors.Is(err, util.ErrNoQuestions):
		util.NotFound(c, util.ErrNoQuestions.Error())
	case errors.Is(err, util.ErrSessionNotFound),
		errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(c, err.Error())
	case errors.Is(err, util.ErrTestIDRequired),
		errors.Is(err, util.ErrNoFile),
		errors.Is(err, util.ErrInvalidJSONBatch),
		errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrUnknownQuestion):
		util.BadRequest(c, rootMessage(err))
	case errors.Is(err, session.ErrSubmitted):
		util.Conflict(c, err.Error(), nil)
	case errors.Is(err, util.ErrUserExists):
		util.Conflict(c, err.Error(), nil)
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, util.ErrStoreUnavailable):
		logger.Log.Warn("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		util.Error(c, http.StatusBadGateway, "Failed to load questions. Please try again later.")
	default:
		util.LogInternalError(c, err)
	}
}

// rootMessage keeps client-facing messages to the sentinel text.
func rootMessage(err error) string {
	for _, target := range []error{util.ErrInvalidJSONBatch, util.ErrTestIDRequired, util.ErrNoFile} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}
