package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/middleware"
	"github.com/vnkhanh/tracer-study/services"
	"go.uber.org/zap"
)

// respondError maps service errors to a status and a JSON body. Anything
// unrecognized is logged and reported as a 500 without details.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var (
		ve *services.ValidationError
		rl *services.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation failed", "errors": ve.Fields})
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too Many Requests", "retry_after": secs})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrLoginRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrInactive):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	case errors.Is(err, services.ErrAlreadyCompleted),
		errors.Is(err, services.ErrResponseCompleted),
		errors.Is(err, services.ErrLimitReached):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload", "error": err.Error()})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := middleware.ParamID(c, name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name})
	}
	return id, ok
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}

func meta(c *gin.Context) services.RespondentMeta {
	m := services.RespondentMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if u := middleware.CurrentUser(c); u != nil {
		m.UserID = &u.ID
		m.Name = u.Name
		m.Email = u.Email
	}
	return m
}
