package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/services"
	"go.uber.org/zap"
)

// OwnerResolver returns the owner of the resource with the given id.
type OwnerResolver func(ctx context.Context, id uint) (uint, error)

// ParamID parses a positive numeric path parameter.
func ParamID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// RequireOwner lets the request through only when the current user owns the
// resource named by the path parameter. Being an administrator is not enough.
func RequireOwner(param string, resolve OwnerResolver, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		id, ok := ParamID(c, param)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid " + param})
			return
		}

		owner, err := resolve(c.Request.Context(), id)
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		case err != nil:
			log.Error("owner lookup failed", zap.String("path", c.FullPath()), zap.Uint("id", id), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		if owner != u.ID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "You do not own this resource"})
			return
		}
		c.Next()
	}
}
