package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/middleware"
	"geotasks/api/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var kindStatus = map[service.Kind]int{
	service.KindNotFound:     http.StatusNotFound,
	service.KindConflict:     http.StatusBadRequest,
	service.KindForbidden:    http.StatusForbidden,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindValidation:   http.StatusUnprocessableEntity,
}

// writeError maps a service error to its status. Anything else is a 500.
func writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status, ok := kindStatus[svcErr.Kind]
		if ok {
			if status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			c.AbortWithStatusJSON(status, ErrorResponse{Detail: svcErr.Message})
			return
		}
	}

	log.Printf("[API] %s %s failed (request %s): %v", c.Request.Method, c.Request.URL.Path, c.GetString(middleware.RequestIDKey), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
}

func validationFailed(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: detail})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		validationFailed(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
