// Package handlers exposes the governance engine and its CRUD surface as a
// JSON API. Every /api handler is organization-scoped through the session
// user; nothing here reads or writes another tenant's rows.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minrisk/internal/engine"
	"minrisk/internal/models"
)

// eng is wired once by the router, the same way the database package holds
// its shared handle.
var eng *engine.Engine

func Init(e *engine.Engine) {
	eng = e
}

// currentUser returns the session user loaded by the InjectUser middleware.
func currentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get("CurrentUser")
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// requireUser aborts with 401 when the session has no loadable user.
func requireUser(c *gin.Context) (models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return user, ok
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func bindError(c *gin.Context, err error) {
	jsonError(c, http.StatusBadRequest, err.Error())
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// dbError maps a lookup error to 404 for missing rows, 500 otherwise.
func dbError(c *gin.Context, err error, what string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		jsonError(c, http.StatusNotFound, what+" not found")
		return
	}
	jsonError(c, http.StatusInternalServerError, "failed to load "+what)
}
