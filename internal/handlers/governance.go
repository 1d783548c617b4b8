package handlers

import (
	"errors"
	"net/http"

	"minrisk/internal/database"
	"minrisk/internal/engine"

	"github.com/gin-gonic/gin"
)

// DashboardStatus returns the category and enterprise rollup, recomputed
// from breach records on every call.
func DashboardStatus(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	status, err := eng.Status(c.Request.Context(), user.OrganizationID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to compute governance status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Recalculate runs the organization-wide pass: every risk rescored, every
// live-fed metric re-evaluated. A pass already in flight answers 409.
func Recalculate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	summary, err := eng.RecalculateOrganization(c.Request.Context(), user.OrganizationID)
	if err != nil {
		if errors.Is(err, engine.ErrRecalculationInProgress) {
			jsonError(c, http.StatusConflict, err.Error())
			return
		}
		jsonError(c, http.StatusInternalServerError, "recalculation failed")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "organization", user.OrganizationID, "recalculate",
		"Organization-wide recalculation completed")
	c.JSON(http.StatusOK, summary)
}
