package handlers

import (
	"net/http"

	"minrisk/internal/database"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
)

func ListAuditLogs(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var logs []models.AuditLog
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("User").
		Order("created_at desc").
		Limit(200).
		Find(&logs).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load audit trail")
		return
	}
	c.JSON(http.StatusOK, logs)
}
