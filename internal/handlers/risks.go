package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"minrisk/internal/database"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

func ListRisks(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	dbq := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("Category").
		Order("created_at desc")

	if categoryStr := c.Query("category_id"); categoryStr != "" {
		if categoryID, err := strconv.Atoi(categoryStr); err == nil && categoryID > 0 {
			dbq = dbq.Where("category_id = ?", categoryID)
		}
	}

	var risks []models.Risk
	if err := dbq.Find(&risks).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load risks")
		return
	}
	c.JSON(http.StatusOK, risks)
}

type riskRequest struct {
	Title              string `json:"title" binding:"required,min=3"`
	Description        string `json:"description"`
	CategoryID         uint   `json:"category_id" binding:"required"`
	OwnerID            uint   `json:"owner_id"`
	InherentLikelihood int    `json:"inherent_likelihood" binding:"required,min=1,max=5"`
	InherentImpact     int    `json:"inherent_impact" binding:"required,min=1,max=5"`
}

func CreateRisk(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var category models.AppetiteCategory
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&category, req.CategoryID).Error; err != nil {
		jsonError(c, http.StatusBadRequest, "category not found")
		return
	}

	risk := models.Risk{
		OrganizationID:     user.OrganizationID,
		CategoryID:         category.ID,
		Title:              req.Title,
		Description:        req.Description,
		OwnerID:            req.OwnerID,
		InherentLikelihood: req.InherentLikelihood,
		InherentImpact:     req.InherentImpact,
	}
	if err := database.DB.Create(&risk).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create risk")
		return
	}

	// no controls linked yet, so residual lands on inherent
	risk, err := eng.RecalculateRisk(c.Request.Context(), user.OrganizationID, risk.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to derive residual rating")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "risk", risk.ID, "create", "Created risk: "+risk.Title)
	c.JSON(http.StatusCreated, risk)
}

func GetRisk(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var risk models.Risk
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("Category").
		First(&risk, id).Error; err != nil {
		dbError(c, err, "risk")
		return
	}

	var controls []models.Control
	database.DB.
		Joins("JOIN risk_controls ON risk_controls.control_id = controls.id").
		Where("risk_controls.risk_id = ?", risk.ID).
		Find(&controls)

	c.JSON(http.StatusOK, gin.H{"risk": risk, "controls": controls})
}

func UpdateRisk(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var risk models.Risk
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&risk, id).Error; err != nil {
		dbError(c, err, "risk")
		return
	}

	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var category models.AppetiteCategory
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&category, req.CategoryID).Error; err != nil {
		jsonError(c, http.StatusBadRequest, "category not found")
		return
	}

	if err := database.DB.Model(&risk).Updates(map[string]interface{}{
		"title":               req.Title,
		"description":         req.Description,
		"category_id":         category.ID,
		"owner_id":            req.OwnerID,
		"inherent_likelihood": req.InherentLikelihood,
		"inherent_impact":     req.InherentImpact,
	}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to update risk")
		return
	}

	// inherent ratings moved, so the residual side moves with them
	risk, err := eng.RecalculateRisk(c.Request.Context(), user.OrganizationID, risk.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to derive residual rating")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "risk", risk.ID, "update", "Updated risk: "+risk.Title)
	c.JSON(http.StatusOK, risk)
}

func DeleteRisk(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var risk models.Risk
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&risk, id).Error; err != nil {
		dbError(c, err, "risk")
		return
	}

	if err := database.DB.Where("risk_id = ?", risk.ID).Delete(&models.RiskControl{}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to unlink controls")
		return
	}
	if err := database.DB.Delete(&risk).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to delete risk")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "risk", risk.ID, "delete", "Deleted risk: "+risk.Title)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type linkControlRequest struct {
	ControlID uint `json:"control_id" binding:"required"`
}

func LinkControl(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req linkControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var risk models.Risk
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&risk, id).Error; err != nil {
		dbError(c, err, "risk")
		return
	}
	var control models.Control
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&control, req.ControlID).Error; err != nil {
		dbError(c, err, "control")
		return
	}

	link := models.RiskControl{RiskID: risk.ID, ControlID: control.ID}
	res := database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if res.Error != nil {
		jsonError(c, http.StatusInternalServerError, "failed to link control")
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusConflict, "control already linked to this risk")
		return
	}

	risk, err := eng.RecalculateRisk(c.Request.Context(), user.OrganizationID, risk.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to derive residual rating")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "risk", risk.ID, "link_control",
		fmt.Sprintf("Linked control %q", control.Name))
	c.JSON(http.StatusOK, risk)
}

func UnlinkControl(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	controlID, ok := parseID(c, "control_id")
	if !ok {
		return
	}

	var risk models.Risk
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&risk, id).Error; err != nil {
		dbError(c, err, "risk")
		return
	}

	res := database.DB.
		Where("risk_id = ? AND control_id = ?", risk.ID, controlID).
		Delete(&models.RiskControl{})
	if res.Error != nil {
		jsonError(c, http.StatusInternalServerError, "failed to unlink control")
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusNotFound, "link not found")
		return
	}

	risk, err := eng.RecalculateRisk(c.Request.Context(), user.OrganizationID, risk.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to derive residual rating")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "risk", risk.ID, "unlink_control",
		fmt.Sprintf("Unlinked control %d", controlID))
	c.JSON(http.StatusOK, risk)
}
