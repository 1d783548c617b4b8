package handlers

import (
	"net/http"

	"minrisk/internal/database"
	"minrisk/internal/models"
	"minrisk/internal/scoring"

	"github.com/gin-gonic/gin"
)

func ListControls(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var controls []models.Control
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Order("name asc").
		Find(&controls).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load controls")
		return
	}
	c.JSON(http.StatusOK, controls)
}

type controlRequest struct {
	Name        string               `json:"name" binding:"required,min=3"`
	Description string               `json:"description"`
	Target      models.ControlTarget `json:"target" binding:"required,oneof=likelihood impact both"`

	// DIME assessment, each dimension 0..3
	Design         int `json:"design" binding:"min=0,max=3"`
	Implementation int `json:"implementation" binding:"min=0,max=3"`
	Monitoring     int `json:"monitoring" binding:"min=0,max=3"`
	Evaluation     int `json:"evaluation" binding:"min=0,max=3"`
}

func CreateControl(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	control := models.Control{
		OrganizationID: user.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Target:         req.Target,
		Design:         req.Design,
		Implementation: req.Implementation,
		Monitoring:     req.Monitoring,
		Evaluation:     req.Evaluation,
	}
	if err := database.DB.Create(&control).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create control")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "control", control.ID, "create", "Created control: "+control.Name)
	c.JSON(http.StatusCreated, control)
}

func GetControl(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var control models.Control
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&control, id).Error; err != nil {
		dbError(c, err, "control")
		return
	}

	var riskIDs []uint
	database.DB.Model(&models.RiskControl{}).
		Where("control_id = ?", control.ID).
		Pluck("risk_id", &riskIDs)

	c.JSON(http.StatusOK, gin.H{
		"control":       control,
		"effectiveness": scoring.Effectiveness(control.Design, control.Implementation, control.Monitoring, control.Evaluation),
		"risk_ids":      riskIDs,
	})
}

// UpdateControl rescores the assessment and re-derives the residual rating
// of every linked risk in the same request.
func UpdateControl(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var control models.Control
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&control, id).Error; err != nil {
		dbError(c, err, "control")
		return
	}

	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := database.DB.Model(&control).Updates(map[string]interface{}{
		"name":           req.Name,
		"description":    req.Description,
		"target":         req.Target,
		"design":         req.Design,
		"implementation": req.Implementation,
		"monitoring":     req.Monitoring,
		"evaluation":     req.Evaluation,
	}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to update control")
		return
	}

	rescored, err := eng.RescoreControlRisks(c.Request.Context(), user.OrganizationID, control.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to rescore linked risks")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "control", control.ID, "update", "Rescored control: "+control.Name)
	c.JSON(http.StatusOK, gin.H{
		"control":           control,
		"effectiveness":     scoring.Effectiveness(req.Design, req.Implementation, req.Monitoring, req.Evaluation),
		"risks_rescored":    len(rescored),
		"rescored_risk_ids": rescored,
	})
}
