package handlers

import (
	"net/http"
	"time"

	"minrisk/internal/database"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
)

func ListIndicators(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var indicators []models.Indicator
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Order("name asc").
		Find(&indicators).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load indicators")
		return
	}
	c.JSON(http.StatusOK, indicators)
}

type indicatorRequest struct {
	Name        string `json:"name" binding:"required,min=3"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

func CreateIndicator(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req indicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	indicator := models.Indicator{
		OrganizationID: user.OrganizationID,
		Name:           req.Name,
		Unit:           req.Unit,
		Description:    req.Description,
	}
	if err := database.DB.Create(&indicator).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create indicator")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "indicator", indicator.ID, "create", "Created indicator: "+indicator.Name)
	c.JSON(http.StatusCreated, indicator)
}

type observationRequest struct {
	// pointer so a literal zero reading still binds
	Value      *float64                  `json:"value" binding:"required"`
	ObservedAt *time.Time                `json:"observed_at"`
	Quality    models.ObservationQuality `json:"quality" binding:"omitempty,oneof=valid suspect"`
}

// RecordObservation appends one reading and returns what it did to every
// tolerance metric fed by this indicator.
func RecordObservation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req observationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	observedAt := time.Now().UTC()
	if req.ObservedAt != nil {
		observedAt = *req.ObservedAt
	}
	quality := req.Quality
	if quality == "" {
		quality = models.QualityValid
	}

	obs, outcomes, err := eng.RecordObservation(c.Request.Context(), user.OrganizationID, user.ID, id, *req.Value, observedAt, quality)
	if err != nil {
		dbError(c, err, "indicator")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"observation": obs,
		"evaluations": outcomes,
	})
}
