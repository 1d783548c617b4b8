package handlers

import (
	"errors"
	"net/http"
	"time"

	"minrisk/internal/database"
	"minrisk/internal/engine"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
)

func ListBreaches(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	dbq := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("ToleranceMetric").
		Order("detected_at desc")

	if status := c.Query("status"); status != "" {
		dbq = dbq.Where("status = ?", status)
	}
	if severity := c.Query("severity"); severity != "" {
		dbq = dbq.Where("severity = ?", severity)
	}

	var breaches []models.Breach
	if err := dbq.Find(&breaches).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load breaches")
		return
	}
	c.JSON(http.StatusOK, breaches)
}

func GetBreach(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var breach models.Breach
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("ToleranceMetric").
		First(&breach, id).Error; err != nil {
		dbError(c, err, "breach")
		return
	}

	var overrides []models.ThresholdOverride
	database.DB.
		Where("organization_id = ? AND breach_id = ?", user.OrganizationID, breach.ID).
		Order("created_at desc").
		Find(&overrides)

	c.JSON(http.StatusOK, gin.H{"breach": breach, "exceptions": overrides})
}

// breachError maps the engine's sentinels onto response codes.
func breachError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrResolutionNotesRequired):
		jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrExceptionDecided):
		jsonError(c, http.StatusConflict, err.Error())
	default:
		dbError(c, err, "breach")
	}
}

func AcknowledgeBreach(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	breach, err := eng.AcknowledgeBreach(c.Request.Context(), user.OrganizationID, id, user.ID)
	if err != nil {
		breachError(c, err)
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "breach", breach.ID, "acknowledge", "Breach acknowledged")
	c.JSON(http.StatusOK, breach)
}

type progressRequest struct {
	Plan string `json:"plan" binding:"required,min=3"`
}

func ProgressBreach(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	breach, err := eng.StartRemediation(c.Request.Context(), user.OrganizationID, id, user.ID, req.Plan)
	if err != nil {
		breachError(c, err)
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "breach", breach.ID, "progress", "Remediation plan recorded")
	c.JSON(http.StatusOK, breach)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

func ResolveBreach(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	breach, err := eng.ResolveBreach(c.Request.Context(), user.OrganizationID, id, user.ID, req.Notes)
	if err != nil {
		breachError(c, err)
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "breach", breach.ID, "resolve", "Breach resolved")
	c.JSON(http.StatusOK, breach)
}

type exceptionRequest struct {
	Justification string    `json:"justification" binding:"required,min=3"`
	ExpiresAt     time.Time `json:"expires_at" binding:"required"`
	thresholdBounds
}

// RequestException files a board exception: temporarily adjusted bounds
// with a hard expiry, layered over the permanent thresholds on approval.
func RequestException(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req exceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !req.ExpiresAt.After(time.Now()) {
		jsonError(c, http.StatusBadRequest, "expires_at must be in the future")
		return
	}

	var breach models.Breach
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("ToleranceMetric").
		First(&breach, id).Error; err != nil {
		dbError(c, err, "breach")
		return
	}
	if err := boundsValid(breach.ToleranceMetric.MetricType, req.thresholdBounds); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	override, err := eng.RequestException(c.Request.Context(), user.OrganizationID, breach.ID, user.ID, engine.ExceptionRequest{
		Justification: req.Justification,
		ExpiresAt:     req.ExpiresAt,
		GreenMax:      req.GreenMax,
		AmberMax:      req.AmberMax,
		GreenMin:      req.GreenMin,
		AmberMin:      req.AmberMin,
		GreenLow:      req.GreenLow,
		GreenHigh:     req.GreenHigh,
		AmberLow:      req.AmberLow,
		AmberHigh:     req.AmberHigh,
	})
	if err != nil {
		breachError(c, err)
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "breach", breach.ID, "request_exception", "Board exception requested")
	c.JSON(http.StatusCreated, override)
}

func ApproveException(c *gin.Context) {
	decideException(c, true)
}

func RejectException(c *gin.Context) {
	decideException(c, false)
}

func decideException(c *gin.Context, approve bool) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	override, err := eng.DecideException(c.Request.Context(), user.OrganizationID, id, user.ID, approve)
	if err != nil {
		if errors.Is(err, engine.ErrExceptionDecided) || errors.Is(err, engine.ErrInvalidTransition) {
			jsonError(c, http.StatusConflict, err.Error())
			return
		}
		dbError(c, err, "exception request")
		return
	}

	action := "reject_exception"
	if approve {
		action = "approve_exception"
	}
	database.CreateAuditLog(user.OrganizationID, user.ID, "breach", override.BreachID, action, "Board exception decided")
	c.JSON(http.StatusOK, override)
}
