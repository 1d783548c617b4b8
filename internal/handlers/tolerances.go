package handlers

import (
	"net/http"
	"strconv"

	"minrisk/internal/appetite"
	"minrisk/internal/database"
	"minrisk/internal/engine"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

func ListTolerances(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	dbq := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("Category").
		Order("name asc")

	if categoryStr := c.Query("category_id"); categoryStr != "" {
		if categoryID, err := strconv.Atoi(categoryStr); err == nil && categoryID > 0 {
			dbq = dbq.Where("category_id = ?", categoryID)
		}
	}

	var tolerances []models.ToleranceMetric
	if err := dbq.Find(&tolerances).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load tolerance metrics")
		return
	}
	c.JSON(http.StatusOK, tolerances)
}

type createToleranceRequest struct {
	Name       string              `json:"name" binding:"required,min=3"`
	Unit       string              `json:"unit"`
	CategoryID uint                `json:"category_id" binding:"required"`
	MetricType appetite.MetricType `json:"metric_type" binding:"required,oneof=maximum minimum range directional"`

	thresholdBounds
	LookbackDays int `json:"lookback_days" binding:"min=0"`

	BreachRule     appetite.RuleKind `json:"breach_rule" binding:"required,oneof=point_in_time sustained n_breaches"`
	RuleCount      int               `json:"rule_count" binding:"min=0"`
	RuleWindowDays int               `json:"rule_window_days" binding:"min=0"`

	AmberContact string `json:"amber_contact" binding:"omitempty,url"`
	RedContact   string `json:"red_contact" binding:"omitempty,url"`
	OwnerID      uint   `json:"owner_id"`
}

func CreateTolerance(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req createToleranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var category models.AppetiteCategory
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&category, req.CategoryID).Error; err != nil {
		jsonError(c, http.StatusBadRequest, "category not found")
		return
	}

	metric := models.ToleranceMetric{
		OrganizationID: user.OrganizationID,
		CategoryID:     category.ID,
		Name:           req.Name,
		Unit:           req.Unit,
		MetricType:     req.MetricType,
		GreenMax:       req.GreenMax,
		AmberMax:       req.AmberMax,
		GreenMin:       req.GreenMin,
		AmberMin:       req.AmberMin,
		GreenLow:       req.GreenLow,
		GreenHigh:      req.GreenHigh,
		AmberLow:       req.AmberLow,
		AmberHigh:      req.AmberHigh,
		LookbackDays:   req.LookbackDays,
		BreachRule:     req.BreachRule,
		RuleCount:      req.RuleCount,
		RuleWindowDays: req.RuleWindowDays,
		AmberContact:   req.AmberContact,
		RedContact:     req.RedContact,
		OwnerID:        req.OwnerID,
	}
	if err := database.DB.Create(&metric).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create tolerance metric")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "create", "Created tolerance metric: "+metric.Name)
	c.JSON(http.StatusCreated, metric)
}

func GetTolerance(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Preload("Category").
		Preload("SourceIndicator").
		First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}

	var links []models.CoverageLink
	database.DB.
		Where("tolerance_metric_id = ?", metric.ID).
		Preload("Indicator").
		Find(&links)

	var activeBreach *models.Breach
	var breach models.Breach
	if err := database.DB.
		Where("organization_id = ? AND tolerance_metric_id = ? AND status IN ?",
			user.OrganizationID, metric.ID, models.ActiveBreachStatuses).
		First(&breach).Error; err == nil {
		activeBreach = &breach
	}

	c.JSON(http.StatusOK, gin.H{
		"metric":         metric,
		"coverage":       links,
		"coverage_grade": coverageGrade(links),
		"active_breach":  activeBreach,
	})
}

type updateThresholdsRequest struct {
	thresholdBounds
	LookbackDays int `json:"lookback_days" binding:"min=0"`
}

// UpdateThresholds edits the permanent bounds. Rejected with 409 while the
// metric is live-fed: thresholds are inherited from the KRI until unlinked.
func UpdateThresholds(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}
	if metric.SourceIndicatorID != nil {
		jsonError(c, http.StatusConflict, engine.ErrThresholdsLiveFed.Error())
		return
	}

	var req updateThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := boundsValid(metric.MetricType, req.thresholdBounds); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	if metric.MetricType == appetite.MetricDirectional && req.LookbackDays < 1 {
		jsonError(c, http.StatusBadRequest, "directional metrics need lookback_days >= 1")
		return
	}

	if err := database.DB.Model(&metric).Updates(map[string]interface{}{
		"green_max":     req.GreenMax,
		"amber_max":     req.AmberMax,
		"green_min":     req.GreenMin,
		"amber_min":     req.AmberMin,
		"green_low":     req.GreenLow,
		"green_high":    req.GreenHigh,
		"amber_low":     req.AmberLow,
		"amber_high":    req.AmberHigh,
		"lookback_days": req.LookbackDays,
	}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to update thresholds")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "update_thresholds", "Updated thresholds: "+metric.Name)
	c.JSON(http.StatusOK, metric)
}

type feedRequest struct {
	IndicatorID uint `json:"indicator_id" binding:"required"`
}

// LinkFeed puts the metric on a live KRI feed. From here every valid
// observation of the indicator is evaluated and the thresholds lock.
func LinkFeed(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}
	var indicator models.Indicator
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&indicator, req.IndicatorID).Error; err != nil {
		dbError(c, err, "indicator")
		return
	}

	if err := database.DB.Model(&metric).Update("source_indicator_id", indicator.ID).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to link feed")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "link_feed",
		"Linked live feed: "+indicator.Name)
	c.JSON(http.StatusOK, metric)
}

// UnlinkFeed takes the metric off its live feed and unlocks the thresholds.
func UnlinkFeed(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}

	if err := database.DB.Model(&metric).Update("source_indicator_id", nil).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to unlink feed")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "unlink_feed", "Unlinked live feed")
	c.JSON(http.StatusOK, metric)
}

func coverageGrade(links []models.CoverageLink) appetite.CoverageGrade {
	strengths := make([]appetite.CoverageStrength, len(links))
	for i, link := range links {
		strengths[i] = link.Strength
	}
	return appetite.GradeCoverage(strengths)
}

// GetCoverage lists a metric's indicator links with the derived grade.
func GetCoverage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}

	var links []models.CoverageLink
	if err := database.DB.
		Where("tolerance_metric_id = ?", metric.ID).
		Preload("Indicator").
		Find(&links).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load coverage links")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links": links,
		"grade": coverageGrade(links),
	})
}

type coverageRequest struct {
	IndicatorID uint                      `json:"indicator_id" binding:"required"`
	Strength    appetite.CoverageStrength `json:"strength" binding:"required,oneof=primary secondary supplementary"`
	Signal      appetite.SignalType       `json:"signal" binding:"required,oneof=leading concurrent lagging"`
}

func AddCoverageLink(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req coverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}
	var indicator models.Indicator
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&indicator, req.IndicatorID).Error; err != nil {
		dbError(c, err, "indicator")
		return
	}

	link := models.CoverageLink{
		OrganizationID:    user.OrganizationID,
		ToleranceMetricID: metric.ID,
		IndicatorID:       indicator.ID,
		Strength:          req.Strength,
		Signal:            req.Signal,
	}
	res := database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if res.Error != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create coverage link")
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusConflict, "indicator already covers this metric")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "add_coverage",
		"Linked indicator: "+indicator.Name)
	c.JSON(http.StatusCreated, link)
}

func RemoveCoverageLink(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	linkID, ok := parseID(c, "link_id")
	if !ok {
		return
	}

	var metric models.ToleranceMetric
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&metric, id).Error; err != nil {
		dbError(c, err, "tolerance metric")
		return
	}

	res := database.DB.
		Where("tolerance_metric_id = ? AND id = ?", metric.ID, linkID).
		Delete(&models.CoverageLink{})
	if res.Error != nil {
		jsonError(c, http.StatusInternalServerError, "failed to remove coverage link")
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusNotFound, "coverage link not found")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "tolerance", metric.ID, "remove_coverage", "Removed coverage link")
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
