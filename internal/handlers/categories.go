package handlers

import (
	"net/http"

	"minrisk/internal/database"
	"minrisk/internal/models"

	"github.com/gin-gonic/gin"
)

func ListCategories(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var categories []models.AppetiteCategory
	if err := database.DB.
		Where("organization_id = ?", user.OrganizationID).
		Order("name asc").
		Find(&categories).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to load categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

type categoryRequest struct {
	Name      string               `json:"name" binding:"required,min=2"`
	Appetite  models.AppetiteLevel `json:"appetite" binding:"required,oneof=zero low moderate high"`
	Statement string               `json:"statement"`
}

func CreateCategory(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category := models.AppetiteCategory{
		OrganizationID: user.OrganizationID,
		Name:           req.Name,
		Appetite:       req.Appetite,
		Statement:      req.Statement,
	}
	if err := database.DB.Create(&category).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to create category")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "category", category.ID, "create", "Created category: "+category.Name)
	c.JSON(http.StatusCreated, category)
}

func UpdateCategory(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var category models.AppetiteCategory
	if err := database.DB.Where("organization_id = ?", user.OrganizationID).First(&category, id).Error; err != nil {
		dbError(c, err, "category")
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := database.DB.Model(&category).Updates(map[string]interface{}{
		"name":      req.Name,
		"appetite":  req.Appetite,
		"statement": req.Statement,
	}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to update category")
		return
	}

	database.CreateAuditLog(user.OrganizationID, user.ID, "category", category.ID, "update", "Updated category: "+category.Name)
	c.JSON(http.StatusOK, category)
}
