package database

import "minrisk/internal/models"

// helper for writing the audit trail; failures never block the caller
func CreateAuditLog(orgID, userID uint, entity string, entityID uint, action, details string) {
	if DB == nil {
		return
	}
	record := models.AuditLog{
		OrganizationID: orgID,
		UserID:         userID,
		Entity:         entity,
		EntityID:       entityID,
		Action:         action,
		Details:        details,
	}
	_ = DB.Create(&record).Error
}
