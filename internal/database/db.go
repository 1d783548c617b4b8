package database

import (
	"log"
	"os"
	"time"

	"minrisk/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

const defaultOrgName = "Demo Risk Co"

func Init(dsn string) {
	var err error

	const maxAttempts = 10
	for i := 1; i <= maxAttempts; i++ {
		log.Printf("trying to connect to DB (attempt %d/%d)...", i, maxAttempts)

		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			log.Println("connected to DB successfully")
			break
		}

		log.Printf("failed to connect to DB: %v", err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("failed to connect to db after %d attempts: %v", maxAttempts, err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	// fresh installs get a demo tenant, an admin and a few demo accounts
	seedDefaultOrganization()
	createDefaultAdmin()
	seedDefaultUsers()
	seedDefaultCategories()
}

// Migrate runs the schema migration for every model. Tests reuse it
// against their own database handles.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.AppetiteCategory{},
		&models.Risk{},
		&models.Control{},
		&models.RiskControl{},
		&models.Indicator{},
		&models.Observation{},
		&models.ToleranceMetric{},
		&models.CoverageLink{},
		&models.Breach{},
		&models.ThresholdOverride{},
		&models.Alert{},
		&models.AuditLog{},
	)
}

func seedDefaultOrganization() {
	var count int64
	if err := DB.Model(&models.Organization{}).Count(&count).Error; err != nil {
		log.Printf("failed to check organizations: %v", err)
		return
	}
	if count > 0 {
		return
	}

	org := models.Organization{
		Name:         defaultOrgName,
		Industry:     "financial services",
		ContactName:  "Risk Office",
		ContactEmail: "risk@minrisk.local",
	}
	if err := DB.Create(&org).Error; err != nil {
		log.Printf("failed to create default organization: %v", err)
		return
	}

	log.Printf("created default organization: %s", org.Name)
}

// admin only from code/config
func createDefaultAdmin() {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin@minrisk.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	var count int64
	if err := DB.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		log.Printf("failed to check admin user: %v", err)
		return
	}
	if count > 0 {
		// admin already exists, nothing to do
		return
	}

	var org models.Organization
	if err := DB.Order("id").First(&org).Error; err != nil {
		log.Printf("failed to find default organization: %v", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("failed to hash default admin password: %v", err)
		return
	}

	admin := models.User{
		OrganizationID: org.ID,
		Username:       username,
		PasswordHash:   string(hash),
		Role:           models.RoleAdmin,
	}

	if err := DB.Create(&admin).Error; err != nil {
		log.Printf("failed to create default admin: %v", err)
		return
	}

	log.Printf("created default admin user: %s (password: %s)", username, password)
}

// demo accounts, one per non-admin role
func seedDefaultUsers() {
	type seedUser struct {
		Username string
		Password string
		Role     models.UserRole
	}

	users := []seedUser{
		{
			Username: "officer@minrisk.local",
			Password: "Officer123!",
			Role:     models.RoleRiskOfficer,
		},
		{
			Username: "analyst@minrisk.local",
			Password: "Analyst123!",
			Role:     models.RoleAnalyst,
		},
		{
			Username: "viewer@minrisk.local",
			Password: "Viewer123!",
			Role:     models.RoleViewer,
		},
	}

	var org models.Organization
	if err := DB.Order("id").First(&org).Error; err != nil {
		log.Printf("failed to find default organization: %v", err)
		return
	}

	for _, u := range users {
		var count int64
		if err := DB.Model(&models.User{}).
			Where("username = ?", u.Username).
			Count(&count).Error; err != nil {
			log.Printf("failed to check seed user %s: %v", u.Username, err)
			continue
		}
		if count > 0 {
			// already there, skip
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("failed to hash password for %s: %v", u.Username, err)
			continue
		}

		user := models.User{
			OrganizationID: org.ID,
			Username:       u.Username,
			PasswordHash:   string(hash),
			Role:           u.Role,
		}

		if err := DB.Create(&user).Error; err != nil {
			log.Printf("failed to create seed user %s: %v", u.Username, err)
			continue
		}

		log.Printf("created seed user: %s (role=%s, password=%s)", u.Username, u.Role, u.Password)
	}
}

// standard appetite categories so new tolerance metrics have a home
func seedDefaultCategories() {
	var org models.Organization
	if err := DB.Order("id").First(&org).Error; err != nil {
		log.Printf("failed to find default organization: %v", err)
		return
	}

	var count int64
	if err := DB.Model(&models.AppetiteCategory{}).
		Where("organization_id = ?", org.ID).
		Count(&count).Error; err != nil {
		log.Printf("failed to check appetite categories: %v", err)
		return
	}
	if count > 0 {
		return
	}

	categories := []models.AppetiteCategory{
		{
			OrganizationID: org.ID,
			Name:           "Operational",
			Appetite:       models.AppetiteLow,
			Statement:      "Minimal tolerance for disruptions to core operations.",
		},
		{
			OrganizationID: org.ID,
			Name:           "Financial",
			Appetite:       models.AppetiteModerate,
			Statement:      "Accept measured exposure in pursuit of returns.",
		},
		{
			OrganizationID: org.ID,
			Name:           "Compliance",
			Appetite:       models.AppetiteZero,
			Statement:      "No appetite for regulatory breaches.",
		},
		{
			OrganizationID: org.ID,
			Name:           "Strategic",
			Appetite:       models.AppetiteHigh,
		},
	}

	for _, c := range categories {
		if err := DB.Create(&c).Error; err != nil {
			log.Printf("failed to create category %s: %v", c.Name, err)
			continue
		}
		log.Printf("created appetite category: %s (appetite=%s)", c.Name, c.Appetite)
	}
}
