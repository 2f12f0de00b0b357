package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/config"
	"github.com/yourusername/lancerpay/models"
	"github.com/yourusername/lancerpay/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// asUser mimics the JWT middleware for a fixed identity.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", user.ID)
		c.Set("email", user.Email)
		c.Set("role", user.Role)
		c.Next()
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "x",
		Role:         "user",
		ReferralCode: "REF-" + email,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return &user
}

func newTestServices(db *gorm.DB) (*services.Orchestrator, *services.Notifier, *services.Auditor) {
	notifier := services.NewNotifier(db, nil, nil, services.LogEmailSender{})
	auditor := services.NewAuditor(db, "audit-secret")
	orchestrator := services.NewOrchestrator(db,
		services.NewReferralEngine(db), services.NewSavingsService(db), nil, notifier, auditor)
	return orchestrator, notifier, auditor
}
