package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/yourusername/lancerpay/config"
	"github.com/yourusername/lancerpay/models"
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

	// A single connection keeps every test goroutine on the same in-memory
	// database.
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

func createTestUser(t *testing.T, db *gorm.DB, email string, referredBy *uint) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "x",
		Role:         "user",
		ReferralCode: "REF-" + email,
		ReferredByID: referredBy,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return &user
}

var invoiceSeq atomic.Uint64

func createTestInvoice(t *testing.T, db *gorm.DB, owner *models.User, amount float64, status models.InvoiceStatus) *models.Invoice {
	t.Helper()
	invoice := models.Invoice{
		InvoiceNo:    fmt.Sprintf("INV-TEST-%d", invoiceSeq.Add(1)),
		UserID:       owner.ID,
		ClientEmail:  "client@example.com",
		ClientName:   "Client Co",
		Amount:       amount,
		Currency:     "USDC",
		Status:       status,
		EscrowStatus: models.EscrowStatusNone,
	}
	if err := db.Create(&invoice).Error; err != nil {
		t.Fatalf("failed to create invoice: %v", err)
	}
	return &invoice
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, key string, value []byte) error
	published   [][]byte
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value []byte) error {
	m.published = append(m.published, value)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, key, value)
	}
	return nil
}

type mockEmailSender struct {
	sent []string // recipient addresses, in order
}

func (m *mockEmailSender) Send(to, subject, html string) error {
	m.sent = append(m.sent, to)
	return nil
}

type mockRail struct {
	InitiatePayoutFunc func(destination string, amount float64, currency string) (string, error)
	calls              int
}

func (m *mockRail) InitiatePayout(destination string, amount float64, currency string) (string, error) {
	m.calls++
	if m.InitiatePayoutFunc != nil {
		return m.InitiatePayoutFunc(destination, amount, currency)
	}
	return "mock-tx-hash", nil
}

func newTestNotifier(db *gorm.DB) (*Notifier, *mockPublisher, *mockEmailSender) {
	publisher := &mockPublisher{}
	email := &mockEmailSender{}
	subscribers := []config.WebhookSubscriber{
		{ID: "sub-1", URL: "https://hooks.example.com/1", Secret: "sub-secret-1"},
	}
	return NewNotifier(db, subscribers, publisher, email), publisher, email
}
