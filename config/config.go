package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/yourusername/lancerpay/models"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	JWTRefreshSecret   string
	AuditSigningSecret string
	HorizonURL         string
	NetworkPassphrase  string
	PayoutSourceSecret string
	USDCIssuer         string
	RedisAddr          string
	KafkaBrokers       []string
	KafkaTopic         string
	PlatformConfigPath string
}

// WebhookSubscriber is one endpoint that receives signed event payloads.
type WebhookSubscriber struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// PlatformConfig holds operator-maintained settings that don't fit env vars:
// the admin allowlist for dispute oversight and the webhook subscriber list.
type PlatformConfig struct {
	AdminEmails        []string            `yaml:"admin_emails"`
	WebhookSubscribers []WebhookSubscriber `yaml:"webhook_subscribers"`
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:               os.Getenv("PORT"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTRefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		AuditSigningSecret: os.Getenv("AUDIT_SIGNING_SECRET"),
		HorizonURL:         getEnvOrDefault("HORIZON_URL", "https://horizon-testnet.stellar.org"),
		NetworkPassphrase:  getEnvOrDefault("NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
		PayoutSourceSecret: os.Getenv("PAYOUT_SOURCE_SECRET"),
		USDCIssuer:         os.Getenv("USDC_ISSUER"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		KafkaTopic:         getEnvOrDefault("KAFKA_TOPIC", "lancerpay.webhooks"),
		PlatformConfigPath: getEnvOrDefault("PLATFORM_CONFIG", "platform.yaml"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AuditSigningSecret == "" {
		return nil, fmt.Errorf("AUDIT_SIGNING_SECRET is required")
	}

	return cfg, nil
}

// LoadPlatformConfig reads the YAML admin allowlist / subscriber list. A
// missing file is not an error; it just means no admins and no subscribers.
func LoadPlatformConfig(path string) (*PlatformConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PlatformConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read platform config: %w", err)
	}

	var pc PlatformConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse platform config: %w", err)
	}

	return &pc, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Migrate runs AutoMigrate for every entity. Shared with the test harness.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Invoice{},
		&models.Transaction{},
		&models.EscrowEvent{},
		&models.Dispute{},
		&models.DisputeMessage{},
		&models.SavingsGoal{},
		&models.SavingsAllocation{},
		&models.ReferralEarning{},
		&models.AuditEvent{},
		&models.WebhookEvent{},
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
