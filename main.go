package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yourusername/lancerpay/config"
	"github.com/yourusername/lancerpay/handlers"
	"github.com/yourusername/lancerpay/middleware"
	"github.com/yourusername/lancerpay/services"
	"github.com/yourusername/lancerpay/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	platform, err := config.LoadPlatformConfig(cfg.PlatformConfigPath)
	if err != nil {
		log.Fatalf("Failed to load platform config: %v", err)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Shared rate-limit counters
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	// Event bus for webhook envelopes
	var publisher services.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	notifier := services.NewNotifier(db, platform.WebhookSubscribers, publisher, services.LogEmailSender{})
	auditor := services.NewAuditor(db, cfg.AuditSigningSecret)
	referrals := services.NewReferralEngine(db)
	savings := services.NewSavingsService(db)
	rail := utils.NewStellarRail(cfg.HorizonURL, cfg.NetworkPassphrase, cfg.PayoutSourceSecret, cfg.USDCIssuer)
	orchestrator := services.NewOrchestrator(db, referrals, savings, rail, notifier, auditor)
	escrow := services.NewEscrowService(db, notifier, auditor)
	disputes := services.NewDisputeService(db, notifier, auditor, platform.AdminEmails)

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "lancerpay-api",
		})
	})

	authHandler := handlers.NewAuthHandler(db, cfg)
	invoiceHandler := handlers.NewInvoiceHandler(db, orchestrator, notifier, auditor)
	escrowHandler := handlers.NewEscrowHandler(escrow)
	disputeHandler := handlers.NewDisputeHandler(disputes)
	savingsHandler := handlers.NewSavingsHandler(savings)
	referralHandler := handlers.NewReferralHandler(referrals)

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.JwtAuthMiddleware(cfg))
	{
		// Invoice endpoints
		protected.POST("/invoices", invoiceHandler.CreateInvoice)
		protected.GET("/invoices", invoiceHandler.ListInvoices)
		protected.GET("/invoices/:id", invoiceHandler.GetInvoice)
		protected.POST("/invoices/:id/cancel", invoiceHandler.CancelInvoice)
		protected.POST("/invoices/:id/pay", middleware.RateLimit(rdb, 10, time.Minute), invoiceHandler.PayInvoice)
		protected.GET("/invoices/:id/audit", invoiceHandler.GetAuditTrail)

		// Escrow endpoints
		protected.POST("/invoices/:id/escrow", escrowHandler.EnableEscrow)
		protected.GET("/invoices/:id/escrow", escrowHandler.GetEscrowStatus)
		protected.POST("/invoices/:id/escrow/release", escrowHandler.ReleaseEscrow)
		protected.POST("/invoices/:id/escrow/dispute", escrowHandler.DisputeEscrow)

		// Dispute endpoints
		protected.POST("/disputes", middleware.RateLimit(rdb, 5, time.Minute), disputeHandler.CreateDispute)
		protected.GET("/disputes", disputeHandler.ListDisputes)
		protected.GET("/disputes/:id", disputeHandler.GetDispute)
		protected.POST("/disputes/:id/messages", disputeHandler.AddMessage)
		protected.POST("/disputes/:id/resolve", disputeHandler.ResolveDispute)

		// Savings goal endpoints
		protected.POST("/savings/goals", savingsHandler.CreateGoal)
		protected.GET("/savings/goals", savingsHandler.ListGoals)
		protected.PUT("/savings/goals/:id", savingsHandler.UpdateGoal)
		protected.POST("/savings/goals/:id/release", savingsHandler.ReleaseGoal)
		protected.DELETE("/savings/goals/:id", savingsHandler.DeleteGoal)

		// Referral endpoints
		protected.GET("/referrals/earnings", referralHandler.ListEarnings)
	}

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting LancerPay API server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
