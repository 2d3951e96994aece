package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"task-progression-system/handlers"
	"task-progression-system/middleware"
	"task-progression-system/models"
	"task-progression-system/services"
	"task-progression-system/utils"
	"task-progression-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // evidence uploads
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	r2Enabled, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !r2Enabled {
		log.Println("⚠️  R2 not configured — evidence files stored on local disk")
		if err := utils.EnsureUploadDir(); err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserProgression{},
		&models.UserBadge{},
		&models.OnboardingJourney{},
		&models.QuestInstance{},
		&models.XPRequest{},
		&models.MemberUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	serviceToken := os.Getenv("PROGRESSION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("PROGRESSION_SERVICE_TOKEN environment variable not set")
	}

	var notifier services.Notifier = services.NopNotifier{}
	if notifyURL := os.Getenv("NOTIFY_SERVICE_URL"); notifyURL != "" {
		notifier = services.NewHTTPNotifier(notifyURL, serviceToken)
	} else {
		log.Println("⚠️  NOTIFY_SERVICE_URL not set — notifications disabled")
	}

	identity := services.NewMemberIdentityService(db)
	progressionService := services.NewProgressionService(db, notifier)
	badgeService := services.NewBadgeService(db, progressionService, identity, notifier)
	onboardingService := services.NewOnboardingService(db, progressionService, badgeService, identity, notifier)
	xpRequestService := services.NewXPRequestService(db, progressionService, identity, notifier)

	identityServiceURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityServiceURL == "" {
		log.Fatal("IDENTITY_SERVICE_URL environment variable not set")
	}

	syncWorker := workers.NewMemberSyncWorker(db, identityServiceURL, "/api/v1/public/members", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("Starting Member Sync Worker...")
		syncWorker.Start(ctx)
	}()

	xpRequestService.StartReminderScheduler()

	// ✅ Routes — enforced Gateway auth + user context on secured groups
	handlers.SetupProgressionRoutes(app, progressionService, badgeService)
	handlers.SetupOnboardingRoutes(app, onboardingService)
	handlers.SetupXPRequestRoutes(app, xpRequestService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Member Sync Worker running")
	log.Println("✅ Stale XP-request reminder scheduler running (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
