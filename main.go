package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bix-reward-engine/handlers"
	"bix-reward-engine/middleware"
	"bix-reward-engine/models"
	"bix-reward-engine/services"
	"bix-reward-engine/workers"

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
		BodyLimit: 1 * 1024 * 1024, // 1MB, action payloads are small
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
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-User-ID, X-User-Roles, X-Device-Hash, X-Forwarded-For",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.CodeWindow{},
		&models.Redemption{},
		&models.AbuseFlag{},
		&models.ReferralHistory{},
		&models.ReferralCommission{},
		&models.QuizQuestion{},
		&models.QuizSession{},
		&models.Transaction{},
		&models.RewardLog{},
		&models.PendingReward{},
		&models.PlatformMetric{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	limiter := services.NewRateLimiter()
	ledgerService := services.NewLedgerService(db)
	guardService := services.NewGuardService(db)
	referralService := services.NewReferralService(db, guardService, ledgerService)
	codeService := services.NewCodeService(db, guardService, ledgerService, referralService, limiter)
	taskService := services.NewTaskService(db, ledgerService, referralService)
	quizService := services.NewQuizService(db, ledgerService, referralService)
	gameService := services.NewGameService(db, ledgerService)
	pendingService := services.NewPendingService(db, ledgerService)
	adminService := services.NewAdminService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pendingService.StartCommissionScheduler()
	go workers.RunHousekeeping(ctx, db, 1*time.Minute)

	handlers.SetupEngineRoutes(app, &handlers.EngineDeps{
		Limiter:   limiter,
		Ledger:    ledgerService,
		Codes:     codeService,
		Referrals: referralService,
		Tasks:     taskService,
		Quiz:      quizService,
		Games:     gameService,
		Pending:   pendingService,
		Admin:     adminService,
	})

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Reward engine running on http://localhost:5300")
	log.Println("✅ Commission scheduler running (every 5m)")
	log.Println("✅ Housekeeping loop running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
