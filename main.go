package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sewain/internal/handlers"
	"sewain/internal/middleware"
	"sewain/internal/models"
	"sewain/internal/repositories"
	"sewain/internal/scheduler"
	"sewain/internal/services"
	"sewain/pkg/rabbitmq"
)

// App bundles everything main needs to run and shut down the service.
type App struct {
	Fiber     *fiber.App
	Auth      *services.AuthService
	Scheduler *scheduler.Scheduler
	MQ        *rabbitmq.Client
}

// NewApp wires configuration, database, repositories, services, handlers
// and the expiry sweep scheduler into a runnable application.
func NewApp() (*App, error) {
	// --- Configuration ---
	// Set up Viper to read configuration from environment variables
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "file:sewain.db")
	viper.SetDefault("JWT_SECRET", "dev_only_secret")
	viper.SetDefault("RABBITMQ_URL", "") // empty disables event publishing
	viper.SetDefault("SWEEP_SCHEDULE", "0 * * * * *")
	viper.SetDefault("ADMIN_EMAIL", "")
	viper.SetDefault("ADMIN_PASSWORD", "")
	viper.AutomaticEnv() // Load environment variables

	// --- Database ---
	var dialector gorm.Dialector
	switch driver := viper.GetString("DB_DRIVER"); driver {
	case "postgres":
		dialector = postgres.Open(viper.GetString("DB_DSN"))
	case "sqlite":
		dialector = sqlite.Open(viper.GetString("DB_DSN"))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	if url := viper.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
	} else {
		log.Println("RABBITMQ_URL not set; order events will not be published")
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	// --- Services ---
	productService := services.NewProductService(productRepo)
	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))
	var publisher services.EventPublisher
	if mqClient != nil {
		publisher = mqClient
	}
	orderService := services.NewOrderService(orderRepo, productRepo, publisher)

	seedAdmin(userRepo)

	// --- Handlers ---
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Fiber app and routes ---
	app := fiber.New()
	app.Use(logger.New()) // Request logger

	apiV1 := app.Group("/api/v1")

	// Public routes: registration, login, catalog browsing
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)

	// Authenticated, admin-verified routes
	verified := apiV1.Group("", middleware.AuthRequired(authService), middleware.RequireVerified())
	orderHandler.RegisterRoutes(verified)
	productHandler.RegisterPartnerRoutes(verified)

	// Admin routes
	admin := apiV1.Group("/admin",
		middleware.AuthRequired(authService),
		middleware.RequireVerified(),
		middleware.RequireRole(models.RoleAdmin))
	orderHandler.RegisterAdminRoutes(admin)
	authHandler.RegisterAdminRoutes(admin)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Expiry sweep scheduler ---
	sched, err := scheduler.New(orderService, viper.GetString("SWEEP_SCHEDULE"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &App{
		Fiber:     app,
		Auth:      authService,
		Scheduler: sched,
		MQ:        mqClient,
	}, nil
}

func main() {
	application, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	if application.MQ != nil {
		defer application.MQ.Close() // Ensure the connection is closed on exit
	}

	// --- Start RabbitMQ Consumer in a Goroutine ---
	// Downstream processing of order events (inventory dashboards,
	// notification fan-out) hangs off this consumer.
	if application.MQ != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for order events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received order event %s (tag %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := application.MQ.ConsumeOrderEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start the expiry sweep ---
	application.Scheduler.Start()

	// --- Start HTTP Server ---
	appPort := viper.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := application.Fiber.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	application.Scheduler.Stop()
	if err := application.Fiber.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// seedAdmin bootstraps a verified admin account from the environment so a
// fresh deployment has someone who can verify users. No-op when the
// credentials are unset or the account already exists.
func seedAdmin(userRepo repositories.UserRepository) {
	email := viper.GetString("ADMIN_EMAIL")
	password := viper.GetString("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	if _, err := userRepo.GetByEmail(email); err == nil {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}
	admin := &models.User{
		Name:       "Administrator",
		Email:      email,
		Password:   string(hashed),
		Role:       models.RoleAdmin,
		IsVerified: true,
	}
	if err := userRepo.Create(admin); err != nil {
		log.Printf("Error seeding admin account: %v", err)
	} else {
		log.Printf("Seeded admin account: %s", email)
	}
}
