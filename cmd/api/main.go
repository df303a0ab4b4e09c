package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/coursekit/storefront/configs"
	"github.com/coursekit/storefront/database"
	"github.com/coursekit/storefront/handlers"
	"github.com/coursekit/storefront/jobs"
	"github.com/coursekit/storefront/notifications"
	"github.com/coursekit/storefront/payments"
	"github.com/coursekit/storefront/routes"
	"github.com/coursekit/storefront/services"
)

func main() {
	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("🔥 Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if cfg.SeedDemo {
		database.SeedDemo(db)
	}

	mailer := notifications.NewEmailService(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName)

	signer := payments.NewSigner(cfg.GatewaySecret, cfg.SandboxOrderPrefix)
	gateway := payments.NewGateway(
		cfg.GatewayAPIKey,
		cfg.GatewayCheckoutURL,
		cfg.GatewayCurrency,
		cfg.CallbackBaseURL+"/api/v1/payments/callback",
		signer,
	)

	courseService := services.NewCourseService(db)
	orderService := services.NewOrderService(db)
	discountService := services.NewDiscountService(db)
	referralService := services.NewReferralService(db)
	enrollmentService := services.NewEnrollmentService(db)

	checkoutHandler := handlers.NewCheckoutHandler(cfg, courseService, orderService, discountService, referralService, enrollmentService, gateway, mailer)
	paymentHandler := handlers.NewPaymentHandler(cfg, orderService, courseService, enrollmentService, referralService, mailer, signer)
	courseHandler := handlers.NewCourseHandler(courseService)
	orderHandler := handlers.NewOrderHandler(orderService)

	c := cron.New()
	sweep := jobs.NewStaleOrderSweep(db, cfg.StalePendingAfter)
	c.AddFunc("*/10 * * * *", sweep.Run)
	go c.Start()
	log.Println("✅ Cron job for stale pending orders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Course Storefront",
		CaseSensitive:     true,
		StrictRouting:     false,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to the Course Storefront API",
		})
	})

	routes.PublicRoutes(app, courseHandler)
	routes.CheckoutRoutes(app, checkoutHandler, cfg.JWTSecret)
	routes.PaymentRoutes(app, paymentHandler)
	routes.OrderRoutes(app, orderHandler, cfg.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
