package configs

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        string `env:"PORT" envDefault:"8080"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// Payment gateway credentials. Checkout initiation refuses to run
	// without both of these; there is no fallback.
	GatewaySecret      string `env:"GATEWAY_HMAC_SECRET"`
	GatewayAPIKey      string `env:"GATEWAY_API_KEY"`
	GatewayCheckoutURL string `env:"GATEWAY_CHECKOUT_URL" envDefault:"https://checkout.sahalpay.example/hosted"`
	GatewayCurrency    string `env:"GATEWAY_CURRENCY" envDefault:"USD"`

	// Order ids carrying this prefix skip signature verification. Only
	// meaningful with sandbox credentials; leave empty in production.
	SandboxOrderPrefix string `env:"GATEWAY_SANDBOX_PREFIX"`

	CallbackBaseURL string `env:"CALLBACK_BASE_URL" envDefault:"http://localhost:8080"`
	FrontendBaseURL string `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:3000"`

	BrevoAPIKey     string `env:"BREVO_API_KEY"`
	EmailSender     string `env:"EMAIL_SENDER"`
	EmailSenderName string `env:"EMAIL_SENDER_NAME"`

	SeedDemo          bool          `env:"SEED_DEMO" envDefault:"false"`
	StalePendingAfter time.Duration `env:"STALE_PENDING_AFTER" envDefault:"24h"`
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// GatewayConfigured reports whether both gateway credentials are present.
func (c *AppConfig) GatewayConfigured() bool {
	return c.GatewaySecret != "" && c.GatewayAPIKey != ""
}
