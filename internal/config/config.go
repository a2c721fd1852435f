package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

// Config holds the application configuration. There are no fallback values
// for secrets: a deployment that forgets DATABASE_URL or JWT_SECRET must not
// start.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	Port        string `mapstructure:"PORT"`
	UploadsRoot string `mapstructure:"UPLOADS_ROOT"`
	// MaxUploadMB bounds a single multipart upload (game bundle + images).
	MaxUploadMB int64 `mapstructure:"MAX_UPLOAD_MB"`

	EmailEnabled bool   `mapstructure:"EMAIL_ENABLED"`
	EmailAPIKey  string `mapstructure:"EMAIL_API_KEY"`
	EmailAPIURL  string `mapstructure:"EMAIL_API_URL"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	MailFromName string `mapstructure:"MAIL_FROM_NAME"`

	// ClientURL is used in password-reset links sent by mail.
	ClientURL string `mapstructure:"CLIENT_URL"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment
// variables, then validates it. Fatal on any missing required value.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("UPLOADS_ROOT", "uploads")
	viper.SetDefault("MAX_UPLOAD_MB", 500)
	viper.SetDefault("EMAIL_API_URL", "https://api.brevo.com/v3/smtp/email")
	viper.SetDefault("MAIL_FROM", "no-reply@gpx.local")
	viper.SetDefault("MAIL_FROM_NAME", "GPX")
	viper.SetDefault("CLIENT_URL", "http://localhost:5173")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config into struct, %v", err)
	}

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.EmailEnabled && c.EmailAPIKey == "" {
		return errors.New("EMAIL_API_KEY is required when EMAIL_ENABLED=true")
	}
	return nil
}
