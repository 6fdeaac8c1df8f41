package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	APIPrefix            string        `mapstructure:"API_PREFIX"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	DBQueryTimeout       time.Duration `mapstructure:"DB_QUERY_TIMEOUT"`
	JWTSecretKey         string        `mapstructure:"JWT_SECRET_KEY"`
	JWTRefreshSecretKey  string        `mapstructure:"JWT_REFRESH_SECRET_KEY"`
	JWTExpiration        time.Duration `mapstructure:"JWT_EXPIRATION"`
	JWTRefreshExpiration time.Duration `mapstructure:"JWT_REFRESH_EXPIRATION"`
	BcryptCost           int           `mapstructure:"BCRYPT_COST"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	InitialClaimStatus   string        `mapstructure:"INITIAL_CLAIM_STATUS"`
	StorageBackend       string        `mapstructure:"STORAGE_BACKEND"`
	UploadDir            string        `mapstructure:"UPLOAD_DIR"`
	S3Bucket             string        `mapstructure:"S3_BUCKET"`
	AWSRegion            string        `mapstructure:"AWS_REGION"`
	AWSEndpointURL       string        `mapstructure:"AWS_ENDPOINT_URL"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// development-only fallbacks so a fresh checkout can boot without secrets.
const (
	devJWTSecret        = "dev-access-secret-change-me"
	devJWTRefreshSecret = "dev-refresh-secret-change-me"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("API_PREFIX", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_REFRESH_EXPIRATION", "168h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("INITIAL_CLAIM_STATUS", "Admitted")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "API_PREFIX",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_QUERY_TIMEOUT",
		"JWT_SECRET_KEY", "JWT_REFRESH_SECRET_KEY", "JWT_EXPIRATION", "JWT_REFRESH_EXPIRATION",
		"BCRYPT_COST", "CORS_ORIGINS", "INITIAL_CLAIM_STATUS",
		"STORAGE_BACKEND", "UPLOAD_DIR", "S3_BUCKET", "AWS_REGION", "AWS_ENDPOINT_URL",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		if cfg.JWTSecretKey == "" {
			cfg.JWTSecretKey = devJWTSecret
		}
		if cfg.JWTRefreshSecretKey == "" {
			cfg.JWTRefreshSecretKey = devJWTRefreshSecret
		}
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); unset JWT secrets fall back to built-in values.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.JWTRefreshSecretKey == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET_KEY is required")
	}
	if c.JWTSecretKey == c.JWTRefreshSecretKey {
		return fmt.Errorf("JWT_SECRET_KEY and JWT_REFRESH_SECRET_KEY must differ")
	}
	if c.JWTExpiration <= 0 || c.JWTRefreshExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION and JWT_REFRESH_EXPIRATION must be positive durations")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	switch c.InitialClaimStatus {
	case "Admitted", "In Review":
	default:
		return fmt.Errorf("INITIAL_CLAIM_STATUS must be \"Admitted\" or \"In Review\", got %q", c.InitialClaimStatus)
	}

	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when STORAGE_BACKEND is \"local\"")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"local\" or \"s3\", got %q", c.StorageBackend)
	}

	if c.DBQueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive")
	}

	return nil
}
