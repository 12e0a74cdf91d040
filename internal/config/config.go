// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Log         LogConfig
	Settlement  SettlementConfig
	Pricing     PricingConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Bootstrap   BootstrapConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	AllowOrigins []string
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	Path         string // sqlite file, ":memory:" for tests
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type LogConfig struct {
	Level  string
	Format string
}

type SettlementConfig struct {
	DefaultSubBatchCount int
	SplitTwo             []int
	SplitThree           []int

	TriggerPct              int
	TriggerPctSecondOfThree int

	DirectSplitSellerPct  int
	CascadeSplitSellerPct int

	RecruiterMaxDepth int
	RootSellerID      string

	ScanInterval time.Duration
	AutoCreate   bool
	MaxRetries   int

	RewardsContributionPct float64
}

// PricingConfig seeds the cost-config row on first start.
type PricingConfig struct {
	RealCostRatio            float64
	FinancierInvestmentShare float64
	StandardUnitPrice        float64
	PromoPairPrice           float64
	NoExtraUnitPrice         float64
	GiftQuotaPct             float64
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	SummaryTopic    string
	RewardsTopic    string
	SettlementTopic string
	WriteTimeout    time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type BootstrapConfig struct {
	AdminUsername  string
	AdminPassword  string
	RootSellerName string
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowOrigins: getEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "batch_settlement"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			Path:         getEnv("DB_PATH", "batch_settlement.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 12),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Settlement: SettlementConfig{
			DefaultSubBatchCount:    getEnvAsInt("SUB_BATCH_COUNT", 3),
			SplitTwo:                getEnvAsIntSlice("SUB_BATCH_SPLIT_TWO", []int{50, 50}),
			SplitThree:              getEnvAsIntSlice("SUB_BATCH_SPLIT_THREE", []int{40, 30, 30}),
			TriggerPct:              getEnvAsInt("SETTLEMENT_TRIGGER_PCT", 20),
			TriggerPctSecondOfThree: getEnvAsInt("SETTLEMENT_TRIGGER_PCT_SECOND_OF_THREE", 10),
			DirectSplitSellerPct:    getEnvAsInt("DIRECT_SPLIT_SELLER_PCT", 60),
			CascadeSplitSellerPct:   getEnvAsInt("CASCADE_SPLIT_SELLER_PCT", 50),
			RecruiterMaxDepth:       getEnvAsInt("RECRUITER_MAX_DEPTH", 10),
			RootSellerID:            getEnv("ROOT_SELLER_ID", ""),
			ScanInterval:            getEnvAsDuration("SETTLEMENT_SCAN_INTERVAL", 5*time.Minute),
			AutoCreate:              getEnvAsBool("SETTLEMENT_AUTO_CREATE", true),
			MaxRetries:              getEnvAsInt("SETTLEMENT_MAX_RETRIES", 3),
			RewardsContributionPct:  getEnvAsFloat("REWARDS_CONTRIBUTION_PCT", 5.0),
		},
		Pricing: PricingConfig{
			RealCostRatio:            getEnvAsFloat("PRICING_REAL_COST_RATIO", 0.5),
			FinancierInvestmentShare: getEnvAsFloat("PRICING_FINANCIER_SHARE", 0.5),
			StandardUnitPrice:        getEnvAsFloat("PRICING_STANDARD_UNIT_PRICE", 2400),
			PromoPairPrice:           getEnvAsFloat("PRICING_PROMO_PAIR_PRICE", 4000),
			NoExtraUnitPrice:         getEnvAsFloat("PRICING_NO_EXTRA_UNIT_PRICE", 2000),
			GiftQuotaPct:             getEnvAsFloat("PRICING_GIFT_QUOTA_PCT", 8),
		},
		Kafka: KafkaConfig{
			Enabled:         getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:         getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			SummaryTopic:    getEnv("KAFKA_SUMMARY_TOPIC", "settlement.summaries"),
			RewardsTopic:    getEnv("KAFKA_REWARDS_TOPIC", "rewards.contributions"),
			SettlementTopic: getEnv("KAFKA_SETTLEMENT_TOPIC", "settlement.events"),
			WriteTimeout:    getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:  getEnv("ADMIN_PASSWORD", "change-me-now"),
			RootSellerName: getEnv("ROOT_SELLER_NAME", "Organizer"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Settlement.DefaultSubBatchCount != 2 && c.Settlement.DefaultSubBatchCount != 3 {
		return fmt.Errorf("sub-batch count must be 2 or 3, got %d", c.Settlement.DefaultSubBatchCount)
	}

	if len(c.Settlement.SplitTwo) != 2 || len(c.Settlement.SplitThree) != 3 {
		return fmt.Errorf("sub-batch split percentages must list 2 and 3 values")
	}

	for _, pct := range []int{c.Settlement.TriggerPct, c.Settlement.TriggerPctSecondOfThree,
		c.Settlement.DirectSplitSellerPct, c.Settlement.CascadeSplitSellerPct} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("percentage out of range: %d", pct)
		}
	}

	return nil
}

// SplitFor returns the configured partition percentages for a sub-batch count.
func (s SettlementConfig) SplitFor(count int) ([]int, bool) {
	switch count {
	case 2:
		return s.SplitTwo, true
	case 3:
		return s.SplitThree, true
	}
	return nil, false
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	parts := getEnvAsSlice(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
