package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// RootMemberCode identifies the single parentless member at the top of the
	// referral tree. Injected here rather than hard-coded in tree logic.
	RootMemberCode string

	// Reward conversion rates, in currency units.
	PointRate decimal.Decimal
	CoinRate  decimal.Decimal
	CoinValue int64

	// DistributionRates maps distance-from-purchaser (1-indexed) to the share
	// of earned coins an ancestor at that distance receives.
	DistributionRates []decimal.Decimal

	// PersistenceTimeout bounds every storage call issued on behalf of a request.
	PersistenceTimeout time.Duration

	OTLPEndpoint string

	RedisAddr     string
	RedisPassword string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
}

// Module provides configuration to the fx graph.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getenv("APP_SERVICE", "loyaltree"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		RootMemberCode:     strings.TrimSpace(getenv("ROOT_MEMBER_CODE", "ROOT")),
		PointRate:          getenvDecimal("POINT_RATE", "5"),
		CoinRate:           getenvDecimal("COIN_RATE", "25"),
		CoinValue:          getenvInt64("COIN_VALUE", 5),
		DistributionRates:  getenvRates("DISTRIBUTION_RATES", "0.20,0.10,0.05"),
		PersistenceTimeout: getenvDuration("PERSISTENCE_TIMEOUT", 5*time.Second),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		RedisAddr:          strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "loyaltree"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:      int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime:  int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
	}

	return cfg
}

// MaxDistributionDepth is how far up the ancestor chain a purchase reaches.
func (c Config) MaxDistributionDepth() int {
	return len(c.DistributionRates)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDecimal(key, def string) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return decimal.RequireFromString(def)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil || parsed.Sign() <= 0 {
		return decimal.RequireFromString(def)
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvRates(key, def string) []decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	rates := parseRates(raw)
	if rates == nil {
		rates = parseRates(def)
	}
	return rates
}

func parseRates(raw string) []decimal.Decimal {
	parts := strings.Split(raw, ",")
	rates := make([]decimal.Decimal, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rate, err := decimal.NewFromString(p)
		if err != nil || rate.Sign() < 0 {
			return nil
		}
		rates = append(rates, rate)
	}
	if len(rates) == 0 {
		return nil
	}
	return rates
}
