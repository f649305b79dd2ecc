// Package config resolves the engine's runtime configuration once at
// startup. Trading defaults (commission, target profit, sale limits) are
// carried as an explicit value object passed into the services, never
// re-read mid-calculation.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Trading holds the per-day trading defaults.
type Trading struct {
	// CommissionPct is the platform commission as a fraction (0.0035 = 0.35%).
	CommissionPct decimal.Decimal

	// TargetProfitPct is the default net profit target as a fraction
	// (0.02 = 2%).
	TargetProfitPct decimal.Decimal

	// MinSalesPerDay is the soft per-day sale target (dashboard hint).
	MinSalesPerDay int

	// MaxSalesPerDay is the hard per-day sale cap. Zero disables it.
	MaxSalesPerDay int
}

// Config holds all configuration for the engine.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	Trading Trading
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	commission, err := getEnvDecimal("COMMISSION_PCT", "0.0035")
	if err != nil {
		return nil, err
	}
	target, err := getEnvDecimal("TARGET_PROFIT_PCT", "0.02")
	if err != nil {
		return nil, err
	}
	minSales, err := getEnvInt("MIN_SALES_PER_DAY", 5)
	if err != nil {
		return nil, err
	}
	maxSales, err := getEnvInt("MAX_SALES_PER_DAY", 8)
	if err != nil {
		return nil, err
	}

	if commission.IsNegative() || commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("config: COMMISSION_PCT must be in [0, 1), got %s", commission)
	}
	if target.IsNegative() {
		return nil, fmt.Errorf("config: TARGET_PROFIT_PCT must not be negative, got %s", target)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Trading: Trading{
			CommissionPct:   commission,
			TargetProfitPct: target,
			MinSalesPerDay:  minSales,
			MaxSalesPerDay:  maxSales,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	raw := getEnv(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s=%q is not a number: %w", key, raw, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer: %w", key, raw, err)
	}
	return n, nil
}
