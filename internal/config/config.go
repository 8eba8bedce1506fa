// Package config loads the scorer service's runtime configuration from the
// environment, following the env-var-only convention the rest of this
// lineage of services uses (no config files, no flags).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ChainConfig is the per-chain indexer configuration block addressed by the
// INDEXER_<CHAIN>_* environment variables.
type ChainConfig struct {
	Name               string
	ChainID            int64
	RPCURL             string
	StartBlock         uint64
	StakingContract    string
	EASContract        string
	EASSchemaUID       string
	HumanIDContract    string
}

// Config holds all configuration for the scorer service.
type Config struct {
	// Server
	Port int

	// Database
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Auth
	JWTSecret  string
	DemoAPIKey string

	// Scoring
	CeramicCacheScorerID int

	// Human points program
	HumanPointsEnabled          bool
	HumanPointsWriteEnabled     bool
	HumanPointsStartTimestamp   time.Time
	HumanPointsMTAEnabled       bool

	// Indexer, one block per configured chain name
	Chains []ChainConfig

	LogLevel string
}

// Load reads configuration from environment variables. It mirrors
// DATABASE_URL/RDS_PROXY_URL and JWT_SECRET/SECRET_KEY fallbacks from
// spec.md §6 verbatim.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = getEnv("RDS_PROXY_URL", "")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		jwtSecret = getEnv("SECRET_KEY", "")
	}

	cfg := &Config{
		Port: getEnvInt("PORT", 3000),

		DatabaseURL:         dbURL,
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 5),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 1),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		JWTSecret:  jwtSecret,
		DemoAPIKey: getEnv("DEMO_API_KEY", ""),

		CeramicCacheScorerID: getEnvInt("CERAMIC_CACHE_SCORER_ID", 335),

		HumanPointsEnabled:        getEnvBool("HUMAN_POINTS_ENABLED", false),
		HumanPointsWriteEnabled:   getEnvBool("HUMAN_POINTS_WRITE_ENABLED", false),
		HumanPointsStartTimestamp: getEnvUnixTime("HUMAN_POINTS_START_TIMESTAMP", time.Unix(0, 0)),
		HumanPointsMTAEnabled:     getEnvBool("HUMAN_POINTS_MTA_ENABLED", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	cfg.Chains = loadChainConfigs()

	return cfg, nil
}

// loadChainConfigs discovers per-chain blocks by scanning for any
// INDEXER_<CHAIN>_RPC_URL variable and reading its siblings.
func loadChainConfigs() []ChainConfig {
	seen := map[string]bool{}
	var chains []ChainConfig

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := parts[0]
		if !strings.HasPrefix(key, "INDEXER_") || !strings.HasSuffix(key, "_RPC_URL") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "INDEXER_"), "_RPC_URL")
		if seen[name] {
			continue
		}
		seen[name] = true

		prefix := "INDEXER_" + name + "_"
		chains = append(chains, ChainConfig{
			Name:            strings.ToLower(name),
			ChainID:         int64(getEnvInt(prefix+"CHAIN_ID", 0)),
			RPCURL:          getEnv(prefix+"RPC_URL", ""),
			StartBlock:      uint64(getEnvInt(prefix+"START_BLOCK", 0)),
			StakingContract: getEnv(prefix+"STAKING_CONTRACT", ""),
			EASContract:     getEnv(prefix+"EAS_CONTRACT", ""),
			EASSchemaUID:    getEnv(prefix+"EAS_SCHEMA_UID", ""),
			HumanIDContract: getEnv(prefix+"HUMAN_ID_CONTRACT", ""),
		})
	}

	return chains
}

// Validate checks that the configuration required to serve the scoring API
// is present.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL (or RDS_PROXY_URL) is required but not set")
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET (or SECRET_KEY) is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development: only DATABASE_URL is required, and an unset JWT secret is
// accepted.
func (c *Config) ValidateForDevelopment() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("development configuration validation failed:\n  - DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvUnixTime(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Unix(intValue, 0).UTC()
		}
	}
	return defaultValue
}
