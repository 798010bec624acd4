// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
)

const (
	defaultCatalogDir = "./catalogos"
	defaultDBPath     = "./dev.db"
	defaultPort       = "8080"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	CatalogDir string
	DBPath     string
	Port       string
	RulesFile  string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		CatalogDir: os.Getenv("CATALOG_DIR"),
		DBPath:     os.Getenv("DB_PATH"),
		Port:       os.Getenv("PORT"),
		RulesFile:  os.Getenv("RULES_FILE"),
	}

	if cfg.CatalogDir == "" {
		cfg.CatalogDir = defaultCatalogDir
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.RulesFile == "" {
		log.Print("RULES_FILE not set, using built-in validation rules")
	}

	return cfg
}
