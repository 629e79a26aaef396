// Package config reads the server's startup configuration from the
// environment rather than a flags- or file-based config library: the
// settings here are a small, flat set that doesn't warrant one.
package config

import (
	"log"
	"os"
)

// Config holds the server's startup configuration.
type Config struct {
	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string
	// Port is the HTTP listen port. Required.
	Port string
	// LogLevel controls verbosity. Defaults to "info".
	LogLevel string
	// TrustRootPath points to a PEM file of certificates trusted as
	// roots when verifying an incoming SignedObject. Required — a server
	// with no trust roots configured can never accept an object.
	TrustRootPath string
	// AdminToken, if set, gates every write endpoint behind a bearer
	// token — deployment-level defense in depth, independent of and in
	// addition to per-object signature verification.
	AdminToken string
	// ScannedLabelSkipVerify disables the scanned-mailing-label
	// signature-presence check, for environments whose label scanners
	// don't yet sign their output.
	ScannedLabelSkipVerify bool
}

// Load reads Config from the environment, exiting the process if a
// required variable is missing.
func Load() Config {
	return Config{
		DatabaseURL:            requireEnv("DATABASE_URL"),
		Port:                   requireEnv("PORT"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		TrustRootPath:          requireEnv("TRUST_ROOT_PATH"),
		AdminToken:             os.Getenv("ADMIN_TOKEN"),
		ScannedLabelSkipVerify: os.Getenv("SCANNED_LABEL_SKIP_VERIFY") == "true",
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
