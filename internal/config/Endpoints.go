package config

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Web server configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the listen port for the HTTP API and dashboard.
	WebPort string
	// WebAPIKey is the bearer token required by mutating endpoints.
	// If empty, mutating endpoints are disabled rather than left open.
	WebAPIKey string
)

// loadServerConfig loads web server configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadServerConfig() error {
	log.Info().Msg("Loading web server configuration from environment variables...")

	var err error

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	// Optional, see WebAPIKey docs.
	WebAPIKey = os.Getenv("WEB_API_KEY")

	log.Debug().
		Str("WebPort", WebPort).
		Bool("APIKeySet", WebAPIKey != "").
		Msg("Web server configuration loaded successfully.")

	return nil
}
