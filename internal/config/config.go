package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Config holds application configuration values.
type Config struct {
	Secret       string
	DatabaseDSN  string
	HTTPPort     string
	MediaDir     string
	BreedCatalog string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load(log *zap.Logger) Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:gaayatri.db?_pragma=foreign_keys(1)"
	}

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = "media"
	}

	catalog := os.Getenv("BREED_CATALOG")
	if catalog == "" {
		catalog = "assets/breeds.csv"
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Warn("invalid HTTP_PORT value, defaulting to 8080", zap.String("value", port))
		port = "8080"
	}

	return Config{
		Secret:       secret,
		DatabaseDSN:  dsn,
		HTTPPort:     port,
		MediaDir:     mediaDir,
		BreedCatalog: catalog,
	}
}
