package config

import (
	"os"
	"strconv"
)

const (
	defaultUsername       = "admin"
	defaultPassword       = "changeme"
	defaultMaxImportBytes = 128 * 1024
)

type Config struct {
	Port       string
	DBPath     string
	FaviconDir string
	// Basic Auth credentials. PasswordHash is an optional bcrypt hash;
	// when set it takes precedence over the plaintext Password.
	Username     string
	Password     string
	PasswordHash string
	// Upload size cap for import documents, in bytes
	MaxImportBytes int64
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("BOOKMARKS_DB_PATH", "bookmarks.db"),
		FaviconDir:     getEnv("BOOKMARKS_FAVICON_DIR", "favicons"),
		Username:       getEnv("BOOKMARKS_USERNAME", defaultUsername),
		Password:       getEnv("BOOKMARKS_PASSWORD", defaultPassword),
		PasswordHash:   getEnv("BOOKMARKS_PASSWORD_HASH", ""),
		MaxImportBytes: getEnvInt64("BOOKMARKS_MAX_IMPORT_BYTES", defaultMaxImportBytes),
	}
}

// UsingDefaultCredentials reports whether the server would accept the
// shipped admin/changeme pair, so startup can warn about it.
func (c *Config) UsingDefaultCredentials() bool {
	return c.Username == defaultUsername && c.Password == defaultPassword && c.PasswordHash == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
