package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// Backend persistence API for report documents.
	PersistenceURL string
	// AI assist backend.
	AssistURL      string
	AssistTimeout  time.Duration
	MinAssistChars int
	AssistLanguage string
	// Version archive.
	VersionsDir string
	// Search.
	MeiliURL       string
	MeiliMasterKey string
	// Logging.
	LogLevel  string
	LogPretty bool
}

func Load() Config {
	return Config{
		Addr:           getenv("GREENPRINT_ADDR", ":8790"),
		CORSOrigin:     getenv("GREENPRINT_CORS_ORIGIN", "*"),
		PersistenceURL: getenv("GREENPRINT_PERSISTENCE_URL", "http://localhost:3000"),
		AssistURL:      getenv("GREENPRINT_ASSIST_URL", "http://localhost:3000"),
		AssistTimeout:  time.Duration(getenvInt("GREENPRINT_ASSIST_TIMEOUT_SECONDS", 30)) * time.Second,
		MinAssistChars: getenvInt("GREENPRINT_ASSIST_MIN_CHARS", 10),
		AssistLanguage: getenv("GREENPRINT_ASSIST_LANGUAGE", "en"),
		VersionsDir:    getenv("GREENPRINT_VERSIONS_DIR", "./data/versions"),
		MeiliURL:       getenv("MEILI_URL", "http://localhost:7700"),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		LogLevel:       getenv("GREENPRINT_LOG_LEVEL", "info"),
		LogPretty:      getenvBool("GREENPRINT_LOG_PRETTY", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
