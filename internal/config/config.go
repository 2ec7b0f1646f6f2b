package config

import (
	"os"
	"strconv"
)

// Config centralizes runtime settings for the bot.
type Config struct {
	SlackBotToken string
	SlackAppToken string

	DatabaseURL  string
	DocumentsDir string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	DedupeTTLSeconds int

	OpenRouterAPIKey    string
	OpenRouterBaseURL   string
	OpenRouterModel     string
	OpenRouterTimeoutMS int
	OpenRouterSiteURL   string
	AppName             string

	OCREndpoint  string
	OCRAPIKey    string
	OCRTimeoutMS int

	ChatRateRPS   float64
	ChatRateBurst int

	BrandLogoPath string
}

func Load() Config {
	return Config{
		SlackBotToken: getEnv("SLACK_BOT_TOKEN", ""),
		SlackAppToken: getEnv("SLACK_APP_TOKEN", ""),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DocumentsDir: getEnv("DOCUMENTS_DIR", "documents"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		DedupeTTLSeconds: getEnvInt("DEDUPE_TTL_SECONDS", 3600),

		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:   getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:     getEnv("OPENROUTER_MODEL", "openai/gpt-4.1-mini"),
		OpenRouterTimeoutMS: getEnvInt("OPENROUTER_TIMEOUT_MS", 60000),
		OpenRouterSiteURL:   getEnv("OPENROUTER_SITE_URL", ""),
		AppName:             getEnv("APP_NAME", "Menu Copilot"),

		OCREndpoint:  getEnv("OCR_ENDPOINT", "https://vision.googleapis.com"),
		OCRAPIKey:    getEnv("OCR_API_KEY", ""),
		OCRTimeoutMS: getEnvInt("OCR_TIMEOUT_MS", 30000),

		ChatRateRPS:   getEnvFloat("CHAT_RATE_RPS", 1),
		ChatRateBurst: getEnvInt("CHAT_RATE_BURST", 3),

		BrandLogoPath: getEnv("BRAND_LOGO_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
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

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
