package config

import (
	"fmt"
	"os"
)

// Config 应用配置
type Config struct {
	TMDBToken    string
	OpenAIAPIKey string
	OpenAIModel  string
	DatabaseURL  string
}

// Load 加载配置，缺少必需的凭证时返回错误（启动时致命）
func Load() (*Config, error) {
	tmdbToken := os.Getenv("TMDB_API_KEY")
	if tmdbToken == "" {
		return nil, fmt.Errorf("TMDB_API_KEY 未设置，请配置 TMDB API 凭证")
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY 未设置，请配置模型服务凭证")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbUser := getEnv("DB_USER", "postgres")
		dbPass := getEnv("DB_PASSWORD", "postgres")
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbName := getEnv("DB_NAME", "cinechat")
		dbSSL := getEnv("DB_SSLMODE", "disable")

		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)
	}

	return &Config{
		TMDBToken:    tmdbToken,
		OpenAIAPIKey: openaiKey,
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-3.5-turbo-0125"),
		DatabaseURL:  dbURL,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
