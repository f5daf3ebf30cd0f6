// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// LLM
	LLMProvider   string // "openai"、"ollama"、または空（LLM無効）
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxTokens  int
	OpenAIAPIKey  string
	OllamaBaseURL string

	// Article
	ArticleMaxAge time.Duration // この期間を超えた記事は再生成の対象
	CacheTTL      time.Duration

	// Moderation
	ReviewWindow       time.Duration // 不正利用フラグの判定に使う履歴ウィンドウ
	SourceCheckEnabled bool          // 出典URLの到達性チェックを行うか
	AdminToken         string        // 空の場合は管理者エンドポイントを無効化

	// Rate Limit（req/min単位）
	RateLimitGeneral    int
	RateLimitSubmission int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	cfg.LLMProvider = getEnvString("LLM_PROVIDER", "")
	cfg.LLMModel = getEnvString("LLM_MODEL", "")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	cfg.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", 800)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OllamaBaseURL = getEnvString("OLLAMA_BASE_URL", "http://localhost:11434")

	cfg.ArticleMaxAge = getEnvDuration("ARTICLE_MAX_AGE", 30*24*time.Hour)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 10*time.Minute)

	cfg.ReviewWindow = getEnvDuration("REVIEW_WINDOW", time.Hour)
	cfg.SourceCheckEnabled = getEnvBool("SOURCE_CHECK_ENABLED", false)
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmission = getEnvInt("RATE_LIMIT_SUBMISSION", 5)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
