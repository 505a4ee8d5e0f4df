package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// defaultClientID は任天堂アカウント連携アプリの固定クライアントID。
const defaultClientID = "5c38e31cd085304b"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Nintendo API
	NintendoClientID string

	// Credential
	TokenFile string

	// Token
	TokenRefreshMargin time.Duration
	AuthMaxAttempts    int

	// Fetch
	FetchTimeout time.Duration
	RateLimitRPS float64

	// Snapshot archive
	SnapshotDir string

	// Collect worker
	CollectInterval time.Duration

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NintendoClientID = getEnvString("NINTENDO_CLIENT_ID", defaultClientID)
	cfg.TokenFile = getEnvString("TOKEN_FILE", defaultTokenFile())
	cfg.TokenRefreshMargin = getEnvDuration("TOKEN_REFRESH_MARGIN", 5*time.Minute)
	cfg.AuthMaxAttempts = getEnvInt("AUTH_MAX_ATTEMPTS", 3)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 1.0)
	cfg.SnapshotDir = getEnvString("SNAPSHOT_DIR", "history_data")
	cfg.CollectInterval = getEnvDuration("COLLECT_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// defaultTokenFile はトークンファイルのデフォルトパスを返す。
// ユーザー設定ディレクトリが解決できない場合はカレントディレクトリ配下を使う。
func defaultTokenFile() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("config", "tokens.json")
	}
	return filepath.Join(configDir, "switchtrack", "tokens.json")
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
