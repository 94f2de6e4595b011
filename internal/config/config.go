// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Mode は起動するサービスの種別を表す。
// 必須環境変数の検証はモードごとに異なる。
type Mode string

const (
	// ModeAuth は認証サービス。
	ModeAuth Mode = "auth"
	// ModeSkins はスキンスロットサービス。
	ModeSkins Mode = "skins"
	// ModePictures はプロフィール画像サービス。
	ModePictures Mode = "pictures"
	// ModeMigrate はマイグレーションコマンド。DATABASE_URLのみ必須。
	ModeMigrate Mode = "migrate"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT（認証サービスのみ）
	JWTAdminKey  string
	JWTClientKey string

	// Admin許可リスト（認証サービスのみ）
	AdminAllowlistPath string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// サービス間URL
	AuthAPIURL     string
	SkinsAPIURL    string
	PicturesAPIURL string

	// Frontend
	FrontendURL string

	// 検証トークン
	TokenSweepInterval time.Duration

	// Storage（画像サービスのみ）
	StorageBackend      string // "local" または "s3"
	LocalStoragePath    string
	PictureTemplatePath string
	S3Region            string
	S3Bucket            string
	S3AccessKey         string
	S3SecretKey         string
	S3Endpoint          string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// モードに応じた必須環境変数が未設定の場合はエラーを返す。
func Load(mode Mode) (*Config, error) {
	cfg := &Config{}

	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = require("DATABASE_URL")

	switch mode {
	case ModeAuth:
		cfg.JWTAdminKey = require("JWT_ADMIN_KEY")
		cfg.JWTClientKey = require("JWT_CLIENT_KEY")
		cfg.GoogleClientID = require("GOOGLE_CLIENT_ID")
		cfg.GoogleClientSecret = require("GOOGLE_CLIENT_SECRET")
		cfg.GoogleRedirectURL = require("GOOGLE_REDIRECT_URL")
		cfg.FrontendURL = require("FRONTEND_URL")
		cfg.SMTPHost = require("SMTP_HOST")
		cfg.SMTPFrom = require("SMTP_FROM")
		cfg.SkinsAPIURL = require("SKINS_API_URL")
		cfg.PicturesAPIURL = require("PICTURES_API_URL")
	case ModeSkins, ModePictures:
		cfg.AuthAPIURL = require("AUTH_API_URL")
	case ModeMigrate:
		// DATABASE_URLのみ
	default:
		return nil, fmt.Errorf("unknown mode: %q", mode)
	}

	cfg.StorageBackend = getEnvString("STORAGE_BACKEND", "local")
	if mode == ModePictures && cfg.StorageBackend == "s3" {
		cfg.S3Region = require("S3_REGION")
		cfg.S3Bucket = require("S3_BUCKET")
		cfg.S3AccessKey = require("S3_ACCESS_KEY")
		cfg.S3SecretKey = require("S3_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AdminAllowlistPath = getEnvString("ADMIN_ALLOWLIST_PATH", "")
	cfg.SMTPPort = getEnvString("SMTP_PORT", "587")
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.TokenSweepInterval = getEnvDuration("TOKEN_SWEEP_INTERVAL", 5*time.Minute)
	cfg.LocalStoragePath = getEnvString("LOCAL_STORAGE_PATH", "./uploads")
	cfg.PictureTemplatePath = getEnvString("PICTURE_TEMPLATE_PATH", "./assets/default.png")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", defaultPort(mode))
	cfg.CookieSecure = strings.HasPrefix(cfg.GoogleRedirectURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// defaultPort はサービスごとの既定ポートを返す。
// 同一ホストで3サービスを同時に起動できるようずらしてある。
func defaultPort(mode Mode) string {
	switch mode {
	case ModeSkins:
		return "8081"
	case ModePictures:
		return "8082"
	default:
		return "8080"
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
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
