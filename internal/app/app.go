// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/playerhub/internal/auth"
	"github.com/hitoshi/playerhub/internal/config"
	"github.com/hitoshi/playerhub/internal/database"
	"github.com/hitoshi/playerhub/internal/gateway"
	"github.com/hitoshi/playerhub/internal/handler"
	"github.com/hitoshi/playerhub/internal/logger"
	"github.com/hitoshi/playerhub/internal/mailer"
	"github.com/hitoshi/playerhub/internal/metrics"
	"github.com/hitoshi/playerhub/internal/middleware"
	"github.com/hitoshi/playerhub/internal/picture"
	"github.com/hitoshi/playerhub/internal/provision"
	"github.com/hitoshi/playerhub/internal/repository"
	"github.com/hitoshi/playerhub/internal/skins"
	"github.com/hitoshi/playerhub/internal/token"
	"github.com/hitoshi/playerhub/internal/user"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, mode config.Mode) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するサービスを起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, commandMode(cmd))
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandSkins:
		return runSkins(cfg)
	case CommandPictures:
		return runPictures(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runAuth(cfg)
	}
}

// commandMode はサブコマンドを設定読み込みモードに対応付ける。
func commandMode(cmd Command) config.Mode {
	switch cmd {
	case CommandSkins:
		return config.ModeSkins
	case CommandPictures:
		return config.ModePictures
	case CommandMigrate:
		return config.ModeMigrate
	default:
		return config.ModeAuth
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runAuth は認証サービスを起動する。
// 資格情報検証、トークン発行、メール検証フロー、ユーザー管理APIを提供する。
func runAuth(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// admin許可リストは起動時に読み込む。読めない場合は起動を中止する。
	allowlist := auth.NewAllowlist(cfg.AdminAllowlistPath)
	if err := allowlist.Load(); err != nil {
		return fmt.Errorf("failed to load admin allowlist: %w", err)
	}

	// プロビジョニングサガ: 下流サービスへのHTTPクライアント
	slotsClient := provision.NewHTTPSlotsClient(cfg.SkinsAPIURL)
	picturesClient := provision.NewHTTPPicturesClient(cfg.PicturesAPIURL)
	saga := provision.NewSaga(userRepo, slotsClient, picturesClient, collector)

	verifier := auth.NewVerifier(userRepo, saga, allowlist)
	keyring := auth.NewKeyring([]byte(cfg.JWTAdminKey), []byte(cfg.JWTClientKey))
	tokens := token.NewStore()

	smtpMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		BaseURL:  cfg.FrontendURL,
	})

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	authService := auth.NewService(
		verifier, keyring, tokens, userRepo, saga, smtpMailer, oauthProvider, collector,
	)
	userService := user.NewService(userRepo, saga)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewAuthRouter(&handler.AuthRouterDeps{
		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:  cfg.FrontendURL,
			CookieSecure: cfg.CookieSecure,
		},
		UserService:       userService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          reg,
		Ready:             db.PingContext,
	})

	// 期限切れ検証トークンの定期掃除
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := token.NewSweeper(tokens, slog.Default(), collector)
	sweeper.Interval = cfg.TokenSweepInterval
	go sweeper.Start(ctx)

	return serve(cfg.ServerPort, router)
}

// runSkins はスキンスロットサービスを起動する。
// 認可は認証サービスへのコールバックに委譲する。
func runSkins(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slotRepo := repository.NewPostgresSlotRepo(db)
	skinsService := skins.NewService(slotRepo)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	router := handler.NewSkinsRouter(&handler.SkinsRouterDeps{
		SkinsService:      skinsService,
		Gateway:           gateway.New(cfg.AuthAPIURL),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          reg,
		Ready:             db.PingContext,
	})

	return serve(cfg.ServerPort, router)
}

// runPictures はプロフィール画像サービスを起動する。
// STORAGE_BACKENDに応じてローカルディスクまたはS3互換ストレージを使用する。
func runPictures(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pictureRepo := repository.NewPostgresPictureRepo(db)

	var storage picture.BlobStorage
	if cfg.StorageBackend == "s3" {
		s3Storage, err := picture.NewS3Storage(context.Background(), picture.S3Config{
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		storage = s3Storage
		slog.Info("using S3 storage", slog.String("bucket", cfg.S3Bucket))
	} else {
		storage = picture.NewLocalStorage(cfg.LocalStoragePath)
		slog.Info("using local storage", slog.String("root", cfg.LocalStoragePath))
	}

	pictureService := picture.NewService(pictureRepo, storage, cfg.PictureTemplatePath)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	router := handler.NewPicturesRouter(&handler.PicturesRouterDeps{
		PictureService:    pictureService,
		Gateway:           gateway.New(cfg.AuthAPIURL),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          reg,
		Ready:             db.PingContext,
	})

	return serve(cfg.ServerPort, router)
}

// serve はHTTPサーバーを起動し、SIGINTまたはSIGTERMで
// グレースフルシャットダウンを行う。
func serve(port string, router http.Handler) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
