package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/playerhub/internal/auth"
	"github.com/hitoshi/playerhub/internal/gateway"
	"github.com/hitoshi/playerhub/internal/metrics"
	"github.com/hitoshi/playerhub/internal/middleware"
	"github.com/hitoshi/playerhub/internal/model"
)

// ReadyChecker はレディネスチェックに使う関数。DBへのPingなどを行う。
type ReadyChecker func(ctx context.Context) error

// AuthRouterDeps は認証サービスのルーター構成に必要な依存関係。
type AuthRouterDeps struct {
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	UserService UserServiceInterface

	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.HTTPStatusObserver
	Gatherer          prometheus.Gatherer
	Ready             ReadyChecker
}

// NewAuthRouter は認証サービスの全エンドポイントを構成したルーターを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// ログイン・登録系には接続元IPベースのレート制限を追加する。
// ユーザー管理ルートはベアラートークン検証の背後に置く。
func NewAuthRouter(deps *AuthRouterDeps) http.Handler {
	r := chi.NewRouter()
	applyBaseMiddleware(r, deps.Logger, deps.Metrics, deps.CORSAllowedOrigin)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)

	mountOperationalRoutes(r, deps.Gatherer, deps.Ready)

	r.Route("/auth", func(r chi.Router) {
		// ローカルログイン
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		} else {
			r.Post("/login", authHandler.Login)
		}

		// OAuthフロー
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.GoogleCallback)

		// 登録・パスワードリセット（メール送信を伴うため専用レート制限）
		reg := r.With()
		if deps.RateLimiter != nil {
			reg = r.With(deps.RateLimiter.RegistrationMiddleware())
		}
		reg.Post("/send-verification-email", authHandler.SendVerificationEmail)
		reg.Post("/send-password-reset-email", authHandler.SendPasswordResetEmail)

		r.Post("/verify-email/{token}", authHandler.VerifyEmail)
		r.Post("/reset-password/{token}", authHandler.ResetPassword)
	})

	// 下流サービスのAuthorizationゲートウェイが呼ぶ検証エンドポイント
	r.Route("/validate", func(r chi.Router) {
		r.Get("/check-cliente", authHandler.CheckClient)
		r.Get("/check-admin", authHandler.CheckAdmin)
	})

	// ユーザー管理（認証サービス自身がトークンを検証する）
	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireTier(deps.AuthService, auth.TierClient))
			r.Get("/me", userHandler.Me)
			r.Patch("/me/stats", userHandler.AddStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireTier(deps.AuthService, auth.TierAdmin))
			r.Get("/", userHandler.List)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	return r
}

// SkinsRouterDeps はスキンサービスのルーター構成に必要な依存関係。
type SkinsRouterDeps struct {
	SkinsService SkinsServiceInterface
	Gateway      *gateway.Gateway

	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           middleware.HTTPStatusObserver
	Gatherer          prometheus.Gatherer
	Ready             ReadyChecker
}

// NewSkinsRouter はスキンサービスの全エンドポイントを構成したルーターを返す。
// create/delete以外はAuthorizationゲートウェイ（client階層）の背後に置く。
func NewSkinsRouter(deps *SkinsRouterDeps) http.Handler {
	r := chi.NewRouter()
	applyBaseMiddleware(r, deps.Logger, deps.Metrics, deps.CORSAllowedOrigin)

	h := NewSkinsHandler(deps.SkinsService)

	mountOperationalRoutes(r, deps.Gatherer, deps.Ready)

	r.Route("/skins", func(r chi.Router) {
		// サガ専用の内部エンドポイント
		r.Post("/create", h.Create)
		r.Delete("/user", h.Delete)

		r.Group(func(r chi.Router) {
			r.Use(deps.Gateway.RequireClient)
			r.Get("/user", h.Get)
			r.Post("/activate", h.Activate)
			r.Post("/unlock", h.Unlock)
			r.Post("/set-slot-number", h.SetSlotNumber)
		})
	})

	return r
}

// PicturesRouterDeps は画像サービスのルーター構成に必要な依存関係。
type PicturesRouterDeps struct {
	PictureService PictureServiceInterface
	Gateway        *gateway.Gateway

	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           middleware.HTTPStatusObserver
	Gatherer          prometheus.Gatherer
	Ready             ReadyChecker
}

// NewPicturesRouter は画像サービスの全エンドポイントを構成したルーターを返す。
// default/user配下以外はAuthorizationゲートウェイ（client階層）の背後に置く。
func NewPicturesRouter(deps *PicturesRouterDeps) http.Handler {
	r := chi.NewRouter()
	applyBaseMiddleware(r, deps.Logger, deps.Metrics, deps.CORSAllowedOrigin)

	h := NewPictureHandler(deps.PictureService)

	mountOperationalRoutes(r, deps.Gatherer, deps.Ready)

	r.Route("/pictures", func(r chi.Router) {
		// サガ専用の内部エンドポイント
		r.Post("/default", h.CreateDefault)
		r.Delete("/user/{id}", h.DeleteUserData)

		r.Group(func(r chi.Router) {
			r.Use(deps.Gateway.RequireClient)
			r.Post("/", h.Upload)
			r.Get("/", h.List)
			r.Post("/{id}/activate", h.SetActive)
			r.Delete("/{id}", h.Delete)
		})
	})

	return r
}

// applyBaseMiddleware は全サービス共通のミドルウェアチェーンを適用する。
func applyBaseMiddleware(r chi.Router, logger *slog.Logger, observer middleware.HTTPStatusObserver, corsOrigin string) {
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if corsOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(corsOrigin))
	}
	if logger != nil {
		r.Use(middleware.NewLoggingMiddleware(logger))
	}
	if observer != nil {
		r.Use(middleware.NewMetricsMiddleware(observer))
	}
}

// mountOperationalRoutes はhealth/ready/metricsエンドポイントを設定する。
func mountOperationalRoutes(r chi.Router, gatherer prometheus.Gatherer, ready ReadyChecker) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			if err := ready(req.Context()); err != nil {
				slog.Error("readiness check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}
}

// requireTier はベアラートークンを検証し、認証済みユーザーをコンテキストに
// 注入するミドルウェアを返す。認証サービス自身の保護ルートで使う。
// 下流サービスは同じ検証をHTTP経由（internal/gateway）で行う。
func requireTier(service AuthServiceInterface, tier auth.Tier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signed, ok := bearerToken(r)
			if !ok {
				writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := service.Validate(signed, tier)
			if err != nil {
				handleServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(gateway.ContextWithUser(r.Context(), user)))
		})
	}
}
