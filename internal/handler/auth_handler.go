// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/playerhub/internal/auth"
	"github.com/hitoshi/playerhub/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	GetOAuthLoginURL(state string) string
	HandleOAuthCallback(ctx context.Context, code string) (string, *model.User, error)
	StartRegistration(ctx context.Context, email, username, password string) error
	CompleteRegistration(ctx context.Context, tok string) (*model.User, error)
	StartPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, tok, newPassword string) error
	Validate(signed string, tier auth.Tier) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL  string // OAuthフロー完了後のリダイレクト先
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse はトークン発行系エンドポイントのレスポンス。
type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login はローカル資格情報によるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	signed, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token: signed,
		User:  toUserResponse(user),
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetOAuthLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// 認証に成功するとトークンとユーザーをクエリパラメータに載せて
// フロントエンドへ302リダイレクトする。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	signed, user, err := h.service.HandleOAuthCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 4. フロントエンドにリダイレクト
	userJSON, err := json.Marshal(toUserResponse(user))
	if err != nil {
		slog.Error("failed to marshal user", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	q := url.Values{}
	q.Set("token", signed)
	q.Set("user", string(userJSON))
	http.Redirect(w, r, h.config.FrontendURL+"?"+q.Encode(), http.StatusFound)
}

// registrationRequest は登録開始リクエストのボディ。
type registrationRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SendVerificationEmail は登録確認メールの送信を開始する。
// POST /auth/send-verification-email
func (h *AuthHandler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.StartRegistration(r.Context(), req.Email, req.Username, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "確認メールを送信しました。",
	})
}

// VerifyEmail は検証トークンを引き換えてユーザーを作成する。
// POST /auth/verify-email/{token}
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	user, err := h.service.CompleteRegistration(r.Context(), tok)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// passwordResetRequest はリセット開始リクエストのボディ。
type passwordResetRequest struct {
	Email string `json:"email"`
}

// SendPasswordResetEmail はパスワードリセットメールの送信を開始する。
// POST /auth/send-password-reset-email
func (h *AuthHandler) SendPasswordResetEmail(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.StartPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "パスワードリセットメールを送信しました。",
	})
}

// resetPasswordRequest はリセット完了リクエストのボディ。
type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ResetPassword はリセットトークンを引き換えてパスワードを更新する。
// POST /auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.CompletePasswordReset(r.Context(), tok, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "パスワードを更新しました。",
	})
}

// CheckClient はclient階層のベアラートークン検証を行う。
// 下流サービスのAuthorizationゲートウェイから呼ばれる。
// GET /validate/check-cliente
func (h *AuthHandler) CheckClient(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, auth.TierClient)
}

// CheckAdmin はadmin階層のベアラートークン検証を行う。
// GET /validate/check-admin
func (h *AuthHandler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, auth.TierAdmin)
}

func (h *AuthHandler) check(w http.ResponseWriter, r *http.Request, tier auth.Tier) {
	signed, ok := bearerToken(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.Validate(signed, tier)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if tok == "" {
		return "", false
	}
	return tok, true
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
