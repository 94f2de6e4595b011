// Package gateway はサービス間のAuthorizationゲートウェイを提供する。
// 下流サービス（スキン・画像）は受信したベアラートークンを自前で検証せず、
// 認証サービスの検証エンドポイントへHTTPコールバックして判定を委譲する。
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/playerhub/internal/middleware"
	"github.com/hitoshi/playerhub/internal/model"
)

const (
	// checkClientPath はclient層（client/admin両ロール可）の検証パス。
	checkClientPath = "/validate/check-cliente"
	// checkAdminPath はadmin層（adminロールのみ）の検証パス。
	checkAdminPath = "/validate/check-admin"

	defaultTimeout = 10 * time.Second
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userContextKey = contextKey("authenticated_user")

// Gateway は認証サービスへのコールバックでリクエストを認可する。
type Gateway struct {
	authBaseURL string
	httpClient  *http.Client
}

// New はGatewayを生成する。
func New(authBaseURL string) *Gateway {
	return &Gateway{
		authBaseURL: strings.TrimRight(authBaseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// RequireClient はclient層の認可を要求するミドルウェアを返す。
// clientロールとadminロールの両方が通過できる。
func (g *Gateway) RequireClient(next http.Handler) http.Handler {
	return g.require(checkClientPath, model.RoleClient, next)
}

// RequireAdmin はadmin層の認可を要求するミドルウェアを返す。
// adminロールのみ通過できる。
func (g *Gateway) RequireAdmin(next http.Handler) http.Handler {
	return g.require(checkAdminPath, model.RoleAdmin, next)
}

// require は検証エンドポイントへのコールバックで認可を行う。
// 認証サービスに到達できない場合は500を返す。判定を省略して
// リクエストを通すことはない。成功レスポンスであっても、返却された
// ユーザーのロールが要求階層を満たさなければ403で拒否する。
func (g *Gateway) require(checkPath string, minRole model.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, g.authBaseURL+checkPath, nil)
		if err != nil {
			slog.Error("failed to build validation request", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamFailureError())
			return
		}
		req.Header.Set("Authorization", authz)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			slog.Error("auth service unreachable",
				slog.String("check_path", checkPath),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamFailureError())
			return
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			// 続行
		case http.StatusUnauthorized:
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		case http.StatusForbidden:
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		default:
			slog.Error("auth service returned unexpected status",
				slog.String("check_path", checkPath),
				slog.Int("http_status", resp.StatusCode),
			)
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamFailureError())
			return
		}

		var user model.User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			slog.Error("failed to decode validated user", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamFailureError())
			return
		}

		if !roleSatisfies(user.Role, minRole) {
			slog.Warn("validated user role does not satisfy required tier",
				slog.String("check_path", checkPath),
				slog.String("role", string(user.Role)),
			)
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}

		ctx := ContextWithUser(r.Context(), &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// roleSatisfies は検証済みユーザーのロールが要求階層を満たすかを返す。
// admin階層はadminロールのみ、client階層は定義済みロールであればよい。
func roleSatisfies(role, minRole model.Role) bool {
	if minRole == model.RoleAdmin {
		return role == model.RoleAdmin
	}
	return role.Valid()
}

// UserFromContext はリクエストコンテキストから認可済みユーザーを取得する。
// ゲートウェイを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認可済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
