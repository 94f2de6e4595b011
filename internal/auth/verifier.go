package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// Provisioner はユーザー作成サガのインターフェース。
// OAuth初回ログイン時の自動プロビジョニングに使用する。
type Provisioner interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
}

// Verifier は資格情報の検証を行う。
// ローカル（email/パスワード）とOAuthの両方の経路を正準のUser+ロールに
// 正規化する。
type Verifier struct {
	userRepo    repository.UserRepository
	provisioner Provisioner
	allowlist   *Allowlist
}

// NewVerifier はVerifierを生成する。
func NewVerifier(userRepo repository.UserRepository, provisioner Provisioner, allowlist *Allowlist) *Verifier {
	return &Verifier{
		userRepo:    userRepo,
		provisioner: provisioner,
		allowlist:   allowlist,
	}
}

// VerifyLocal はemail/パスワードの組を検証する。
// 成功時はパスワードハッシュを除去したUserを返す。
// ユーザー不存在とパスワード不一致は同じエラーにまとめ、
// アカウントの存在を外部から判別できないようにする。
func (v *Verifier) VerifyLocal(ctx context.Context, email, password string) (*model.User, error) {
	user, err := v.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		// 不一致時とタイミング差を作らないためダミー比較を行う
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return user.Sanitized(), nil
}

// VerifyOAuth はOAuthプロバイダーから取得したユーザー情報を検証する。
// 未登録の場合はサガ経由で自動プロビジョニングする。ロールは作成時に
// 許可リストを1回だけ参照して決定する。ローカルログイン不可能な
// ランダムパスワードプレースホルダーを設定する。
func (v *Verifier) VerifyOAuth(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	user, err := v.userRepo.FindByEmail(ctx, info.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user != nil {
		slog.Info("existing user logged in via oauth",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
		return user.Sanitized(), nil
	}

	role := model.RoleClient
	if v.allowlist != nil && v.allowlist.Contains(info.Email) {
		role = model.RoleAdmin
	}

	placeholder, err := unusablePasswordHash()
	if err != nil {
		return nil, err
	}

	created, err := v.provisioner.CreateUser(ctx, &model.User{
		Email:        info.Email,
		Username:     usernameFromOAuth(info),
		PasswordHash: placeholder,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision oauth user: %w", err)
	}

	slog.Info("new user provisioned via oauth",
		slog.String("user_id", created.ID),
		slog.String("provider", info.Provider),
		slog.String("role", string(created.Role)),
	)

	return created.Sanitized(), nil
}

// dummyHash はタイミング均一化用のbcryptハッシュ（"unused"のハッシュ）。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// unusablePasswordHash はローカルログインに使用できないプレースハッシュを生成する。
// ランダムな64文字hexをbcryptにかけるため、対応する平文を知る者は存在しない。
func unusablePasswordHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(b)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash placeholder password: %w", err)
	}
	return string(h), nil
}

// usernameFromOAuth はOAuthユーザー情報から初期ユーザー名を導出する。
// 表示名が空の場合はメールアドレスのローカル部を使う。
func usernameFromOAuth(info *OAuthUserInfo) string {
	if info.Name != "" {
		return info.Name
	}
	if at := strings.Index(info.Email, "@"); at > 0 {
		return info.Email[:at]
	}
	return info.Email
}
