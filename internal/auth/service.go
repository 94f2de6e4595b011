// Package auth は資格情報の検証、ベアラートークンの発行・検証、
// 登録・パスワードリセットのフローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/playerhub/internal/mailer"
	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
	"github.com/hitoshi/playerhub/internal/token"
)

// MetricsRecorder は認証イベントのメトリクス通知先。nil可。
type MetricsRecorder interface {
	RecordLogin(outcome string)
	RecordTokenValidation(outcome string)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier    *Verifier
	keyring     *Keyring
	tokens      *token.Store
	userRepo    repository.UserRepository
	provisioner Provisioner
	mailer      mailer.Mailer
	oauth       OAuthProvider
	metrics     MetricsRecorder
	now         func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	verifier *Verifier,
	keyring *Keyring,
	tokens *token.Store,
	userRepo repository.UserRepository,
	provisioner Provisioner,
	m mailer.Mailer,
	oauth OAuthProvider,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		verifier:    verifier,
		keyring:     keyring,
		tokens:      tokens,
		userRepo:    userRepo,
		provisioner: provisioner,
		mailer:      m,
		oauth:       oauth,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Login はローカル資格情報を検証し、署名済みベアラートークンとユーザーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.verifier.VerifyLocal(ctx, email, password)
	if err != nil {
		s.recordLogin("failure")
		return "", nil, err
	}

	signed, err := s.keyring.Issue(user, s.now())
	if err != nil {
		s.recordLogin("failure")
		return "", nil, fmt.Errorf("failed to issue bearer token: %w", err)
	}

	s.recordLogin("success")
	return signed, user, nil
}

// GetOAuthLoginURL はOAuth認証URLを生成する。
func (s *Service) GetOAuthLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleOAuthCallback はOAuthコールバックを処理し、トークンとユーザーを返す。
// 未登録ユーザーはサガ経由で自動プロビジョニングされる。
func (s *Service) HandleOAuthCallback(ctx context.Context, code string) (string, *model.User, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recordLogin("failure")
		return "", nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.verifier.VerifyOAuth(ctx, info)
	if err != nil {
		s.recordLogin("failure")
		return "", nil, err
	}

	signed, err := s.keyring.Issue(user, s.now())
	if err != nil {
		s.recordLogin("failure")
		return "", nil, fmt.Errorf("failed to issue bearer token: %w", err)
	}

	s.recordLogin("success")
	return signed, user, nil
}

// StartRegistration は登録確認メールの送信を開始する。
// ユーザーはまだ作成しない。申請内容（パスワードはハッシュ済み）を
// 検証トークンに紐づけて保留し、確認リンクをメールで送る。
func (s *Service) StartRegistration(ctx context.Context, email, username, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationError("メールアドレスの形式が不正です")
	}
	if username == "" {
		return model.NewValidationError("ユーザー名が空です")
	}
	if len(password) < 8 {
		return model.NewValidationError("パスワードは8文字以上必要です")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for existing user: %w", err)
	}
	if existing != nil {
		return model.NewDuplicateUserError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	tok, err := s.tokens.Issue(token.PurposeRegistration, token.Payload{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return fmt.Errorf("failed to issue registration token: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, email, tok); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}

	slog.Info("registration verification mail sent", slog.String("email", email))
	return nil
}

// CompleteRegistration は検証トークンを引き換えてユーザーを作成する。
// トークンはちょうど1回だけ引き換え可能。2回目以降の呼び出しは
// 無効トークンエラーになり、ユーザーは二重作成されない。
func (s *Service) CompleteRegistration(ctx context.Context, tok string) (*model.User, error) {
	payload, ok := s.tokens.Redeem(tok, token.PurposeRegistration)
	if !ok {
		return nil, model.NewInvalidTokenError()
	}

	role := model.RoleClient
	if s.verifier.allowlist != nil && s.verifier.allowlist.Contains(payload.Email) {
		role = model.RoleAdmin
	}

	user, err := s.provisioner.CreateUser(ctx, &model.User{
		Email:        payload.Email,
		Username:     payload.Username,
		PasswordHash: payload.PasswordHash,
		Role:         role,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateUserError()
		}
		return nil, err
	}

	return user.Sanitized(), nil
}

// StartPasswordReset はパスワードリセットメールの送信を開始する。
// 登録のないメールアドレスにはユーザー未検出エラーを返す。
func (s *Service) StartPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	tok, err := s.tokens.Issue(token.PurposePasswordReset, token.Payload{Email: email})
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, email, tok); err != nil {
		return fmt.Errorf("failed to send password reset mail: %w", err)
	}

	slog.Info("password reset mail sent", slog.String("email", email))
	return nil
}

// CompletePasswordReset はリセットトークンを引き換えてパスワードを更新する。
func (s *Service) CompletePasswordReset(ctx context.Context, tok, newPassword string) error {
	if len(newPassword) < 8 {
		return model.NewValidationError("パスワードは8文字以上必要です")
	}

	payload, ok := s.tokens.Redeem(tok, token.PurposePasswordReset)
	if !ok {
		return model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByEmail(ctx, payload.Email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", user.ID))
	return nil
}

// Validate はベアラートークンを検証してユーザーを返す。
// 下流サービスのAuthorizationゲートウェイから呼ばれる。
func (s *Service) Validate(signed string, tier Tier) (*model.User, error) {
	user, err := s.keyring.Verify(signed, tier)
	if err != nil {
		s.recordValidation("rejected")
		return nil, err
	}
	s.recordValidation("accepted")
	return user, nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

func (s *Service) recordValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTokenValidation(outcome)
	}
}
