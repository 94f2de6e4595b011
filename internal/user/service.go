// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// Deprovisioner はユーザー削除サガのインターフェース。
type Deprovisioner interface {
	DeleteUser(ctx context.Context, id string) error
}

// Service はユーザープロフィールのサービス層。
type Service struct {
	userRepo      repository.UserRepository
	deprovisioner Deprovisioner
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, deprovisioner Deprovisioner) *Service {
	return &Service{
		userRepo:      userRepo,
		deprovisioner: deprovisioner,
	}
}

// Get は指定IDのユーザーを返す。パスワードハッシュは含めない。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user.Sanitized(), nil
}

// List は全ユーザーを返す。管理者向け。パスワードハッシュは含めない。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sanitized := make([]*model.User, len(users))
	for i, u := range users {
		sanitized[i] = u.Sanitized()
	}
	return sanitized, nil
}

// AddStats はプレイ統計（XP・プレイ時間）を加算し、更新後のユーザーを返す。
func (s *Service) AddStats(ctx context.Context, id string, xp, playTimeMinutes int) (*model.User, error) {
	if xp < 0 || playTimeMinutes < 0 {
		return nil, model.NewValidationError("統計の加算値は0以上である必要があります")
	}

	if err := s.userRepo.AddStats(ctx, id, xp, playTimeMinutes); err != nil {
		return nil, fmt.Errorf("failed to add stats: %w", err)
	}
	return s.Get(ctx, id)
}

// Withdraw はユーザーの退会処理を実行する。
// 画像とスロットレコードを先に削除し、最後にユーザー行を消す。
// 削除順序はプロビジョニングサガが管理する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if err := s.deprovisioner.DeleteUser(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
