// Package provision はユーザー作成・削除のサガを提供する。
// ユーザー行の作成、スロットサービスへのレコード作成、画像サービスへの
// デフォルト画像作成を順に実行し、途中で失敗した場合は完了済みの
// ステップを逆順に取り消す。
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// SlotsClient はスロットサービスの呼び出しインターフェース。
type SlotsClient interface {
	// CreateDefault はユーザーのデフォルトスロットレコードを作成する。
	CreateDefault(ctx context.Context, userID, email string) error
	// Delete はユーザーのスロットレコードを削除する。
	Delete(ctx context.Context, email string) error
}

// PicturesClient は画像サービスの呼び出しインターフェース。
type PicturesClient interface {
	// CreateDefault はユーザーのデフォルトプロフィール画像を作成する。
	CreateDefault(ctx context.Context, userID string) error
	// DeleteUserData はユーザーの全画像とファイルを削除する。
	DeleteUserData(ctx context.Context, userID string) error
}

// MetricsRecorder はサガの補償イベントのメトリクス通知先。nil可。
type MetricsRecorder interface {
	RecordSagaCompensation(step string)
}

// Saga はユーザープロビジョニングのオーケストレーター。
type Saga struct {
	userRepo repository.UserRepository
	slots    SlotsClient
	pictures PicturesClient
	metrics  MetricsRecorder
	now      func() time.Time
}

// NewSaga はSagaを生成する。metricsはnilでもよい。
func NewSaga(userRepo repository.UserRepository, slots SlotsClient, pictures PicturesClient, metrics MetricsRecorder) *Saga {
	return &Saga{
		userRepo: userRepo,
		slots:    slots,
		pictures: pictures,
		metrics:  metrics,
		now:      time.Now,
	}
}

// CreateUser はユーザーを作成し、付随リソースをプロビジョニングする。
// ステップ: ユーザー行 → スロットレコード → デフォルト画像。
// 後段ステップの失敗時は作成済みのユーザー行を削除し、作成済みの
// スロットレコードはベストエフォートで取り消す。部分的に作成された
// ユーザーでログイン可能な状態は残さない。
func (s *Saga) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if !user.Role.Valid() {
		return nil, model.NewValidationError("不正なロールです")
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.userRepo.Create(ctx, user); err != nil {
		// unique violationは呼び出し元で重複エラーに変換する
		return nil, err
	}

	if err := s.slots.CreateDefault(ctx, user.ID, user.Email); err != nil {
		slog.Error("slot provisioning failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.compensateUser(ctx, user, "slots")
		return nil, model.NewUpstreamFailureError()
	}

	if err := s.pictures.CreateDefault(ctx, user.ID); err != nil {
		slog.Error("default picture provisioning failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.compensateSlots(ctx, user)
		s.compensateUser(ctx, user, "picture")
		return nil, model.NewUpstreamFailureError()
	}

	slog.Info("user provisioned",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// DeleteUser はユーザーと付随リソースを削除する。
// 画像（メタデータ＋ファイル）、スロットレコード、ユーザー行の順に消す。
// 画像・スロットの削除失敗時はユーザー行を残したままエラーを返し、
// 孤児リソースを作らない。
func (s *Saga) DeleteUser(ctx context.Context, id string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.pictures.DeleteUserData(ctx, user.ID); err != nil {
		slog.Error("picture cleanup failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamFailureError()
	}
	if err := s.slots.Delete(ctx, user.Email); err != nil {
		slog.Error("slot cleanup failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamFailureError()
	}
	if err := s.userRepo.DeleteByID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deprovisioned", slog.String("user_id", user.ID))
	return nil
}

// compensateUser は作成済みのユーザー行を削除する。
// 補償自体の失敗はログに残すのみで、元の失敗を上書きしない。
func (s *Saga) compensateUser(ctx context.Context, user *model.User, failedStep string) {
	if s.metrics != nil {
		s.metrics.RecordSagaCompensation(failedStep)
	}
	if err := s.userRepo.DeleteByID(ctx, user.ID); err != nil {
		slog.Error("failed to compensate user creation",
			slog.String("user_id", user.ID),
			slog.String("failed_step", failedStep),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Warn("user creation compensated",
		slog.String("user_id", user.ID),
		slog.String("failed_step", failedStep),
	)
}

// compensateSlots は作成済みのスロットレコードをベストエフォートで削除する。
func (s *Saga) compensateSlots(ctx context.Context, user *model.User) {
	if err := s.slots.Delete(ctx, user.Email); err != nil {
		slog.Error("failed to compensate slot creation",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
