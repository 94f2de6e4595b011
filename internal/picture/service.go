package picture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// MaxUploadBytes はアップロード可能な画像サイズの上限。
const MaxUploadBytes = 5 << 20 // 5MiB

// allowedExtensions はアップロードを許可する拡張子。
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// Service はプロフィール画像のビジネスロジックを提供する。
type Service struct {
	pictureRepo  repository.PictureRepository
	storage      BlobStorage
	templatePath string
	now          func() time.Time
}

// NewService はServiceを生成する。
// templatePathはデフォルト画像のテンプレートアセットのローカルパス。
func NewService(pictureRepo repository.PictureRepository, storage BlobStorage, templatePath string) *Service {
	return &Service{
		pictureRepo:  pictureRepo,
		storage:      storage,
		templatePath: templatePath,
		now:          time.Now,
	}
}

// storageKey はユーザー・画像IDからストレージキーを組み立てる。
// ユーザー単位のプレフィックスでまとめ、一括削除を可能にする。
func storageKey(userID, pictureID, ext string) string {
	return path.Join("users", userID, pictureID+ext)
}

// Upload は画像をアップロードして登録する。
// ユーザーにアクティブ画像がない場合、アップロードした画像がアクティブになる。
func (s *Service) Upload(ctx context.Context, userID, filename string, r io.Reader) (*model.Picture, error) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, model.NewValidationError("対応していない画像形式です（png/jpg/jpegのみ）")
	}

	// 上限+1バイトまで読み、超過を切り詰めではなく拒否として扱う
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, model.NewValidationError("画像サイズが上限（5MiB）を超えています")
	}

	active, err := s.pictureRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active picture: %w", err)
	}

	picture := &model.Picture{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsActive:  active == nil,
		CreatedAt: s.now(),
	}
	picture.Path = storageKey(userID, picture.ID, ext)

	if err := s.storage.Put(ctx, picture.Path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store picture: %w", err)
	}

	if err := s.pictureRepo.Create(ctx, picture); err != nil {
		// メタデータ登録に失敗したらファイルを残さない
		if cleanupErr := s.storage.Delete(ctx, picture.Path); cleanupErr != nil {
			slog.Error("failed to clean up orphaned picture file",
				slog.String("path", picture.Path),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create picture record: %w", err)
	}

	slog.Info("picture uploaded",
		slog.String("user_id", userID),
		slog.String("picture_id", picture.ID),
	)
	return picture, nil
}

// CreateDefault はテンプレートアセットを複製してユーザーの初期画像を作成する。
// 作成された画像はアクティブになる。既に画像を持つユーザーには何もしない。
// プロビジョニングサガのリトライで二重作成しないための冪等化。
func (s *Service) CreateDefault(ctx context.Context, userID string) (*model.Picture, error) {
	if userID == "" {
		return nil, model.NewValidationError("ユーザーIDが空です")
	}

	existing, err := s.pictureRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	template, err := os.ReadFile(s.templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template asset: %w", err)
	}

	picture := &model.Picture{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	picture.Path = storageKey(userID, picture.ID, strings.ToLower(path.Ext(s.templatePath)))

	if err := s.storage.Put(ctx, picture.Path, bytes.NewReader(template)); err != nil {
		return nil, fmt.Errorf("failed to store default picture: %w", err)
	}
	if err := s.pictureRepo.Create(ctx, picture); err != nil {
		if cleanupErr := s.storage.Delete(ctx, picture.Path); cleanupErr != nil {
			slog.Error("failed to clean up orphaned default picture file",
				slog.String("path", picture.Path),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create default picture record: %w", err)
	}

	slog.Info("default picture created", slog.String("user_id", userID))
	return picture, nil
}

// List はユーザーの画像一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Picture, error) {
	pictures, err := s.pictureRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}
	return pictures, nil
}

// SetActive は指定画像をアクティブにする。
// 他の画像は同一トランザクションで非アクティブになる。
func (s *Service) SetActive(ctx context.Context, userID, pictureID string) (*model.Picture, error) {
	picture, err := s.findOwned(ctx, userID, pictureID)
	if err != nil {
		return nil, err
	}

	if err := s.pictureRepo.SetActive(ctx, userID, pictureID); err != nil {
		return nil, fmt.Errorf("failed to set active picture: %w", err)
	}
	picture.IsActive = true
	return picture, nil
}

// Delete は指定画像を削除する。アクティブ画像の削除は拒否する。
func (s *Service) Delete(ctx context.Context, userID, pictureID string) error {
	picture, err := s.findOwned(ctx, userID, pictureID)
	if err != nil {
		return err
	}
	if picture.IsActive {
		return model.NewPictureActiveError()
	}

	if err := s.pictureRepo.DeleteByID(ctx, pictureID); err != nil {
		return fmt.Errorf("failed to delete picture record: %w", err)
	}
	// ファイル削除はベストエフォート。失敗してもメタデータ削除は取り消さない。
	if err := s.storage.Delete(ctx, picture.Path); err != nil {
		slog.Error("failed to delete picture file",
			slog.String("path", picture.Path),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// DeleteUserData はユーザーの全画像メタデータとファイルを削除する。
// プロビジョニングサガの削除経路から呼ばれる。アクティブ画像も対象になる。
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	paths, err := s.pictureRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete picture records: %w", err)
	}

	for _, p := range paths {
		if err := s.storage.Delete(ctx, p); err != nil {
			slog.Error("failed to delete picture file",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
	// ユーザーフォルダの掃除もベストエフォート
	if err := s.storage.DeletePrefix(ctx, path.Join("users", userID)); err != nil {
		slog.Error("failed to clean up user picture folder",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user pictures deleted",
		slog.String("user_id", userID),
		slog.Int("count", len(paths)),
	)
	return nil
}

// findOwned は指定ユーザー所有の画像を取得する。
// 他ユーザーの画像IDを指定した場合も未検出として扱う。
func (s *Service) findOwned(ctx context.Context, userID, pictureID string) (*model.Picture, error) {
	picture, err := s.pictureRepo.FindByID(ctx, pictureID)
	if err != nil {
		return nil, fmt.Errorf("failed to find picture: %w", err)
	}
	if picture == nil || picture.UserID != userID {
		return nil, model.NewPictureNotFoundError(pictureID)
	}
	return picture, nil
}
