// Package skins はスキンスロットのビジネスロジックを提供する。
package skins

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// Service はスロット操作のビジネスロジックを提供する。
type Service struct {
	slotRepo repository.SlotRepository
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(slotRepo repository.SlotRepository) *Service {
	return &Service{
		slotRepo: slotRepo,
		now:      time.Now,
	}
}

// Get はメールアドレスに紐づくスロットレコードを返す。
func (s *Service) Get(ctx context.Context, email string) (*model.SlotRecord, error) {
	record, err := s.slotRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find slot record: %w", err)
	}
	if record == nil {
		return nil, model.NewSlotNotFoundError(email)
	}
	return record, nil
}

// CreateDefault はユーザーの初期スロットレコードを作成する。
// 既にレコードが存在する場合は既存レコードを返す。プロビジョニングサガの
// リトライで二重作成エラーにならないよう冪等にしている。
func (s *Service) CreateDefault(ctx context.Context, userID, email string) (*model.SlotRecord, error) {
	if email == "" {
		return nil, model.NewValidationError("メールアドレスが空です")
	}

	existing, err := s.slotRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find slot record: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	record := model.NewDefaultSlotRecord(userID, email, s.now())
	if err := s.slotRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create slot record: %w", err)
	}

	slog.Info("default slot record created",
		slog.String("user_id", userID),
		slog.String("email", email),
	)
	return record, nil
}

// Activate は指定位置のスロットを有効化する。
// ロック中のスロットの有効化は拒否する。成功時は指定スロットのみが
// 有効になり、他のスロットは同時に無効化される。
func (s *Service) Activate(ctx context.Context, email string, position int) (*model.SlotRecord, error) {
	record, err := s.getForUpdate(ctx, email, position)
	if err != nil {
		return nil, err
	}

	if !record.Slots[position-1].IsUnlocked {
		return nil, model.NewSlotLockedError(position)
	}

	for i := range record.Slots {
		record.Slots[i].IsActive = i == position-1
	}
	record.UpdatedAt = s.now()

	if err := s.slotRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update slot record: %w", err)
	}
	return record, nil
}

// Unlock は指定位置のスロットをアンロックする。
// 既にアンロック済みの場合も成功として扱う。
func (s *Service) Unlock(ctx context.Context, email string, position int) (*model.SlotRecord, error) {
	record, err := s.getForUpdate(ctx, email, position)
	if err != nil {
		return nil, err
	}

	record.Slots[position-1].IsUnlocked = true
	record.UpdatedAt = s.now()

	if err := s.slotRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update slot record: %w", err)
	}
	return record, nil
}

// SetSlotNumber は指定位置のスロットに装着するスキン番号を設定する。
// ロック中のスロットへの設定は拒否する。
func (s *Service) SetSlotNumber(ctx context.Context, email string, position, number int) (*model.SlotRecord, error) {
	if number < 0 {
		return nil, model.NewValidationError("スキン番号は0以上である必要があります")
	}

	record, err := s.getForUpdate(ctx, email, position)
	if err != nil {
		return nil, err
	}

	if !record.Slots[position-1].IsUnlocked {
		return nil, model.NewSlotLockedError(position)
	}

	record.Slots[position-1].Number = number
	record.UpdatedAt = s.now()

	if err := s.slotRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update slot record: %w", err)
	}
	return record, nil
}

// Delete はメールアドレスに紐づくスロットレコードを削除する。
// プロビジョニングサガの削除・補償経路から呼ばれる。
func (s *Service) Delete(ctx context.Context, email string) error {
	if err := s.slotRepo.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("failed to delete slot record: %w", err)
	}
	return nil
}

// getForUpdate は更新対象のレコードを取得し、位置を検証する。
func (s *Service) getForUpdate(ctx context.Context, email string, position int) (*model.SlotRecord, error) {
	if position < 1 || position > model.SlotCount {
		return nil, model.NewValidationError(
			fmt.Sprintf("スロット位置は1〜%dの範囲で指定してください", model.SlotCount))
	}

	record, err := s.slotRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find slot record: %w", err)
	}
	if record == nil {
		return nil, model.NewSlotNotFoundError(email)
	}
	return record, nil
}
