package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/playerhub/internal/model"
)

// PostgresSlotRepo はPostgreSQLを使用したスキンスロットリポジトリ。
// ユーザーごとに1行で3スロット分の状態を保持するため、
// アクティブスロットの付け替えは単一行のUPDATEで原子的に行われる。
type PostgresSlotRepo struct {
	db *sql.DB
}

// NewPostgresSlotRepo はPostgresSlotRepoを生成する。
func NewPostgresSlotRepo(db *sql.DB) *PostgresSlotRepo {
	return &PostgresSlotRepo{db: db}
}

// FindByEmail はメールアドレスでスロットレコードを検索する。見つからない場合はnilを返す。
func (r *PostgresSlotRepo) FindByEmail(ctx context.Context, email string) (*model.SlotRecord, error) {
	record := &model.SlotRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email,
		        slot1_number, slot1_active, slot1_unlocked,
		        slot2_number, slot2_active, slot2_unlocked,
		        slot3_number, slot3_active, slot3_unlocked,
		        created_at, updated_at
		 FROM skin_slots WHERE email = $1`,
		email,
	).Scan(
		&record.UserID, &record.Email,
		&record.Slots[0].Number, &record.Slots[0].IsActive, &record.Slots[0].IsUnlocked,
		&record.Slots[1].Number, &record.Slots[1].IsActive, &record.Slots[1].IsUnlocked,
		&record.Slots[2].Number, &record.Slots[2].IsActive, &record.Slots[2].IsUnlocked,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find slot record by email: %w", err)
	}
	return record, nil
}

// Create はスロットレコードを作成する。既存レコードがある場合はunique violationを返す。
func (r *PostgresSlotRepo) Create(ctx context.Context, record *model.SlotRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO skin_slots (user_id, email,
		        slot1_number, slot1_active, slot1_unlocked,
		        slot2_number, slot2_active, slot2_unlocked,
		        slot3_number, slot3_active, slot3_unlocked,
		        created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.UserID, record.Email,
		record.Slots[0].Number, record.Slots[0].IsActive, record.Slots[0].IsUnlocked,
		record.Slots[1].Number, record.Slots[1].IsActive, record.Slots[1].IsUnlocked,
		record.Slots[2].Number, record.Slots[2].IsActive, record.Slots[2].IsUnlocked,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert slot record: %w", err)
	}
	return nil
}

// Update はスロットレコードの3スロット全てを単一のUPDATEで更新する。
func (r *PostgresSlotRepo) Update(ctx context.Context, record *model.SlotRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE skin_slots
		 SET slot1_number = $1, slot1_active = $2, slot1_unlocked = $3,
		     slot2_number = $4, slot2_active = $5, slot2_unlocked = $6,
		     slot3_number = $7, slot3_active = $8, slot3_unlocked = $9,
		     updated_at = $10
		 WHERE email = $11`,
		record.Slots[0].Number, record.Slots[0].IsActive, record.Slots[0].IsUnlocked,
		record.Slots[1].Number, record.Slots[1].IsActive, record.Slots[1].IsUnlocked,
		record.Slots[2].Number, record.Slots[2].IsActive, record.Slots[2].IsUnlocked,
		record.UpdatedAt, record.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("slot record not found: %s", record.Email)
	}
	return nil
}

// DeleteByEmail はメールアドレスに紐づくスロットレコードを削除する。
// レコードが存在しない場合もエラーにしない。
func (r *PostgresSlotRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM skin_slots WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete slot record: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SlotRepository = (*PostgresSlotRepo)(nil)
