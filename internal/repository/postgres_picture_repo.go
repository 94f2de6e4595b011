package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/playerhub/internal/model"
)

// PostgresPictureRepo はPostgreSQLを使用したプロフィール画像リポジトリ。
type PostgresPictureRepo struct {
	db *sql.DB
}

// NewPostgresPictureRepo はPostgresPictureRepoを生成する。
func NewPostgresPictureRepo(db *sql.DB) *PostgresPictureRepo {
	return &PostgresPictureRepo{db: db}
}

// FindByID は指定IDの画像を取得する。見つからない場合はnilを返す。
func (r *PostgresPictureRepo) FindByID(ctx context.Context, id string) (*model.Picture, error) {
	picture := &model.Picture{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, path, is_active, created_at FROM pictures WHERE id = $1`,
		id,
	).Scan(&picture.ID, &picture.UserID, &picture.Path, &picture.IsActive, &picture.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find picture by ID: %w", err)
	}
	return picture, nil
}

// ListByUserID はユーザーの画像一覧を作成日時昇順で返す。
func (r *PostgresPictureRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Picture, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, path, is_active, created_at
		 FROM pictures WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}
	defer rows.Close()

	var pictures []*model.Picture
	for rows.Next() {
		picture := &model.Picture{}
		if err := rows.Scan(&picture.ID, &picture.UserID, &picture.Path, &picture.IsActive, &picture.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan picture row: %w", err)
		}
		pictures = append(pictures, picture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picture rows: %w", err)
	}
	return pictures, nil
}

// FindActiveByUserID はユーザーのアクティブ画像を取得する。見つからない場合はnilを返す。
func (r *PostgresPictureRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Picture, error) {
	picture := &model.Picture{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, path, is_active, created_at
		 FROM pictures WHERE user_id = $1 AND is_active = TRUE`,
		userID,
	).Scan(&picture.ID, &picture.UserID, &picture.Path, &picture.IsActive, &picture.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active picture: %w", err)
	}
	return picture, nil
}

// Create は画像メタデータを作成する。
func (r *PostgresPictureRepo) Create(ctx context.Context, picture *model.Picture) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pictures (id, user_id, path, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		picture.ID, picture.UserID, picture.Path, picture.IsActive, picture.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert picture: %w", err)
	}
	return nil
}

// SetActive は指定画像をアクティブにし、同一ユーザーの他の画像を
// 同一トランザクションで非アクティブにする。
func (r *PostgresPictureRepo) SetActive(ctx context.Context, userID, pictureID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE pictures SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate pictures: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE pictures SET is_active = TRUE WHERE id = $1 AND user_id = $2`,
		pictureID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to activate picture: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("picture not found: %s", pictureID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの画像を削除する。
func (r *PostgresPictureRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pictures WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("picture not found: %s", id)
	}
	return nil
}

// DeleteByUserID はユーザーの全画像を削除し、削除した画像のパス一覧を返す。
func (r *PostgresPictureRepo) DeleteByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM pictures WHERE user_id = $1 RETURNING path`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete pictures: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan deleted picture path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted picture paths: %w", err)
	}
	return paths, nil
}

// compile-time interface check
var _ PictureRepository = (*PostgresPictureRepo)(nil)
