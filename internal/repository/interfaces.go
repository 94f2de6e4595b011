// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/playerhub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はunique violationを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword は指定ユーザーのパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// AddStats は指定ユーザーのXPとプレイ時間を加算する。
	AddStats(ctx context.Context, id string, xp, playTimeMinutes int) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SlotRepository はスキンスロットデータの永続化インターフェース。
// スロットレコードはユーザーごとに1件で、メールアドレスをワイヤキーに使う。
type SlotRepository interface {
	// FindByEmail はメールアドレスでスロットレコードを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.SlotRecord, error)

	// Create はスロットレコードを作成する。既存レコードがある場合はunique violationを返す。
	Create(ctx context.Context, record *model.SlotRecord) error

	// Update はスロットレコードの3スロット全てを単一トランザクションで更新する。
	// アクティブスロットの付け替えが部分的に観測されることはない。
	Update(ctx context.Context, record *model.SlotRecord) error

	// DeleteByEmail はメールアドレスに紐づくスロットレコードを削除する。
	DeleteByEmail(ctx context.Context, email string) error
}

// PictureRepository はプロフィール画像メタデータの永続化インターフェース。
type PictureRepository interface {
	// FindByID は指定IDの画像を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Picture, error)

	// ListByUserID はユーザーの画像一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Picture, error)

	// FindActiveByUserID はユーザーのアクティブ画像を取得する。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.Picture, error)

	// Create は画像メタデータを作成する。
	Create(ctx context.Context, picture *model.Picture) error

	// SetActive は指定画像をアクティブにし、同一ユーザーの他の画像を
	// 同一トランザクションで非アクティブにする。
	SetActive(ctx context.Context, userID, pictureID string) error

	// DeleteByID は指定IDの画像を削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全画像を削除し、削除した画像のパス一覧を返す。
	// 呼び出し側はパスを使ってストレージ上のファイルを掃除する。
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)
}
