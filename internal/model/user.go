// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーのロール階層を表す。
type Role string

const (
	// RoleClient は一般ユーザーのロール。
	RoleClient Role = "client"
	// RoleAdmin は管理者のロール。
	RoleAdmin Role = "admin"
)

// Valid は定義済みロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// User はサービス利用ユーザー（Identity）を表す。
// PasswordHashはOAuth専用ユーザーの場合ローカルログイン不可能なプレースホルダーが入る。
// ロールは作成時に一度だけ決定され、以後再評価されない。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	XP           int
	PlayTime     int // 累計プレイ時間（分）
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized はパスワードハッシュを除去したコピーを返す。
// 認証成功後にハンドラーへ渡すユーザー情報はすべてこの形にする。
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}
