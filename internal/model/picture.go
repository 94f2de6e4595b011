package model

import "time"

// Picture はユーザーのアバター画像レコードを表す。
// 各ユーザーにつき有効（IsActive = true）な画像は常に1枚だけ存在する。
type Picture struct {
	ID        string
	UserID    string
	Path      string // ストレージ上の相対パス
	IsActive  bool
	CreatedAt time.Time
}
