package model

import "time"

// SlotCount は1ユーザーあたりのスキンスロット数。
const SlotCount = 3

// Slot はスキンスロット1枠の状態を表す。
type Slot struct {
	Number     int  // 装着中のスキン番号
	IsActive   bool
	IsUnlocked bool
}

// SlotRecord はユーザーごとのスロットレコードを表す。
// 外部向けAPIキーはemailだが、内部の正準キーはUserID
// （クロスサービス識別子の統一方針による）。
// 不変条件: IsActive = true のスロットは常にちょうど1つ。
type SlotRecord struct {
	UserID    string
	Email     string
	Slots     [SlotCount]Slot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDefaultSlotRecord はアカウント作成時の初期スロットレコードを生成する。
// スロット1のみアンロック済み・有効で、残りはロック状態。
func NewDefaultSlotRecord(userID, email string, now time.Time) *SlotRecord {
	return &SlotRecord{
		UserID: userID,
		Email:  email,
		Slots: [SlotCount]Slot{
			{Number: 1, IsActive: true, IsUnlocked: true},
			{Number: 2, IsActive: false, IsUnlocked: false},
			{Number: 3, IsActive: false, IsUnlocked: false},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ActiveIndex は有効なスロットのインデックス（0始まり）を返す。
// 有効なスロットが存在しない場合は-1を返す。
func (r *SlotRecord) ActiveIndex() int {
	for i := range r.Slots {
		if r.Slots[i].IsActive {
			return i
		}
	}
	return -1
}
