// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, slot, picture, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeDuplicateUser      = "DUPLICATE_USER"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUpstreamFailure    = "UPSTREAM_FAILURE"
	ErrCodeSlotNotFound       = "SLOT_NOT_FOUND"
	ErrCodeSlotLocked         = "SLOT_LOCKED"
	ErrCodePictureNotFound    = "PICTURE_NOT_FOUND"
	ErrCodePictureActive      = "PICTURE_ACTIVE"
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー不存在とパスワード不一致は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "メールアドレスを確認してください。",
	}
}

// NewDuplicateUserError はメールアドレス重複エラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidTokenError は検証トークンの無効エラーを生成する。
// 存在しないトークンと期限切れトークンは意図的に区別しない
// （トークンの存在を外部から探査できないようにするため）。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "リンクが無効か、有効期限が切れています。",
		Category: "validation",
		Action:   "最初から手続きをやり直してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者権限が必要です。",
	}
}

// NewUpstreamFailureError は依存サービス障害エラーを生成する。
// 上流のエラー内容はクライアントに返さず、ログにのみ記録する。
func NewUpstreamFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailure,
		Message:  "依存サービスとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSlotNotFoundError はスロットレコード未検出エラーを生成する。
func NewSlotNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeSlotNotFound,
		Message:  fmt.Sprintf("スロット情報が見つかりません: %s", email),
		Category: "slot",
		Action:   "アカウントが正しく作成されているか確認してください。",
	}
}

// NewSlotLockedError はロック中スロットの有効化エラーを生成する。
func NewSlotLockedError(number int) *APIError {
	return &APIError{
		Code:     ErrCodeSlotLocked,
		Message:  fmt.Sprintf("スロット%dはロックされています。", number),
		Category: "slot",
		Action:   "先にスロットをアンロックしてください。",
	}
}

// NewPictureNotFoundError は画像未検出エラーを生成する。
func NewPictureNotFoundError(pictureID string) *APIError {
	return &APIError{
		Code:     ErrCodePictureNotFound,
		Message:  fmt.Sprintf("指定された画像が見つかりません: %s", pictureID),
		Category: "picture",
		Action:   "画像IDを確認してください。",
	}
}

// NewPictureActiveError は使用中画像の削除エラーを生成する。
func NewPictureActiveError() *APIError {
	return &APIError{
		Code:     ErrCodePictureActive,
		Message:  "使用中の画像は削除できません。",
		Category: "picture",
		Action:   "先に別の画像を有効にしてから削除してください。",
	}
}
