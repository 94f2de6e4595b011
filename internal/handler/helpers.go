package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/playerhub/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含まない。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	XP       int    `json:"xp"`
	PlayTime int    `json:"play_time_minutes"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
		XP:       user.XP,
		PlayTime: user.PlayTime,
	}
}

// slotResponse はスキンスロット1枠のAPIレスポンス。
type slotResponse struct {
	Number     int  `json:"number"`
	IsActive   bool `json:"is_active"`
	IsUnlocked bool `json:"is_unlocked"`
}

// slotRecordResponse はスロットレコードのAPIレスポンス。
type slotRecordResponse struct {
	UserID string         `json:"user_id"`
	Email  string         `json:"email"`
	Slots  []slotResponse `json:"slots"`
}

// toSlotRecordResponse はmodel.SlotRecordからAPIレスポンスに変換する。
func toSlotRecordResponse(record *model.SlotRecord) slotRecordResponse {
	slots := make([]slotResponse, 0, len(record.Slots))
	for _, s := range record.Slots {
		slots = append(slots, slotResponse{
			Number:     s.Number,
			IsActive:   s.IsActive,
			IsUnlocked: s.IsUnlocked,
		})
	}
	return slotRecordResponse{
		UserID: record.UserID,
		Email:  record.Email,
		Slots:  slots,
	}
}

// pictureResponse は画像レコードのAPIレスポンス。
type pictureResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Path     string `json:"path"`
	IsActive bool   `json:"is_active"`
}

// toPictureResponse はmodel.PictureからAPIレスポンスに変換する。
func toPictureResponse(p *model.Picture) pictureResponse {
	return pictureResponse{
		ID:       p.ID,
		UserID:   p.UserID,
		Path:     p.Path,
		IsActive: p.IsActive,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗時のレスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidToken:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeSlotNotFound, model.ErrCodePictureNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateUser, model.ErrCodeSlotLocked, model.ErrCodePictureActive:
		return http.StatusConflict
	case model.ErrCodeUpstreamFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
