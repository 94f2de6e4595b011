package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/playerhub/internal/gateway"
	"github.com/hitoshi/playerhub/internal/model"
)

// SkinsServiceInterface はスキンスロットハンドラーが必要とするサービスインターフェース。
type SkinsServiceInterface interface {
	Get(ctx context.Context, email string) (*model.SlotRecord, error)
	CreateDefault(ctx context.Context, userID, email string) (*model.SlotRecord, error)
	Activate(ctx context.Context, email string, position int) (*model.SlotRecord, error)
	Unlock(ctx context.Context, email string, position int) (*model.SlotRecord, error)
	SetSlotNumber(ctx context.Context, email string, position, number int) (*model.SlotRecord, error)
	Delete(ctx context.Context, email string) error
}

// SkinsHandler はスキンスロット管理のHTTPハンドラー。
// 参照・変更系はAuthorizationゲートウェイの背後に置き、対象レコードは
// 認証済みユーザーのemail（スロットサービスの外部キー）で特定する。
// create/deleteは認証サービスのサガからのみ呼ばれる内部エンドポイント。
type SkinsHandler struct {
	service SkinsServiceInterface
}

// NewSkinsHandler はSkinsHandlerを生成する。
func NewSkinsHandler(service SkinsServiceInterface) *SkinsHandler {
	return &SkinsHandler{
		service: service,
	}
}

// createSlotsRequest はスロットレコード作成リクエストのボディ。
type createSlotsRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Create は初期スロットレコードを作成する。サガ専用の内部エンドポイント。
// POST /skins/create
func (h *SkinsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.CreateDefault(r.Context(), req.UserID, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSlotRecordResponse(record))
}

// Get は認証済みユーザーのスロットレコードを返す。
// GET /skins/user
func (h *SkinsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	record, err := h.service.Get(r.Context(), user.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotRecordResponse(record))
}

// positionRequest はスロット位置を指定するリクエストのボディ。
type positionRequest struct {
	Position int `json:"position"`
}

// Activate は指定位置のスロットを有効化する。ロック中のスロットは拒否される。
// POST /skins/activate
func (h *SkinsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.Activate(r.Context(), user.Email, req.Position)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotRecordResponse(record))
}

// Unlock は指定位置のスロットをアンロックする。
// POST /skins/unlock
func (h *SkinsHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.Unlock(r.Context(), user.Email, req.Position)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotRecordResponse(record))
}

// setSlotNumberRequest は装着スキン番号変更リクエストのボディ。
type setSlotNumberRequest struct {
	Position int `json:"position"`
	Number   int `json:"number"`
}

// SetSlotNumber はアンロック済みスロットの装着スキン番号を変更する。
// POST /skins/set-slot-number
func (h *SkinsHandler) SetSlotNumber(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req setSlotNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.SetSlotNumber(r.Context(), user.Email, req.Position, req.Number)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotRecordResponse(record))
}

// Delete は指定emailのスロットレコードを削除する。サガ専用の内部エンドポイント。
// DELETE /skins/user?email=xxx
func (h *SkinsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailが空です"))
		return
	}

	if err := h.service.Delete(r.Context(), email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
