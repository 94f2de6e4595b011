package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/playerhub/internal/gateway"
	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/picture"
)

// PictureServiceInterface は画像ハンドラーが必要とするサービスインターフェース。
type PictureServiceInterface interface {
	Upload(ctx context.Context, userID, filename string, r io.Reader) (*model.Picture, error)
	List(ctx context.Context, userID string) ([]*model.Picture, error)
	SetActive(ctx context.Context, userID, pictureID string) (*model.Picture, error)
	Delete(ctx context.Context, userID, pictureID string) error
	CreateDefault(ctx context.Context, userID string) (*model.Picture, error)
	DeleteUserData(ctx context.Context, userID string) error
}

// PictureHandler はアバター画像管理のHTTPハンドラー。
// 参照・変更系はAuthorizationゲートウェイの背後に置く。
// default/user配下は認証サービスのサガからのみ呼ばれる内部エンドポイント。
type PictureHandler struct {
	service PictureServiceInterface
}

// NewPictureHandler はPictureHandlerを生成する。
func NewPictureHandler(service PictureServiceInterface) *PictureHandler {
	return &PictureHandler{
		service: service,
	}
}

// Upload は画像ファイルをアップロードする。
// multipart/form-dataの"picture"フィールドを受け取る。
// POST /pictures
func (h *PictureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := r.ParseMultipartForm(picture.MaxUploadBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("multipart/form-dataの解析に失敗しました"))
		return
	}

	file, header, err := r.FormFile("picture")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("pictureフィールドがありません"))
		return
	}
	defer file.Close()

	created, err := h.service.Upload(r.Context(), user.ID, header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPictureResponse(created))
}

// List は認証済みユーザーの画像一覧を返す。
// GET /pictures
func (h *PictureHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	pictures, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]pictureResponse, 0, len(pictures))
	for _, p := range pictures {
		res = append(res, toPictureResponse(p))
	}

	writeJSON(w, http.StatusOK, res)
}

// SetActive は指定画像を有効化する。有効な画像は常に1枚だけになる。
// POST /pictures/{id}/activate
func (h *PictureHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	pictureID := chi.URLParam(r, "id")

	updated, err := h.service.SetActive(r.Context(), user.ID, pictureID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPictureResponse(updated))
}

// Delete は指定画像を削除する。有効中の画像は削除できない。
// DELETE /pictures/{id}
func (h *PictureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := gateway.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	pictureID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), user.ID, pictureID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// createDefaultPictureRequest はデフォルト画像作成リクエストのボディ。
type createDefaultPictureRequest struct {
	UserID string `json:"user_id"`
}

// CreateDefault はデフォルト画像を作成する。サガ専用の内部エンドポイント。
// POST /pictures/default
func (h *PictureHandler) CreateDefault(w http.ResponseWriter, r *http.Request) {
	var req createDefaultPictureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.CreateDefault(r.Context(), req.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPictureResponse(created))
}

// DeleteUserData は指定ユーザーの画像レコードとファイルを一括削除する。
// サガ専用の内部エンドポイント。
// DELETE /pictures/user/{id}
func (h *PictureHandler) DeleteUserData(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.service.DeleteUserData(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
