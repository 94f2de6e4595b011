package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultClientTimeout はサービス間HTTP呼び出しのタイムアウト。
const defaultClientTimeout = 10 * time.Second

// HTTPSlotsClient はスロットサービスのHTTPクライアント。
type HTTPSlotsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSlotsClient はHTTPSlotsClientを生成する。
func NewHTTPSlotsClient(baseURL string) *HTTPSlotsClient {
	return &HTTPSlotsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// CreateDefault はユーザーのデフォルトスロットレコードを作成する。
func (c *HTTPSlotsClient) CreateDefault(ctx context.Context, userID, email string) error {
	body, err := json.Marshal(map[string]string{
		"user_id": userID,
		"email":   email,
	})
	if err != nil {
		return fmt.Errorf("failed to encode slot create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/skins/create", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slot create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, http.StatusCreated)
}

// Delete はユーザーのスロットレコードを削除する。
func (c *HTTPSlotsClient) Delete(ctx context.Context, email string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/skins/user?email="+url.QueryEscape(email), nil)
	if err != nil {
		return fmt.Errorf("failed to build slot delete request: %w", err)
	}

	return c.do(req, http.StatusNoContent)
}

func (c *HTTPSlotsClient) do(req *http.Request, wantStatus int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slot service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("slot service returned status %d", resp.StatusCode)
	}
	return nil
}

// compile-time interface check
var _ SlotsClient = (*HTTPSlotsClient)(nil)

// HTTPPicturesClient は画像サービスのHTTPクライアント。
type HTTPPicturesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPicturesClient はHTTPPicturesClientを生成する。
func NewHTTPPicturesClient(baseURL string) *HTTPPicturesClient {
	return &HTTPPicturesClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// CreateDefault はユーザーのデフォルトプロフィール画像を作成する。
func (c *HTTPPicturesClient) CreateDefault(ctx context.Context, userID string) error {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to encode picture create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pictures/default", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build picture create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, http.StatusCreated)
}

// DeleteUserData はユーザーの全画像とファイルを削除する。
func (c *HTTPPicturesClient) DeleteUserData(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/pictures/user/"+url.PathEscape(userID), nil)
	if err != nil {
		return fmt.Errorf("failed to build picture delete request: %w", err)
	}

	return c.do(req, http.StatusNoContent)
}

func (c *HTTPPicturesClient) do(req *http.Request, wantStatus int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("picture service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("picture service returned status %d", resp.StatusCode)
	}
	return nil
}

// compile-time interface check
var _ PicturesClient = (*HTTPPicturesClient)(nil)
