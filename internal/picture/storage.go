// Package picture はプロフィール画像のビジネスロジックと
// バイナリ保存を提供する。
package picture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStorage は画像バイナリの保存先インターフェース。
type BlobStorage interface {
	// Put はkeyにデータを保存する。
	Put(ctx context.Context, key string, r io.Reader) error
	// Get はkeyのデータを返す。呼び出し側がCloseする。
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete はkeyのデータを削除する。存在しないkeyはエラーにしない。
	Delete(ctx context.Context, key string) error
	// DeletePrefix はprefix以下の全データを削除する。
	DeletePrefix(ctx context.Context, prefix string) error
}

// LocalStorage はローカルファイルシステムを使うBlobStorage実装。
// ローカル開発とテストで使用する。
type LocalStorage struct {
	root string
}

// NewLocalStorage はLocalStorageを生成する。
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// resolve はkeyをroot以下の絶対パスに解決する。
// root外へ抜けるkeyは拒否する。
func (s *LocalStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Put はkeyにデータを保存する。中間ディレクトリは自動作成する。
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create storage file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	return nil
}

// Get はkeyのデータを返す。
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}
	return f, nil
}

// Delete はkeyのデータを削除する。
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove storage file: %w", err)
	}
	return nil
}

// DeletePrefix はprefix以下の全データを削除する。
func (s *LocalStorage) DeletePrefix(ctx context.Context, prefix string) error {
	path, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove storage directory: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BlobStorage = (*LocalStorage)(nil)
