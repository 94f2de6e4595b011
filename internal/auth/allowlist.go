package auth

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Allowlist は管理者メールアドレスの許可リスト。
// 外部ファイルから読み込み、稼働中に再読み込みできる。
// リストはユーザー作成時のロール決定にのみ参照される。作成後のロールは
// 再評価されないため、リストからの削除は既存adminを降格させない。
type Allowlist struct {
	mu     sync.RWMutex
	emails map[string]struct{}
	path   string
}

// NewAllowlist は空のAllowlistを生成する。
func NewAllowlist(path string) *Allowlist {
	return &Allowlist{
		emails: make(map[string]struct{}),
		path:   path,
	}
}

// Load は許可リストファイルを読み込んで内容を差し替える。
// 1行1メールアドレス、空行と#始まりの行は無視する。
// pathが空の場合は何もしない（許可リストなし＝全員client）。
func (a *Allowlist) Load() error {
	if a.path == "" {
		return nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("failed to open admin allowlist: %w", err)
	}
	defer f.Close()

	emails := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read admin allowlist: %w", err)
	}

	a.mu.Lock()
	a.emails = emails
	a.mu.Unlock()

	slog.Info("admin allowlist loaded",
		slog.String("path", a.path),
		slog.Int("entries", len(emails)),
	)
	return nil
}

// Contains はメールアドレスが許可リストに含まれるかを返す。
// 大文字小文字は区別しない。
func (a *Allowlist) Contains(email string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.emails[strings.ToLower(email)]
	return ok
}
