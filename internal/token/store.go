// Package token は登録・パスワードリセット用の短命検証トークンを管理する。
// トークンはメールで届くリンクに埋め込まれ、1回だけ引き換え可能。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// Purpose はトークンの用途を表す。
type Purpose string

const (
	// PurposeRegistration は新規登録確認用。
	PurposeRegistration Purpose = "registration"
	// PurposePasswordReset はパスワードリセット用。
	PurposePasswordReset Purpose = "password_reset"
)

// TTL は用途ごとの有効期間を返す。
func (p Purpose) TTL() time.Duration {
	if p == PurposePasswordReset {
		return 60 * time.Minute
	}
	return 10 * time.Minute
}

// Payload はトークンに紐づく保留中の申請内容を表す。
// 登録トークンは全フィールド、リセットトークンはEmailのみを使用する。
type Payload struct {
	Email        string
	Username     string
	PasswordHash string
}

// entry はストア内部のトークンエントリ。
type entry struct {
	purpose   Purpose
	payload   Payload
	issuedAt  time.Time
	expiresAt time.Time
}

// Store は検証トークンのインメモリストア。
// 時刻と乱数源を注入可能にし、期限切れ動作を決定的にテストできるようにする。
// 引き換えはロック下のチェック＆削除で行い、同一トークンの二重引き換えを防ぐ。
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	rand    io.Reader
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRand は乱数源を差し替える。テスト用。
func WithRand(r io.Reader) Option {
	return func(s *Store) { s.rand = r }
}

// NewStore は空のStoreを生成する。
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue は新しいトークンを発行して保存し、トークン文字列を返す。
// トークンはemail・発行時刻・ランダムノンスのsha256ハッシュ（hex）。
func (s *Store) Issue(purpose Purpose, payload Payload) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to read random nonce: %w", err)
	}

	now := s.now()

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", payload.Email, now.UnixNano())
	h.Write(nonce)
	tok := hex.EncodeToString(h.Sum(nil))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tok] = entry{
		purpose:   purpose,
		payload:   payload,
		issuedAt:  now,
		expiresAt: now.Add(purpose.TTL()),
	}

	return tok, nil
}

// Redeem はトークンを1回だけ引き換える。
// 有効なトークンであればエントリを削除してペイロードを返す。
// 存在しない・期限切れ・用途不一致はすべてfalseで、呼び出し側から区別できない。
func (s *Store) Redeem(tok string, purpose Purpose) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[tok]
	if !ok || e.purpose != purpose || s.now().After(e.expiresAt) {
		return Payload{}, false
	}

	delete(s.entries, tok)
	return e.payload, true
}

// Peek はトークンを消費せずにペイロードを返す。診断専用であり、
// 認可判断に使用してはならない。
func (s *Store) Peek(tok string) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[tok]
	if !ok || s.now().After(e.expiresAt) {
		return Payload{}, false
	}
	return e.payload, true
}

// Sweep は期限切れエントリをすべて削除し、削除件数を返す。
// 定期実行されるが、手動で呼んでもよい。冪等。
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for tok, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, tok)
			removed++
		}
	}
	return removed
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
