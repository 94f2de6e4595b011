package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/playerhub/internal/model"
)

// TokenTTL はベアラートークンの有効期間。リフレッシュ機構は存在しない。
const TokenTTL = time.Hour

// Tier はアクセスに必要なロール階層を表す。
type Tier string

const (
	// TierClient はclientまたはadminのトークンを受け入れる階層。
	TierClient Tier = "client_or_admin"
	// TierAdmin はadminのトークンのみを受け入れる階層。
	TierAdmin Tier = "admin_only"
)

// Claims はベアラートークンに焼き込まれる内容。
type Claims struct {
	UserID   string     `json:"user_id"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// roleKey はロールと署名鍵の対。
type roleKey struct {
	role model.Role
	key  []byte
}

// Keyring はロール別署名鍵によるトークンの発行と検証を行う。
// 鍵はロール階層ごとに独立しており、発行時のロールに対応する鍵でしか
// 署名されない。検証側は署名者の鍵を事前に知らないため、admin鍵から
// 順に試行する。この順序により、admin発行のトークンはclient階層の
// チェックも通過するが、client鍵で署名されたトークンがadmin階層を
// 通過することはない。
type Keyring struct {
	// admin鍵を先頭に置く。Verifyはこの順で試行する。
	keys []roleKey
}

// NewKeyring はadmin鍵とclient鍵からKeyringを生成する。
func NewKeyring(adminKey, clientKey []byte) *Keyring {
	return &Keyring{
		keys: []roleKey{
			{role: model.RoleAdmin, key: adminKey},
			{role: model.RoleClient, key: clientKey},
		},
	}
}

// Issue はユーザーのロールに対応する鍵でHS256署名トークンを発行する。
func (k *Keyring) Issue(user *model.User, now time.Time) (string, error) {
	key, err := k.keyFor(user.Role)
	if err != nil {
		return "", err
	}

	claims := &Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify は署名済みトークンを検証し、埋め込まれたユーザー情報を返す。
// tierがTierAdminの場合はadmin鍵のみを試行する。
// TierClientの場合はadmin鍵、client鍵の順に試行し、最初に署名が通った
// ものを採用する。署名が通った後、埋め込みロールが階層を満たさなければ
// 無効として扱う。
func (k *Keyring) Verify(signed string, tier Tier) (*model.User, error) {
	candidates := k.keys
	if tier == TierAdmin {
		candidates = k.keys[:1]
	}

	var claims *Claims
	for _, rk := range candidates {
		c := &Claims{}
		tok, err := jwt.ParseWithClaims(signed, c, func(t *jwt.Token) (interface{}, error) {
			return rk.key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err == nil && tok.Valid {
			claims = c
			break
		}
	}
	if claims == nil {
		return nil, model.NewUnauthorizedError()
	}

	// 署名は正しいがロールが階層を満たさない
	if tier == TierAdmin && claims.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}
	if !claims.Role.Valid() {
		return nil, model.NewForbiddenError()
	}

	return &model.User{
		ID:       claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// keyFor はロールに対応する署名鍵を返す。
func (k *Keyring) keyFor(role model.Role) ([]byte, error) {
	for _, rk := range k.keys {
		if rk.role == role {
			return rk.key, nil
		}
	}
	return nil, fmt.Errorf("no signing key for role %q", role)
}
