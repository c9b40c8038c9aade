package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type 标识令牌用途。
//
// Access Token 不携带 type 声明（缺省即 access），
// Refresh / 邮箱验证令牌携带显式 type 声明，校验时必须匹配。
type Type string

const (
	TypeAccess            Type = "access"
	TypeRefresh           Type = "refresh"
	TypeEmailVerification Type = "email_verification"
)

// RefreshTokenTTL Refresh Token 固定有效期。
const RefreshTokenTTL = 7 * 24 * time.Hour

// Claims 是封闭的声明结构，防止开放 map 带来的声明注入。
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type,omitempty"`
}

// Codec 负责签发与校验 JWT（HS256）。
//
// 校验是完全无状态的：除签名密钥外不依赖任何持久化数据。
type Codec struct {
	secret    []byte
	accessTTL time.Duration
	verifyTTL time.Duration
	now       func() time.Time
}

// NewCodec 创建令牌编解码器。
//
// 参数:
//
//	secret: 签名密钥
//	accessTTL: Access Token 有效期
//	verifyTTL: 邮箱验证令牌有效期
func NewCodec(secret string, accessTTL, verifyTTL time.Duration) *Codec {
	return &Codec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		verifyTTL: verifyTTL,
		now:       time.Now,
	}
}

// IssueAccess 签发 Access Token（subject 为账号邮箱，无 type 声明）。
func (c *Codec) IssueAccess(email string) (string, error) {
	return c.issue(email, "", c.accessTTL)
}

// IssueRefresh 签发 Refresh Token（7 天有效期）。
func (c *Codec) IssueRefresh(email string) (string, error) {
	return c.issue(email, TypeRefresh, RefreshTokenTTL)
}

// IssueEmailVerification 签发邮箱验证令牌。
func (c *Codec) IssueEmailVerification(email string) (string, error) {
	return c.issue(email, TypeEmailVerification, c.verifyTTL)
}

func (c *Codec) issue(email string, typ Type, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TokenType: string(typ),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify 校验令牌并返回 subject（账号邮箱）。
//
// 签名、格式、过期、类型不匹配任何一项失败都返回 ok=false，不向调用方抛错。
// expected 为 TypeAccess 时令牌必须不携带 type（或为 "access"），
// 拿 Refresh Token 冒充 Access Token 会被拒绝。
func (c *Codec) Verify(tokenString string, expected Type) (string, bool) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil || !parsed.Valid {
		return "", false
	}

	got := Type(claims.TokenType)
	if got == "" {
		got = TypeAccess
	}
	if got != expected {
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// NewResetToken 生成密码重置用的高熵随机不透明令牌。
//
// 重置令牌不走 JWT：它必须支持服务端单次使用 / 主动作废，
// 因此以明文随机串存库并带显式过期时间列。
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
