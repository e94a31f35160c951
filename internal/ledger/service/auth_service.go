package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuthConfig 钱包登录参数
type AuthConfig struct {
	Secret      string
	Issuer      string
	TokenExpire time.Duration
	NonceTTL    time.Duration
}

var ErrInvalidSignature = &Error{Kind: KindAuthorization, Reason: "InvalidSignature"}

// AuthService 钱包签名登录：nonce 存 redis，签名恢复地址后签发 JWT
type AuthService struct {
	registry *RegistryService
	rdb      *redis.Client
	cfg      AuthConfig
}

func NewAuthService(registry *RegistryService, rdb *redis.Client, cfg AuthConfig) *AuthService {
	if cfg.TokenExpire <= 0 {
		cfg.TokenExpire = 24 * time.Hour
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = 5 * time.Minute
	}
	return &AuthService{
		registry: registry,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// NonceChallenge 待签名的登录挑战
type NonceChallenge struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expires_in"`
}

// LoginRequest 登录请求，signature 为 personal_sign 结果
type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	Address     string   `json:"address"`
	Roles       []string `json:"roles"`
}

func nonceKey(address string) string {
	return "auth:nonce:" + address
}

// LoginMessage 钱包签名的原文
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to CargoTrack\nAddress: %s\nNonce: %s", address, nonce)
}

// Nonce 生成一次性登录挑战
func (s *AuthService) Nonce(ctx context.Context, address string) (*NonceChallenge, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	nonce := uuid.New().String()
	if err := s.rdb.Set(ctx, nonceKey(addr), nonce, s.cfg.NonceTTL).Err(); err != nil {
		return nil, fmt.Errorf("store nonce: %w", err)
	}
	return &NonceChallenge{
		Address:   addr,
		Nonce:     nonce,
		Message:   LoginMessage(addr, nonce),
		ExpiresIn: int64(s.cfg.NonceTTL.Seconds()),
	}, nil
}

// Login 校验签名并签发访问令牌，nonce 用后即删
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	addr, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	nonce, err := s.rdb.GetDel(ctx, nonceKey(addr)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSignature.With("no pending nonce for %s", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("load nonce: %w", err)
	}

	signer, err := RecoverSigner(LoginMessage(addr, nonce), req.Signature)
	if err != nil {
		return nil, err
	}
	if signer != addr {
		return nil, ErrInvalidSignature.With("signature was made by %s", signer)
	}

	roles, err := s.registry.Roles(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	token, err := s.IssueToken(addr, roles)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(s.cfg.TokenExpire.Seconds()),
		Address:     addr,
		Roles:       roles,
	}, nil
}

// IssueToken 签发访问令牌
func (s *AuthService) IssueToken(address string, roles []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   address,
		"addr":  address,
		"roles": roles,
		"iss":   s.cfg.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.TokenExpire).Unix(),
		"jti":   uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// RecoverSigner 从 personal_sign 签名恢复签名地址
func RecoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", ErrInvalidSignature.With("signature is not hex")
	}
	if len(sig) != crypto.SignatureLength {
		return "", ErrInvalidSignature.With("signature must be %d bytes", crypto.SignatureLength)
	}
	// 钱包返回的 v 为 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", ErrInvalidSignature.With("recover public key: %v", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
