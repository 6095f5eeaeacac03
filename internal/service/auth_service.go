package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alure/alure-api/internal/config"
	"github.com/alure/alure-api/internal/domain/user"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims carried by the admin access token. The rest of the system only ever
// consumes the boolean is-admin capability.
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  user.Repository
	cfg    *config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(users user.Repository, cfg *config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		cfg:    cfg,
		logger: logger.Named("AuthService"),
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", ierr.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ierr.ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: u.Username,
		IsAdmin:  u.IsAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return "", fmt.Errorf("%w: token signing failed", ierr.ErrInternalServer)
	}

	s.logger.Info("User logged in", zap.String("username", u.Username))
	return signed, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}
	return &claims, nil
}

// CheckPassword re-verifies a caller's own password. Gate for revealing
// decrypted PII.
func (s *AuthService) CheckPassword(ctx context.Context, username, password string) error {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return ierr.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("Password re-check failed", zap.String("username", username))
		return ierr.ErrInvalidCredentials
	}
	return nil
}
