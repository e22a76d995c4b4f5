package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/pkg/models"
)

const tokenIssuer = "tvtantrum"

// TierAdmin is the only tier allowed to act on behalf of another user.
const TierAdmin = "admin"

var apiKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://tvtantrum.com/api-keys"))

// AuthService issues and checks API tokens. Sessions live in the hot Redis
// instance; without it tokens are validated by signature alone.
type AuthService struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	jwtSecret   []byte
}

func NewAuthService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *AuthService {
	return &AuthService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		jwtSecret:   []byte(cfg.Auth.JWTSecret),
	}
}

func (s *AuthService) GenerateToken(userID uuid.UUID, apiKey, userTier string) (string, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		UserID:   userID,
		APIKey:   apiKey,
		UserTier: userTier,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Auth.TokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	if s.redisClient != nil {
		err = s.redisClient.Set(context.Background(), sessionKey(userID), tokenString, s.config.Auth.TokenTTL).Err()
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to store session in Redis")
		}
	}

	return tokenString, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if s.redisClient == nil {
		return claims, nil
	}

	exists, err := s.redisClient.Exists(context.Background(), sessionKey(claims.UserID)).Result()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to check session in Redis")
	} else if exists == 0 {
		return nil, fmt.Errorf("session not found or expired")
	}

	return claims, nil
}

func (s *AuthService) RevokeToken(userID uuid.UUID) error {
	if s.redisClient == nil {
		return nil
	}
	err := s.redisClient.Del(context.Background(), sessionKey(userID)).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func sessionKey(userID uuid.UUID) string {
	return "session:" + userID.String()
}

// ValidateAPIKey maps an API key to its tier. Keys come from
// auth.api_keys; the demo keys apply when none are configured.
func (s *AuthService) ValidateAPIKey(apiKey string) (string, error) {
	keys := s.config.Auth.APIKeys
	if len(keys) == 0 {
		keys = demoAPIKeys
	}

	if tier, exists := keys[apiKey]; exists {
		return tier, nil
	}

	return "", fmt.Errorf("invalid API key")
}

// APIKeyUserID is the fixed identity of callers authenticating with apiKey.
// Only admin keys may choose a different one.
func (s *AuthService) APIKeyUserID(apiKey string) uuid.UUID {
	return uuid.NewSHA1(apiKeyNamespace, []byte(apiKey))
}

var demoAPIKeys = map[string]string{
	"demo-free-key":    "free",
	"demo-premium-key": "premium",
	"demo-admin-key":   "admin",
}
