package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotConfigured      = errors.New("authentication is not configured")
)

// Operator is one API account sourced from configuration. PasswordHash is a
// bcrypt hash; plaintext passwords in config files are rejected at load time.
type Operator struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// Config holds the auth module configuration.
type Config struct {
	Enabled   bool       `mapstructure:"enabled"`
	Secret    string     `mapstructure:"secret"`
	TokenTTL  string     `mapstructure:"token_ttl"`
	Operators []Operator `mapstructure:"operators"`
}

// Service authenticates operators against the configured account list.
type Service struct {
	operators map[string]Operator
	tokens    *TokenService
	logger    *zap.Logger
}

// NewService creates an auth Service. Every configured operator must carry a
// bcrypt hash; anything else fails construction rather than at first login.
func NewService(cfg Config, tokens *TokenService, logger *zap.Logger) (*Service, error) {
	if len(cfg.Operators) == 0 {
		return nil, ErrNotConfigured
	}

	operators := make(map[string]Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		if op.Username == "" {
			return nil, fmt.Errorf("operator with empty username")
		}
		if _, err := bcrypt.Cost([]byte(op.PasswordHash)); err != nil {
			return nil, fmt.Errorf("operator %q: password_hash is not a bcrypt hash: %w", op.Username, err)
		}
		if op.Role == "" {
			op.Role = "admin"
		}
		operators[op.Username] = op
	}

	return &Service{operators: operators, tokens: tokens, logger: logger}, nil
}

// Tokens returns the token service for middleware use.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(username, password string) (string, error) {
	op, ok := s.operators[username]
	if !ok {
		// Burn a comparison anyway so unknown usernames cost the same.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(op.Username), []byte(username)) != 1 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(op.Username, op.Role)
	if err != nil {
		return "", err
	}

	s.logger.Info("operator logged in", zap.String("username", username))
	return token, nil
}

// dummyHash is a bcrypt hash of an unguessable throwaway value, compared
// against when the username is unknown to keep login timing uniform.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// HashPassword generates a bcrypt hash, used by the CLI helper that prepares
// operator entries for the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
