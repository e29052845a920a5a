package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// RoleOperator is the only role the control plane knows about today.
const RoleOperator = "operator"

// Service authenticates the configured operator account and issues
// session tokens for the management API.
type Service struct {
	config       Config
	username     string
	passwordHash string
}

// NewService builds the operator auth service. The password is hashed
// once up front so plaintext never lingers past startup.
func NewService(config Config, username, password string) (*Service, error) {
	if username == "" || password == "" {
		return nil, errors.New("operator username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	return &Service{
		config:       config,
		username:     username,
		passwordHash: hash,
	}, nil
}

// Login verifies the credentials and returns a signed session token.
func (s *Service) Login(username, password string) (string, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordOK := CheckPassword(password, s.passwordHash)
	if !usernameOK || !passwordOK {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.config, s.username, RoleOperator)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Validate checks a session token presented to the management API.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return ValidateToken(s.config.Secret, tokenString)
}
