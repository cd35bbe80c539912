package auth

import (
	"errors"
	"fmt"
	"time"

	"telecom-calls/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// clockSkew is tolerated on exp/iat checks.
const clockSkew = 30 * time.Second

type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      map[TokenType]time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl: map[TokenType]time.Duration{
			TokenTypeAccess:    cfg.AccessTokenTTL,
			TokenTypeRefresh:   cfg.RefreshTokenTTL,
			TokenTypeSignaling: cfg.SignalingTicketTTL,
		},
	}, nil
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssuePair mints an access token carrying the platform role and a role-less refresh token.
func (m *Manager) IssuePair(now time.Time, userID, role string) (TokenPair, error) {
	access, err := m.issue(now, TokenTypeAccess, userID, role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(now, TokenTypeRefresh, userID, "")
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SignalingTicket is what a client presents as ?ticket= when opening the call event socket.
type SignalingTicket struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// IssueSignalingTicket mints a short-lived token for the websocket upgrade, so the
// long-lived access token never travels in a URL.
func (m *Manager) IssueSignalingTicket(now time.Time, userID, role string) (SignalingTicket, error) {
	tok, err := m.issue(now, TokenTypeSignaling, userID, role)
	if err != nil {
		return SignalingTicket{}, err
	}
	return SignalingTicket{Ticket: tok, ExpiresIn: int(m.ttl[TokenTypeSignaling] / time.Second)}, nil
}

// Verify parses and validates tokenString as a token of the expected type.
// Every failure wraps ErrInvalidToken; a valid token of another type also wraps ErrWrongTokenType.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch {
	case claims.TokenType != expected:
		return Claims{}, fmt.Errorf("%w: %w: got %q", ErrInvalidToken, ErrWrongTokenType, claims.TokenType)
	case claims.UserID == "":
		return Claims{}, fmt.Errorf("%w: user_id missing", ErrInvalidToken)
	case expected.carriesRole() && claims.Role == "":
		return Claims{}, fmt.Errorf("%w: role missing", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) issue(now time.Time, tokenType TokenType, userID, role string) (string, error) {
	if userID == "" {
		return "", errors.New("user_id required")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl[tokenType])),
			ID:        uuid.NewString(),
		},
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
