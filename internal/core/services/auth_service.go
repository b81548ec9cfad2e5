package services

import (
	"context"
	"errors"
	"time"

	"rillcall/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

type participantContextKey struct{}

// AuthService issues and checks the bearer tokens of the local UI.
type AuthService interface {
	GenerateToken(p domain.ParticipantID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	// Authorize checks that the token was issued for the local participant's user.
	Authorize(claims *Claims, local domain.ParticipantID) error
}

type Claims struct {
	Username string `json:"username"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// Participant returns the participant the token was minted for.
func (c *Claims) Participant() domain.ParticipantID {
	return domain.ParticipantID{Username: c.Username, ClientID: c.ClientID}
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
	}
}

func (s *authService) GenerateToken(p domain.ParticipantID) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: p.Username,
		ClientID: p.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Username != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func (s *authService) Authorize(claims *Claims, local domain.ParticipantID) error {
	if claims == nil || claims.Username != local.Username {
		return ErrUnauthorized
	}
	return nil
}

// WithParticipant stores the authenticated participant in ctx.
func WithParticipant(ctx context.Context, p domain.ParticipantID) context.Context {
	return context.WithValue(ctx, participantContextKey{}, p)
}

func ParticipantFromContext(ctx context.Context) (domain.ParticipantID, error) {
	p, ok := ctx.Value(participantContextKey{}).(domain.ParticipantID)
	if !ok {
		return domain.ParticipantID{}, ErrUnauthorized
	}
	return p, nil
}
