package services

import (
	"errors"
	"time"

	"telecall/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongSession = errors.New("token issued for a different session")
)

// AuthService issues and validates session-scoped access tokens. A
// token admits its holder to exactly one booked session; the relay and
// API reject tokens presented against any other session.
type AuthService interface {
	GenerateToken(userID domain.ParticipantID, userName string, sessionID domain.SessionID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateForSession(tokenString string, sessionID domain.SessionID) (*Claims, error)
}

type Claims struct {
	UserID    domain.ParticipantID `json:"user_id"`
	UserName  string               `json:"user_name"`
	SessionID domain.SessionID     `json:"session_id"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) GenerateToken(userID domain.ParticipantID, userName string, sessionID domain.SessionID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		UserName:  userName,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
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

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func (s *authService) ValidateForSession(tokenString string, sessionID domain.SessionID) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != sessionID {
		return nil, ErrWrongSession
	}
	return claims, nil
}
