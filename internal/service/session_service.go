package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for a token that does not verify.
var ErrInvalidSession = errors.New("invalid session token")

const sessionIssuer = "quizcoach"

// SessionClaims identify an anonymous quiz session. The session id is the
// JWT ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionService issues and verifies signed session tokens.
type SessionService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(secret string, expiry time.Duration) *SessionService {
	return &SessionService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Issue opens a new session and returns its id and signed token.
func (s *SessionService) Issue() (uuid.UUID, string, error) {
	id := uuid.New()
	now := s.now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("sign session: %w", err)
	}
	return id, token, nil
}

// Parse verifies a token and returns its session id.
func (s *SessionService) Parse(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidSession
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad session id", ErrInvalidSession)
	}
	return id, nil
}
