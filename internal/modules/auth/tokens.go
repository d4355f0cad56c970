package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

// TokenService issues and verifies login tokens. Tokens are signed JWTs, but
// a token is only accepted while its ID is present in the in-process session
// table, so logout takes effect immediately instead of at token expiry.
type TokenService struct {
	key []byte
	ttl time.Duration

	mu     sync.Mutex
	active map[string]time.Time

	done    chan struct{}
	stopped sync.Once
}

func NewTokenService(key []byte, ttl, gcInterval time.Duration) *TokenService {
	s := &TokenService{
		key:    key,
		ttl:    ttl,
		active: make(map[string]time.Time),
		done:   make(chan struct{}),
	}

	go s.gcLoop(gcInterval)

	return s
}

func (s *TokenService) Issue(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	expires := now.Add(s.ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.active[tokenID] = expires
	s.mu.Unlock()

	return signed, nil
}

// Verify returns the user ID the token was issued for. A token that was
// signed by us but logged out in the meantime is rejected the same way a
// forged one is.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	s.mu.Lock()
	_, ok := s.active[claims.ID]
	s.mu.Unlock()

	if !ok {
		return uuid.Nil, fmt.Errorf("login session expired")
	}

	return claims.UserID, nil
}

// Invalidate drops the login session behind the token. Unparseable tokens
// are a no-op, there is nothing to drop.
func (s *TokenService) Invalidate(tokenString string) {
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}); err != nil {
		return
	}

	s.mu.Lock()
	delete(s.active, claims.ID)
	s.mu.Unlock()
}

func (s *TokenService) Stop() {
	s.stopped.Do(func() {
		close(s.done)
	})
}

func (s *TokenService) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			s.mu.Lock()
			for id, expires := range s.active {
				if now.After(expires) {
					delete(s.active, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
