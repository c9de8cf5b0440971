package core

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("fire rate exceeded")
)

// SessionClaims is what a session token grants. An empty Archetypes list
// allows the whole catalog.
type SessionClaims struct {
	Player     string   `json:"player"`
	Archetypes []string `json:"archetypes,omitempty"`
	jwt.RegisteredClaims
}

type session struct {
	claims  *SessionClaims
	limiter *rate.Limiter
}

// SessionAuthorizer verifies join tokens and decides, per shot, whether a
// connection may fire. It implements systems.Authorizer.
type SessionAuthorizer struct {
	mu       sync.Mutex
	secret   []byte
	issuer   string
	limit    rate.Limit
	burst    int
	sessions map[netconfig.ConnectionID]*session
	now      func() time.Time
}

func NewSessionAuthorizer(secret []byte, issuer string, shotsPerSecond float64, burst int) *SessionAuthorizer {
	return &SessionAuthorizer{
		secret:   secret,
		issuer:   issuer,
		limit:    rate.Limit(shotsPerSecond),
		burst:    burst,
		sessions: make(map[netconfig.ConnectionID]*session),
		now:      time.Now,
	}
}

// IssueToken signs a session token for player.
func (a *SessionAuthorizer) IssueToken(player string, archetypes []string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := SessionClaims{
		Player:     player,
		Archetypes: archetypes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   player,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a session token.
func (a *SessionAuthorizer) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}

// Admit starts a session for conn with a fresh fire-rate budget.
func (a *SessionAuthorizer) Admit(conn netconfig.ConnectionID, claims *SessionClaims) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[conn] = &session{
		claims:  claims,
		limiter: rate.NewLimiter(a.limit, a.burst),
	}
}

func (a *SessionAuthorizer) Drop(conn netconfig.ConnectionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, conn)
}

// Authorize implements systems.Authorizer.
func (a *SessionAuthorizer) Authorize(conn netconfig.ConnectionID, archetype string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[conn]
	if !ok {
		return fmt.Errorf("%w: no session for connection %d", ErrUnauthorized, conn)
	}
	if len(s.claims.Archetypes) > 0 && !slices.Contains(s.claims.Archetypes, archetype) {
		return fmt.Errorf("%w: %s may not fire %q", ErrUnauthorized, s.claims.Player, archetype)
	}
	if !s.limiter.AllowN(a.now(), 1) {
		return ErrRateLimited
	}
	return nil
}
