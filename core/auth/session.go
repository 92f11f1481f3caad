package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	errInvalidSession  = errors.New("invalid session cookie")
)

type (
	// Session is the server side state behind a session cookie.
	Session struct {
		ID          string `json:"id"`
		UserID      int64  `json:"userId"`
		Token       string `json:"token"`
		Fingerprint string `json:"fingerprint"`
	}

	// SessionStore keeps sessions until their TTL runs out.
	// Get returns ErrSessionNotFound for missing or expired sessions.
	SessionStore interface {
		Get(ctx context.Context, id string) (Session, error)
		Save(ctx context.Context, s Session, ttl time.Duration) error
		Touch(ctx context.Context, id string, ttl time.Duration) error
		Delete(ctx context.Context, id string) error
	}
)

func NewSessionID() string { return uuid.New().String() }

// Fingerprint hashes the request attributes a session is bound to.
func Fingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// SessionCodec signs session ids into cookie values (HS256 JWTs).
type SessionCodec struct {
	key    []byte
	issuer string
	maxAge time.Duration
}

type sessionClaims struct {
	jwt.StandardClaims
}

func NewSessionCodec(secretKey, issuer string, maxAge time.Duration) *SessionCodec {
	return &SessionCodec{key: []byte(secretKey), issuer: issuer, maxAge: maxAge}
}

func (c *SessionCodec) Encode(sid string) (string, error) {
	now := nowFunc()
	claims := sessionClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        sid,
			Issuer:    c.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(c.maxAge).Unix(),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	return ss, errors.Wrap(err, "signing session cookie")
}

// Decode verifies a cookie value and returns the session id it carries.
func (c *SessionCodec) Decode(raw string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidSession
		}
		return c.key, nil
	})
	if err != nil || !token.Valid || claims.Id == "" {
		return "", errInvalidSession
	}
	return claims.Id, nil
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session Session
	expires time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if nowFunc().After(e.expires) {
		delete(m.sessions, id)
		return Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	m.sessions[s.ID] = memoryEntry{session: s, expires: nowFunc().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.expires = nowFunc().Add(ttl)
	m.sessions[id] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
