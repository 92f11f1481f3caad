package auth

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

type (
	// CookieWriter sets response cookies.
	CookieWriter interface {
		SetCookie(cookie *http.Cookie)
	}

	CookieConfig struct {
		Session string
		UserID  string
		Token   string
		MaxAge  time.Duration
		Secure  bool
		Path    string
	}
)

// Manager signs users in and out: it owns the server sessions and the auth cookies.
type Manager struct {
	sessions   SessionStore
	codec      *SessionCodec
	cookies    CookieConfig
	sessionTTL time.Duration
}

func NewManager(sessions SessionStore, codec *SessionCodec, cookies CookieConfig, sessionTTL time.Duration) (*Manager, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(sessions, "sessions"),
		vala.IsNotNil(codec, "codec"),
		vala.StringNotEmpty(cookies.Session, "cookies.Session"),
		vala.StringNotEmpty(cookies.UserID, "cookies.UserID"),
		vala.StringNotEmpty(cookies.Token, "cookies.Token"),
	).Check(); err != nil {
		return nil, err
	}
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &Manager{sessions: sessions, codec: codec, cookies: cookies, sessionTTL: sessionTTL}, nil
}

func (m *Manager) Cookies() CookieConfig { return m.cookies }

// SignIn opens a session for the user and sets the session, userId and token cookies.
func (m *Manager) SignIn(ctx context.Context, w CookieWriter, userID int64, token, fingerprint string) (Identity, error) {
	sess := Session{
		ID:          NewSessionID(),
		UserID:      userID,
		Token:       token,
		Fingerprint: fingerprint,
	}
	if err := m.sessions.Save(ctx, sess, m.sessionTTL); err != nil {
		return Anonymous(), errors.Wrap(err, "saving session")
	}
	signed, err := m.codec.Encode(sess.ID)
	if err != nil {
		return Anonymous(), err
	}

	maxAge := int(m.cookies.MaxAge.Seconds())
	w.SetCookie(m.cookie(m.cookies.Session, signed, maxAge, true))
	w.SetCookie(m.cookie(m.cookies.UserID, strconv.FormatInt(userID, 10), maxAge, false))
	w.SetCookie(m.cookie(m.cookies.Token, token, maxAge, false))
	return Identity{UserID: userID, Token: token, Authenticated: true}, nil
}

// SignOut destroys the session behind sessionCookie (if any) and expires the auth cookies.
func (m *Manager) SignOut(ctx context.Context, w CookieWriter, sessionCookie string) error {
	if sessionCookie != "" {
		if sid, err := m.codec.Decode(sessionCookie); err == nil {
			if err := m.sessions.Delete(ctx, sid); err != nil {
				return errors.Wrap(err, "deleting session")
			}
		}
	}
	w.SetCookie(m.cookie(m.cookies.Session, "", -1, true))
	w.SetCookie(m.cookie(m.cookies.UserID, "", -1, false))
	w.SetCookie(m.cookie(m.cookies.Token, "", -1, false))
	return nil
}

func (m *Manager) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cookies.Path,
		MaxAge:   maxAge,
		Secure:   m.cookies.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.Expires = nowFunc().Add(time.Duration(maxAge) * time.Second)
	} else {
		c.Expires = time.Unix(0, 0)
	}
	return c
}
