package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/trezcool/klassenbuch/core"
)

var nowFunc = time.Now // mockable

// TokenStore looks up the token stored for a user; missing users yield core.ErrNotFound.
type TokenStore interface {
	TokenByUserID(ctx context.Context, userID int64) (string, error)
}

// Request holds what the resolver reads from an incoming request.
type Request struct {
	// Current is the identity established earlier in this request, if any.
	Current       Identity
	SessionCookie string
	Fingerprint   string
	UserIDCookie  string
	TokenCookie   string
	// Body is the decoded JSON-RPC payload.
	Body []byte
	// Form holds POST form fields (and query values on plain GETs).
	Form url.Values
}

type candidate struct {
	userID    int64
	token     string
	sessionID string
}

type source struct {
	name string
	read func(ctx context.Context, req Request) (candidate, bool)
}

// Resolver establishes the identity of a request by trying, in order: the
// identity already set for the request, the server session, the userId/token
// cookies, the JSON body and the form fields. The first verified source wins.
type Resolver struct {
	tokens     TokenStore
	sessions   SessionStore
	codec      *SessionCodec
	sessionTTL time.Duration
	logger     core.Logger
	sources    []source
}

func NewResolver(tokens TokenStore, sessions SessionStore, codec *SessionCodec, sessionTTL time.Duration, logger core.Logger) (*Resolver, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(tokens, "tokens"),
		vala.IsNotNil(sessions, "sessions"),
		vala.IsNotNil(codec, "codec"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		return nil, err
	}
	r := &Resolver{
		tokens:     tokens,
		sessions:   sessions,
		codec:      codec,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
	r.sources = []source{
		{name: "session", read: r.fromSession},
		{name: "cookies", read: fromCookies},
		{name: "body", read: fromBody},
		{name: "form", read: fromForm},
	}
	return r, nil
}

// Resolve never fails: store errors are logged and the source is skipped.
func (r *Resolver) Resolve(ctx context.Context, req Request) Identity {
	if req.Current.Authenticated {
		return req.Current
	}
	for _, src := range r.sources {
		c, ok := src.read(ctx, req)
		if !ok || c.userID <= 0 || c.token == "" {
			continue
		}
		if !r.verify(ctx, c.userID, c.token) {
			continue
		}
		if c.sessionID != "" {
			if err := r.sessions.Touch(ctx, c.sessionID, r.sessionTTL); err != nil {
				r.logger.Warn(fmt.Sprintf("auth: refreshing session: %v", err), err)
			}
		}
		return Identity{UserID: c.userID, Token: c.token, Authenticated: true}
	}
	return Anonymous()
}

func (r *Resolver) verify(ctx context.Context, userID int64, token string) bool {
	stored, err := r.tokens.TokenByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			r.logger.Error(fmt.Sprintf("auth: loading user %d: %v", userID, err), err)
		}
		return false
	}
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

func (r *Resolver) fromSession(ctx context.Context, req Request) (candidate, bool) {
	if req.SessionCookie == "" {
		return candidate{}, false
	}
	sid, err := r.codec.Decode(req.SessionCookie)
	if err != nil {
		return candidate{}, false
	}
	sess, err := r.sessions.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			r.logger.Error(fmt.Sprintf("auth: loading session: %v", err), err)
		}
		return candidate{}, false
	}
	if subtle.ConstantTimeCompare([]byte(sess.Fingerprint), []byte(req.Fingerprint)) != 1 {
		return candidate{}, false
	}
	return candidate{userID: sess.UserID, token: sess.Token, sessionID: sess.ID}, true
}

func fromCookies(_ context.Context, req Request) (candidate, bool) {
	if req.UserIDCookie == "" && req.TokenCookie == "" {
		return candidate{}, false
	}
	return candidate{userID: parseUserID(req.UserIDCookie), token: req.TokenCookie}, true
}

func fromBody(_ context.Context, req Request) (candidate, bool) {
	if len(req.Body) == 0 || !gjson.ValidBytes(req.Body) {
		return candidate{}, false
	}
	res := gjson.GetManyBytes(req.Body, "userId", "token")
	if !res[0].Exists() && !res[1].Exists() {
		return candidate{}, false
	}
	var uid int64
	switch res[0].Type {
	case gjson.Number:
		if n := res[0].Num; n > 0 && n == float64(int64(n)) {
			uid = int64(n)
		}
	case gjson.String:
		uid = parseUserID(res[0].Str)
	}
	token := ""
	if res[1].Type == gjson.String {
		token = res[1].Str
	}
	return candidate{userID: uid, token: token}, true
}

func fromForm(_ context.Context, req Request) (candidate, bool) {
	if req.Form == nil {
		return candidate{}, false
	}
	uid, token := req.Form.Get("userId"), req.Form.Get("token")
	if uid == "" && token == "" {
		return candidate{}, false
	}
	return candidate{userID: parseUserID(uid), token: token}, true
}

// parseUserID coerces s to a non-negative id; invalid input gives 0.
func parseUserID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
