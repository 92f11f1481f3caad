package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const tokenSalt = "klassenbuch/user/password-reset"

var (
	nowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID hides the user ID in password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(usr.ID, 10)))
}

func decodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// passwordResetTokens makes and checks password reset tokens of the form "<expiry>.<signature>",
// the expiry being a base36 unix time. The signature covers the password hash and the last login,
// so a token stops working once either changes.
type passwordResetTokens struct {
	secretKey []byte
	timeout   time.Duration
}

func (g passwordResetTokens) makeToken(usr User) string {
	expiry := nowFunc().Add(g.timeout).Unix()
	return strconv.FormatInt(expiry, 36) + "." + g.signature(usr, expiry)
}

func (g passwordResetTokens) verifyToken(usr User, token string) error {
	exp, sig, found := strings.Cut(token, ".")
	if !found || sig == "" {
		return errInvalidToken
	}
	expiry, err := strconv.ParseInt(exp, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(g.signature(usr, expiry))) {
		return errInvalidToken
	}
	if nowFunc().Unix() > expiry {
		return errTokenExpired
	}
	return nil
}

func (g passwordResetTokens) signature(usr User, expiry int64) string {
	key := sha256.Sum256(append([]byte(tokenSalt), g.secretKey...))
	mac := hmac.New(sha256.New, key[:])

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(usr.ID))
	mac.Write(num[:])
	mac.Write(usr.PasswordHash)
	if usr.LastLogin.Valid {
		binary.BigEndian.PutUint64(num[:], uint64(usr.LastLogin.Time.UnixNano()))
		mac.Write(num[:])
	}
	binary.BigEndian.PutUint64(num[:], uint64(expiry))
	mac.Write(num[:])
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
