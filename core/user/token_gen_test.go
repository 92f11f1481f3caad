package user

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestPasswordResetTokens(t *testing.T) {
	tokens := passwordResetTokens{secretKey: []byte("secret"), timeout: 3 * 24 * time.Hour}

	now := time.Now()
	usr := User{ID: 1, Name: "T", Email: "t@test.test", IsActive: true, LastLogin: null.TimeFrom(now)}
	require.NoError(t, usr.SetPassword("pwd"))

	valid := tokens.makeToken(usr)

	defer func() { nowFunc = time.Now }()
	nowFunc = func() time.Time { return now.Add(-tokens.timeout - time.Minute) }
	expired := tokens.makeToken(usr)
	nowFunc = time.Now

	loggedIn := usr
	loggedIn.LastLogin = null.TimeFrom(now.Add(time.Hour))

	newPwd := usr
	require.NoError(t, newPwd.SetPassword("other"))

	otherKey := passwordResetTokens{secretKey: []byte("other"), timeout: tokens.timeout}
	farFuture := strconv.FormatInt(now.Add(24*time.Hour).Unix(), 36) + ".forged"

	tests := []struct {
		name    string
		tokens  passwordResetTokens
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", tokens: tokens, usr: usr, wantErr: errInvalidToken},
		{name: "no separator", tokens: tokens, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "no signature", tokens: tokens, usr: usr, token: "abc.", wantErr: errInvalidToken},
		{name: "bad expiry", tokens: tokens, usr: usr, token: "!!.sig", wantErr: errInvalidToken},
		{name: "forged signature", tokens: tokens, usr: usr, token: farFuture, wantErr: errInvalidToken},
		{name: "other secret", tokens: otherKey, usr: usr, token: valid, wantErr: errInvalidToken},
		{name: "expired", tokens: tokens, usr: usr, token: expired, wantErr: errTokenExpired},
		{name: "logged in since", tokens: tokens, usr: loggedIn, token: valid, wantErr: errInvalidToken},
		{name: "password changed", tokens: tokens, usr: newPwd, token: valid, wantErr: errInvalidToken},
		{name: "valid", tokens: tokens, usr: usr, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.tokens.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	id, err := decodeUID(EncodeUID(User{ID: 42}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}
