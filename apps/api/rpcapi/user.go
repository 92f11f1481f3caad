package rpcapi

import (
	"context"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/auth"
	"github.com/trezcool/klassenbuch/core/rpc"
	"github.com/trezcool/klassenbuch/core/user"
)

type signInResult struct {
	User   user.User `json:"user"`
	UserID int64     `json:"userId"`
	Token  string    `json:"token"`
}

type whoAmIResult struct {
	Authenticated bool       `json:"authenticated"`
	User          *user.User `json:"user"`
}

func (api *API) registerUser(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"user.signIn", api.signIn, "Signs in with email and password; sets the auth cookies.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.String, rpc.String)}},
		{"user.signOut", api.authed(api.signOut), "Ends the session and expires the auth cookies.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean)}},
		{"user.whoAmI", api.whoAmI, "Returns the authenticated user, if any.",
			[]rpc.Signature{rpc.Sig(rpc.Struct)}},
		{"user.list", api.authed(api.listUsers), "Lists the active users by name.",
			[]rpc.Signature{rpc.Sig(rpc.Array)}},
		{"user.updateProfile", api.authed(api.updateProfile), "Updates name and email of the current user.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Struct)}},
		{"user.changePassword", api.authed(api.changePassword), "Changes the password: old, new, confirmation.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.String, rpc.String, rpc.String)}},
		{"user.requestPasswordReset", api.requestPasswordReset, "Mails a password reset link.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.String)}},
		{"user.resetPassword", api.resetPassword, "Resets the password: uid, token, new, confirmation.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.String, rpc.String, rpc.String, rpc.String)}},
	})
}

func (api *API) startSession(ctx context.Context, usr user.User) (auth.Identity, error) {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return auth.Anonymous(), err
	}
	return api.Auth.SignIn(ctx, ex, usr.ID, usr.Token, ex.Fingerprint())
}

func (api *API) signIn(ctx context.Context, p rpc.Params) (interface{}, error) {
	usr, err := api.Users.Authenticate(ctx, p.String(0), p.String(1))
	if err != nil {
		return nil, err
	}
	id, err := api.startSession(ctx, usr)
	if err != nil {
		return nil, err
	}
	api.Logger.Info("user signed in", usr.Actor())
	return signInResult{User: usr, UserID: id.UserID, Token: id.Token}, nil
}

func (api *API) signOut(ctx context.Context, _ core.Actor, _ rpc.Params) (interface{}, error) {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err = api.Auth.SignOut(ctx, ex, ex.SessionCookie()); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) whoAmI(ctx context.Context, _ rpc.Params) (interface{}, error) {
	id := auth.FromContext(ctx)
	if !id.Authenticated {
		return whoAmIResult{}, nil
	}
	usr, err := api.Users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return whoAmIResult{Authenticated: true, User: &usr}, nil
}

func (api *API) listUsers(ctx context.Context, _ core.Actor, _ rpc.Params) (interface{}, error) {
	return api.Users.List(ctx)
}

func (api *API) updateProfile(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	var up user.UpdateProfile
	if err := api.decode(p, 0, &up); err != nil {
		return nil, err
	}
	return api.Users.UpdateProfile(ctx, actor.ID, up)
}

func (api *API) changePassword(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	usr, err := api.Users.ChangePassword(ctx, actor.ID, user.ChangePassword{
		OldPassword:     p.String(0),
		Password:        p.String(1),
		PasswordConfirm: p.String(2),
	})
	if err != nil {
		return nil, err
	}
	// the token was rotated: renew the cookies of this client
	if _, err = api.startSession(ctx, usr); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) requestPasswordReset(ctx context.Context, p rpc.Params) (interface{}, error) {
	if err := api.Users.RequestPasswordReset(ctx, p.String(0)); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) resetPassword(ctx context.Context, p rpc.Params) (interface{}, error) {
	_, err := api.Users.ResetPassword(ctx, user.ResetPassword{
		UID:             p.String(0),
		Token:           p.String(1),
		Password:        p.String(2),
		PasswordConfirm: p.String(3),
	})
	if err != nil {
		return nil, err
	}
	return true, nil
}
