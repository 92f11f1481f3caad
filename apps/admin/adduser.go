package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			IsAdmin:         isAdmin,
		})
		return err
	}

	usr.Name = core.CleanString(name)
	usr.IsAdmin = usr.IsAdmin || isAdmin
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.RotateToken()
	usr.UpdatedAt = time.Now().UTC()
	return errors.Wrap(cli.users.Store(ctx, &usr), "updating user")
}
