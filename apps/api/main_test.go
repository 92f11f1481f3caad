package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core/user"
	emailsvc "github.com/trezcool/klassenbuch/services/email"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

func Test_seedDemoAdmin(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()
	user.LoadCommonPasswords(conf, new(testutil.Logger))
	svc := user.NewService(inmemdb.NewTable[user.User](), emailsvc.NewConsoleServiceMock(conf, new(testutil.Logger)), validate, conf)

	admin, pwd, err := seedDemoAdmin(ctx, svc)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.True(t, admin.IsActive)

	signedIn, err := svc.Authenticate(ctx, "admin@localhost.localdomain", pwd)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, signedIn.ID)
}

func Test_demoPassword(t *testing.T) {
	validate, _ := testutil.NewValidator()
	for i := 0; i < 50; i++ {
		pwd := demoPassword()
		err := validate.Struct(user.NewUser{
			Name:            "Admin",
			Email:           "admin@localhost.localdomain",
			Password:        pwd,
			PasswordConfirm: pwd,
		})
		require.NoError(t, err, pwd)
	}
}
