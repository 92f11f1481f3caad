package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/user"
	emailsvc "github.com/trezcool/klassenbuch/services/email"
	"github.com/trezcool/klassenbuch/services/filestore"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

const strongPwd = "Str0ng#Pass"

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	users := inmemdb.NewTable[user.User]()
	return &commandLine{
		users:  users,
		usrSvc: user.NewService(users, emailsvc.NewConsoleServiceMock(conf, new(testutil.Logger)), validate, conf),
		files:  file.NewService(inmemdb.NewTable[file.File](), store, validate),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()
	gooseRunFunc = func(command string, db *sqlx.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "homework", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, cli.users, "Bob", "bob@example.com", strongPwd, false, false)

	tests := []struct {
		cliTest
		pwd       string
		email     string
		wantName  string
		wantAdmin bool
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "missing name", args: []string{"adduser", "-email", "ada@example.com"}, wantErr: errHelp}, pwd: strongPwd},
		{cliTest: cliTest{name: "no password", args: []string{"adduser", "-email", "ada@example.com", "-name", "Ada"}, wantErr: errHelp}},
		{
			cliTest:   cliTest{name: "create admin", args: []string{"adduser", "-email", "Ada@Example.com", "-name", "Ada", "-admin"}},
			pwd:       strongPwd,
			email:     "ada@example.com",
			wantName:  "Ada",
			wantAdmin: true,
		},
		{
			cliTest:  cliTest{name: "update existing", args: []string{"adduser", "-email", existing.Email, "-name", "Robert"}},
			pwd:      "N3w#Secret",
			email:    existing.Email,
			wantName: "Robert",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)

			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)

			usr, err := cli.usrSvc.GetByEmail(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, usr.Name)
			assert.Equal(t, tt.wantAdmin, usr.IsAdmin)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(tt.pwd))
		})
	}

	t.Run("updated user gets a new token", func(t *testing.T) {
		usr, err := cli.usrSvc.GetByEmail(ctx, existing.Email)
		require.NoError(t, err)
		assert.NotEqual(t, existing.Token, usr.Token)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, cli.users, "User", "awe@test.cd", strongPwd, false, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: core.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(pwd)

			err := cli.run(args)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			refreshedUsr, err := cli.users.Load(context.Background(), usr.ID)
			require.NoError(t, err)
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addFile(t *testing.T) {
	cli := setup(t)
	ada := testutil.CreateUser(t, cli.users, "Ada", "ada@example.com", strongPwd, true, true)

	path := filepath.Join(t.TempDir(), "timetable.csv")
	require.NoError(t, os.WriteFile(path, []byte("mon,maths\ntue,physics\n"), 0o644))

	tests := []struct {
		cliTest
		wantName string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"addfile"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no path", args: []string{"addfile", "-email", ada.Email}, wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown uploader", args: []string{"addfile", "-email", "lol@test.cd", path}, wantErr: core.ErrNotFound}},
		{cliTest: cliTest{name: "missing file", args: []string{"addfile", "-email", ada.Email, path + ".bak"}, wantErr: os.ErrNotExist}},
		{cliTest: cliTest{name: "base name", args: []string{"addfile", "-email", ada.Email, path}}, wantName: "timetable.csv"},
		{cliTest: cliTest{name: "custom name", args: []string{"addfile", "-email", ada.Email, "-name", "Timetable 2026.csv", path}}, wantName: "Timetable 2026.csv"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			files, err := cli.files.List(context.Background())
			require.NoError(t, err)
			var found *file.File
			for i := range files {
				if files[i].Name == tt.wantName {
					found = &files[i]
				}
			}
			require.NotNil(t, found, "file %q not listed", tt.wantName)
			assert.Equal(t, ada.ID, found.UploaderID)
			assert.Equal(t, int64(22), found.Size)
		})
	}
}
