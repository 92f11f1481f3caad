package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/auth"
	"github.com/trezcool/klassenbuch/core/comment"
	"github.com/trezcool/klassenbuch/core/contact"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/gallery"
	"github.com/trezcool/klassenbuch/core/rpc"
	"github.com/trezcool/klassenbuch/core/shoutbox"
	"github.com/trezcool/klassenbuch/core/task"
	"github.com/trezcool/klassenbuch/core/user"
	emailsvc "github.com/trezcool/klassenbuch/services/email"
	"github.com/trezcool/klassenbuch/services/filestore"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

const strongPwd = "Str0ng#Pass"

type exchangeRecorder struct {
	session string
	cookies []*http.Cookie
}

func (ex *exchangeRecorder) SetCookie(c *http.Cookie) { ex.cookies = append(ex.cookies, c) }
func (ex *exchangeRecorder) SessionCookie() string    { return ex.session }
func (ex *exchangeRecorder) Fingerprint() string      { return auth.Fingerprint("test-agent") }

type nopPublisher struct{}

func (nopPublisher) Publish(shoutbox.Event) {}

type fixture struct {
	server   *rpc.Server
	api      *API
	sessions *auth.MemoryStore
	ada, bob user.User
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)

	users := inmemdb.NewTable[user.User]()
	tasks := inmemdb.NewTable[task.Task]()
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	userSvc := user.NewService(users, mailer, validate, conf)
	sessions := auth.NewMemoryStore()
	manager, err := auth.NewManager(
		sessions,
		auth.NewSessionCodec(conf.SecretKey, conf.AppName, time.Hour),
		auth.CookieConfig{Session: "sid", UserID: "userId", Token: "token", MaxAge: 30 * 24 * time.Hour},
		time.Hour,
	)
	require.NoError(t, err)

	api, err := New(Deps{
		Users:      userSvc,
		Tasks:      task.NewService(tasks, userSvc, mailer, validate, logger, conf),
		Comments:   comment.NewService(inmemdb.NewTable[comment.Comment](), tasks, validate),
		Contacts:   contact.NewService(inmemdb.NewTable[contact.Contact](), validate),
		Files:      file.NewService(inmemdb.NewTable[file.File](), store, validate),
		Gallery:    gallery.NewService(inmemdb.NewTable[gallery.Album](), inmemdb.NewTable[gallery.Picture](), store, store, validate),
		Shoutbox:   shoutbox.NewService(inmemdb.NewTable[shoutbox.Shout](), nopPublisher{}, validate),
		Auth:       manager,
		Errors:     NewErrorRegistry(),
		Translator: translator,
		Logger:     logger,
	})
	require.NoError(t, err)

	methods, err := api.Methods()
	require.NoError(t, err)
	server, err := rpc.NewServer(methods, api.Errors, rpc.Options{AllowSystemFuncs: true, FaultMapper: api.MapFault, Logger: logger})
	require.NoError(t, err)

	return fixture{
		server:   server,
		api:      api,
		sessions: sessions,
		ada:      testutil.CreateUser(t, users, "Ada", "ada@example.com", strongPwd, false, true),
		bob:      testutil.CreateUser(t, users, "Bob", "bob@example.com", strongPwd, false, true),
	}
}

func as(usr user.User) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: usr.ID, Token: usr.Token, Authenticated: true})
}

// call runs a request through parsing and dispatch and returns the JSON response.
func (fx fixture) call(t *testing.T, ctx context.Context, method string, params ...interface{}) gjson.Result {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"method": method, "params": params})
	require.NoError(t, err)

	req, fault := fx.server.ParseRequest(body, "", "application/json")
	require.Nil(t, fault)
	out, err := json.Marshal(fx.server.Execute(ctx, req))
	require.NoError(t, err)
	return gjson.ParseBytes(out)
}

func TestAPI_requiresAuthentication(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	open := map[string]bool{
		"user.signIn": true, "user.whoAmI": true, "user.requestPasswordReset": true, "user.resetPassword": true,
	}
	methods, err := fx.api.Methods()
	require.NoError(t, err)

	for _, name := range methods.Names() {
		if open[name] {
			continue
		}
		t.Run(name, func(t *testing.T) {
			m, _ := methods.Lookup(name)
			params := make([]interface{}, 0)
			for _, typ := range m.Signatures[0][1:] {
				switch typ {
				case rpc.Int:
					params = append(params, 1)
				case rpc.String:
					params = append(params, "x")
				case rpc.Boolean:
					params = append(params, true)
				case rpc.Struct:
					params = append(params, map[string]interface{}{})
				}
			}
			res := fx.call(t, ctx, name, params...)
			assert.Equal(t, int64(801), res.Get("error.faultCode").Int(), res.Raw)
		})
	}

	res := fx.call(t, ctx, "user.whoAmI")
	assert.False(t, res.Get("result.authenticated").Bool())
	assert.Equal(t, gjson.Null, res.Get("result.user").Type)
}

func TestAPI_signInOut(t *testing.T) {
	fx := setup(t)
	ex := new(exchangeRecorder)
	ctx := WithExchange(context.Background(), ex)

	res := fx.call(t, ctx, "user.signIn", "ada@example.com", "wrong")
	assert.Equal(t, int64(801), res.Get("error.faultCode").Int())
	assert.Equal(t, "Authentication failed: authentication failed", res.Get("error.faultString").String())
	assert.Empty(t, ex.cookies)

	res = fx.call(t, ctx, "user.signIn", "ada@example.com")
	assert.Equal(t, int64(3), res.Get("error.faultCode").Int())

	res = fx.call(t, ctx, "user.signIn", "ada@example.com", strongPwd)
	require.True(t, res.Get("result").Exists(), res.Raw)
	assert.Equal(t, fx.ada.ID, res.Get("result.userId").Int())
	assert.Equal(t, fx.ada.Token, res.Get("result.token").String())
	assert.Equal(t, "Ada", res.Get("result.user.name").String())
	assert.False(t, res.Get("result.user.token").Exists())
	require.Len(t, ex.cookies, 3)
	assert.Equal(t, "sid", ex.cookies[0].Name)
	assert.True(t, ex.cookies[0].HttpOnly)

	ex.session = ex.cookies[0].Value
	ex.cookies = nil
	res = fx.call(t, auth.WithIdentity(ctx, auth.Identity{UserID: fx.ada.ID, Token: fx.ada.Token, Authenticated: true}), "user.signOut")
	assert.True(t, res.Get("result").Bool(), res.Raw)
	require.Len(t, ex.cookies, 3)
	for _, c := range ex.cookies {
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestAPI_changePasswordRenewsCookies(t *testing.T) {
	fx := setup(t)
	ex := new(exchangeRecorder)
	ctx := WithExchange(as(fx.ada), ex)
	newPwd := "N3w&Secret"

	res := fx.call(t, ctx, "user.changePassword", "wrong", newPwd, newPwd)
	assert.Equal(t, "Incorrect parameters passed to method: old_password: wrong password", res.Get("error.faultString").String())

	res = fx.call(t, ctx, "user.changePassword", strongPwd, newPwd, newPwd)
	require.True(t, res.Get("result").Bool(), res.Raw)
	require.Len(t, ex.cookies, 3)
	assert.NotEqual(t, fx.ada.Token, ex.cookies[2].Value)
}

func TestAPI_tasksAndComments(t *testing.T) {
	fx := setup(t)
	asAda, asBob := as(fx.ada), as(fx.bob)

	res := fx.call(t, asAda, "task.add", map[string]interface{}{"subject": "", "title": "Exercises", "due_date": "tomorrow"})
	assert.Equal(t, int64(3), res.Get("error.faultCode").Int())
	assert.Contains(t, res.Get("error.faultString").String(), "subject: this field is required")
	assert.Contains(t, res.Get("error.faultString").String(), "due_date:")

	res = fx.call(t, asAda, "task.add", map[string]interface{}{"subject": "Maths", "title": "Exercises", "due_date": "2024-03-10"})
	require.True(t, res.Get("result").Exists(), res.Raw)
	taskID := res.Get("result.id").Int()

	res = fx.call(t, asBob, "task.setDone", taskID, true)
	assert.True(t, res.Get("result.done").Bool())

	res = fx.call(t, asBob, "task.list")
	assert.Empty(t, res.Get("result").Array())
	res = fx.call(t, asBob, "task.list", true)
	assert.Len(t, res.Get("result").Array(), 1)

	res = fx.call(t, asBob, "task.get", 999)
	assert.Equal(t, int64(803), res.Get("error.faultCode").Int())

	res = fx.call(t, asBob, "task.get", "1")
	assert.Equal(t, "Incorrect parameters passed to method: Wanted int, got string at param 1", res.Get("error.faultString").String())

	res = fx.call(t, asAda, "comment.add", taskID, "Is 3b required?")
	commentID := res.Get("result.id").Int()
	require.NotZero(t, commentID, res.Raw)

	res = fx.call(t, asBob, "comment.delete", commentID)
	assert.Equal(t, int64(804), res.Get("error.faultCode").Int())

	res = fx.call(t, asBob, "task.delete", taskID)
	assert.True(t, res.Get("result").Bool(), res.Raw)
	res = fx.call(t, asAda, "comment.delete", commentID)
	assert.Equal(t, int64(803), res.Get("error.faultCode").Int())
}

func TestAPI_shoutboxAndContacts(t *testing.T) {
	fx := setup(t)
	asAda := as(fx.ada)

	for _, text := range []string{"one", "two", "three"} {
		res := fx.call(t, asAda, "shoutbox.post", text)
		require.True(t, res.Get("result").Exists(), res.Raw)
	}
	res := fx.call(t, asAda, "shoutbox.list", 2)
	assert.Equal(t, []string{"three", "two"}, texts(res.Get("result.#.text").Array()))
	res = fx.call(t, asAda, "shoutbox.list", int64(1)<<40)
	assert.Len(t, res.Get("result").Array(), 3, res.Raw)

	res = fx.call(t, asAda, "contact.add", map[string]interface{}{"name": "Dr. Ada's tutor", "email": "tutor@example.com"})
	require.True(t, res.Get("result").Exists(), res.Raw)
	res = fx.call(t, asAda, "contact.update", res.Get("result.id").Int(), map[string]interface{}{"name": "Tutor"})
	assert.Equal(t, "Tutor", res.Get("result.name").String())
	assert.Empty(t, res.Get("result.email").String())

	res = fx.call(t, asAda, "contact.add", "not a struct")
	assert.Equal(t, int64(3), res.Get("error.faultCode").Int())
}

func texts(rs []gjson.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

func TestAPI_MapFault(t *testing.T) {
	fx := setup(t)

	tests := []struct {
		name string
		err  error
		want *rpc.Fault
	}{
		{name: "unmapped", err: errors.New("boom")},
		{name: "not found", err: errors.Wrap(core.ErrNotFound, "loading task"), want: &rpc.Fault{Code: 803, String: "Not found"}},
		{name: "forbidden", err: core.ErrForbidden, want: &rpc.Fault{Code: 804, String: "Permission denied"}},
		{
			name: "query error",
			err:  errors.Wrap(core.NewQueryError("querying tasks", errors.New(`pq: syntax error at or near "FROM"`)), "listing tasks"),
			want: &rpc.Fault{Code: 802, String: `Invalid database query: pq: syntax error at or near "FROM"`},
		},
		{
			name: "validation error",
			err:  core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: "taken"}),
			want: &rpc.Fault{Code: 3, String: "Incorrect parameters passed to method: email: taken"},
		},
		{
			name: "deactivated",
			err:  user.ErrAccountDeactivated,
			want: &rpc.Fault{Code: 801, String: "Authentication failed: account deactivated"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fx.api.MapFault(tc.err))
		})
	}
}

func TestAPI_introspection(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	res := fx.call(t, ctx, "system.listMethods")
	names := texts(res.Get("result").Array())
	assert.Equal(t, "user.signIn", names[0])
	assert.Contains(t, names, "gallery.deletePicture")
	assert.Equal(t, "system.methodSignature", names[len(names)-1])

	res = fx.call(t, ctx, "system.methodSignature", "task.list")
	assert.JSONEq(t, `[["array"],["array","boolean"]]`, res.Get("result").Raw)
}
