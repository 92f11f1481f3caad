package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	gbytes "github.com/labstack/gommon/bytes"
	"github.com/robfig/cron/v3"

	echoapi "github.com/trezcool/klassenbuch/apps/api/echo"
	"github.com/trezcool/klassenbuch/apps/api/rpcapi"
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
	logsvc "github.com/trezcool/klassenbuch/services/logger"
	"github.com/trezcool/klassenbuch/storage/database"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	sqlxrepos "github.com/trezcool/klassenbuch/storage/database/sqlx"
	sessionstore "github.com/trezcool/klassenbuch/storage/session"
)

const engineInMemory = "inmem"

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	// set up DB
	var db *sqlx.DB
	if conf.Database.Engine == engineInMemory {
		logger.Warn("Using the in-memory database: data is lost on exit")
	} else {
		var err error
		if db, err = setUpDB(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Error(fmt.Sprintf("Failed to close: %v", err), err)
			}
		}()
	}

	// set up session storage
	var sessions auth.SessionStore
	if conf.Redis.URL != "" {
		rdb, err := sessionstore.Connect(context.Background(), conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer rdb.Close()
		sessions = sessionstore.NewRedisStore(rdb, conf.Redis.KeyPrefix)
	} else {
		sessions = auth.NewMemoryStore()
	}

	// set up blob storage
	uploads, err := filestore.NewLocalStore(workPath(conf, conf.Storage.UploadDir))
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up upload storage: %v", err), err)
	}
	thumbs, err := filestore.NewLocalStore(workPath(conf, conf.Storage.ThumbnailDir))
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up thumbnail storage: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	tasks := newTable[task.Task](db)
	usrSvc := user.NewService(newTable[user.User](db), mailSvc, validate, conf)
	hub := echoapi.NewHub(logger)
	shoutSvc := shoutbox.NewService(newTable[shoutbox.Shout](db), hub, validate)
	fileSvc := file.NewService(newTable[file.File](db), uploads, validate)

	if db == nil {
		admin, pwd, err := seedDemoAdmin(context.Background(), usrSvc)
		if err != nil {
			logger.Fatal(fmt.Sprintf("seeding demo admin: %v", err), err)
		}
		logger.Info(fmt.Sprintf("Demo admin: %s / %s", admin.Email, pwd))
	}

	codec := auth.NewSessionCodec(conf.SecretKey, conf.AppName, conf.Auth.CookieMaxAge)
	cookies := auth.CookieConfig{
		Session: conf.Auth.SessionCookie,
		UserID:  conf.Auth.UserIDCookie,
		Token:   conf.Auth.TokenCookie,
		MaxAge:  conf.Auth.CookieMaxAge,
		Secure:  conf.Auth.SecureCookies,
	}
	manager, err := auth.NewManager(sessions, codec, cookies, conf.Auth.SessionTTL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up auth manager: %v", err), err)
	}
	resolver, err := auth.NewResolver(usrSvc, sessions, codec, conf.Auth.SessionTTL, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up auth resolver: %v", err), err)
	}

	api, err := rpcapi.New(rpcapi.Deps{
		Users:      usrSvc,
		Tasks:      task.NewService(tasks, usrSvc, mailSvc, validate, logger, conf),
		Comments:   comment.NewService(newTable[comment.Comment](db), tasks, validate),
		Contacts:   contact.NewService(newTable[contact.Contact](db), validate),
		Files:      fileSvc,
		Gallery:    gallery.NewService(newTable[gallery.Album](db), newTable[gallery.Picture](db), uploads, thumbs, validate),
		Shoutbox:   shoutSvc,
		Auth:       manager,
		Errors:     rpcapi.NewErrorRegistry(),
		Translator: translator,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rpc api: %v", err), err)
	}
	methods, err := api.Methods()
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering rpc methods: %v", err), err)
	}

	maxRequestSize, err := gbytes.Parse(conf.Server.BodyLimit)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing body limit %q: %v", conf.Server.BodyLimit, err), err)
	}

	shutdown := make(chan os.Signal, 1)
	metrics := echoapi.NewMetrics()
	rpcSrv, err := rpc.NewServer(methods, api.Errors, rpc.Options{
		DebugLevel:          conf.RPC.DebugLevel,
		AllowSystemFuncs:    conf.RPC.AllowSystemFuncs,
		AcceptedCompression: conf.RPC.AcceptedCompression,
		CompressResponse:    conf.RPC.CompressResponse,
		ResponseCharset:     conf.RPC.ResponseCharset,
		MaxRequestSize:      maxRequestSize,
		FaultMapper:         echoapi.ShutdownFaultMapper(shutdown, api.MapFault),
		Observer:            metrics.RPCObserver(api.Errors),
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rpc server: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Scheduler

	scheduler := cron.New()
	if conf.Shoutbox.PruneSchedule != "" && conf.Shoutbox.Keep > 0 {
		if _, err = scheduler.AddFunc(conf.Shoutbox.PruneSchedule, pruneShoutbox(shoutSvc, conf.Shoutbox.Keep, logger)); err != nil {
			logger.Fatal(fmt.Sprintf("scheduling shoutbox pruning: %v", err), err)
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server, err := echoapi.NewServer(&echoapi.Options{
		Conf:     conf,
		Logger:   logger,
		RPC:      rpcSrv,
		Resolver: resolver,
		Cookies:  cookies,
		Files:    fileSvc,
		Hub:      hub,
		Metrics:  metrics,
		Shutdown: shutdown,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up http server: %v", err), err)
	}

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newTable returns a Postgres table, or an in-memory one when db is nil.
func newTable[T any, P core.RecordPtr[T]](db *sqlx.DB) core.Table[T] {
	if db == nil {
		return inmemdb.NewTable[T, P]()
	}
	return sqlxrepos.NewTable[T, P](db)
}

func workPath(conf *core.Config, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(conf.WorkDir, dir)
}

func pruneShoutbox(svc *shoutbox.Service, keep int, logger core.Logger) func() {
	return func() {
		n, err := svc.Prune(context.Background(), keep)
		if err != nil {
			logger.Error(fmt.Sprintf("pruning shoutbox: %v", err), err)
			return
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("pruned %d shoutbox messages", n))
		}
	}
}

// seedDemoAdmin gives the in-memory database a user to sign in with.
func seedDemoAdmin(ctx context.Context, svc *user.Service) (user.User, string, error) {
	pwd := demoPassword()
	usr, err := svc.Create(ctx, user.NewUser{
		Name:            "Admin",
		Email:           "admin@localhost.localdomain",
		Password:        pwd,
		PasswordConfirm: pwd,
		IsAdmin:         true,
	})
	return usr, pwd, err
}

// demoPassword passes the password policy: the prefix brings the upper, lower and special
// characters, a v4 uuid always holds a digit.
func demoPassword() string {
	return "Kb#" + uuid.New().String()
}
