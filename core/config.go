package core

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		URL       string // empty means in-process session storage
		KeyPrefix string
	}

	RPCConfig struct {
		DebugLevel          int
		AllowSystemFuncs    bool
		AcceptedCompression []string
		CompressResponse    bool
		ResponseCharset     string // "", "auto" or a charset name
	}

	AuthConfig struct {
		SessionCookie string
		UserIDCookie  string
		TokenCookie   string
		CookieMaxAge  time.Duration
		SessionTTL    time.Duration
		SecureCookies bool
	}

	StorageConfig struct {
		UploadDir    string
		ThumbnailDir string
	}

	ShoutboxConfig struct {
		Keep          int
		PruneSchedule string
	}

	Config struct {
		AppName              string
		Env                  string
		Build                string
		Debug                bool
		TestMode             bool
		WorkDir              string
		SecretKey            string
		FrontendBaseURL      string
		DefaultFromEmail     mail.Address
		RollbarToken         string
		SendgridAPIKey       string
		PasswordResetTimeout time.Duration
		NotifyNewTasks       bool

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		RPC      RPCConfig
		Auth     AuthConfig
		Storage  StorageConfig
		Shoutbox ShoutboxConfig
	}
)

func NewConfig() *Config {
	conf := viper.New()
	setDefaults(conf)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			panic(fmt.Sprintf("config.godotenv(%s): %v", dotEnvPath, err))
		}
	}

	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		AppName:              conf.GetString("appName"),
		Env:                  env,
		Build:                conf.GetString("build"),
		Debug:                conf.GetBool("debug"),
		TestMode:             conf.GetBool("testMode"),
		WorkDir:              workDir,
		SecretKey:            conf.GetString("secretKey"),
		FrontendBaseURL:      conf.GetString("frontendBaseURL"),
		DefaultFromEmail:     mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		RollbarToken:         conf.GetString("rollbarToken"),
		SendgridAPIKey:       conf.GetString("sendgridAPIKey"),
		PasswordResetTimeout: conf.GetDuration("passwordResetTimeout"),
		NotifyNewTasks:       conf.GetBool("notifyNewTasks"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			DebugAddress:    conf.GetString("server.debugAddress"),
			Host:            conf.GetString("server.host"),
			ReadTimeout:     conf.GetDuration("server.readTimeout"),
			WriteTimeout:    conf.GetDuration("server.writeTimeout"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			BodyLimit:       conf.GetString("server.bodyLimit"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			URL:       conf.GetString("redis.url"),
			KeyPrefix: conf.GetString("redis.keyPrefix"),
		},
		RPC: RPCConfig{
			DebugLevel:          conf.GetInt("rpc.debugLevel"),
			AllowSystemFuncs:    conf.GetBool("rpc.allowSystemFuncs"),
			AcceptedCompression: conf.GetStringSlice("rpc.acceptedCompression"),
			CompressResponse:    conf.GetBool("rpc.compressResponse"),
			ResponseCharset:     conf.GetString("rpc.responseCharset"),
		},
		Auth: AuthConfig{
			SessionCookie: conf.GetString("auth.sessionCookie"),
			UserIDCookie:  conf.GetString("auth.userIdCookie"),
			TokenCookie:   conf.GetString("auth.tokenCookie"),
			CookieMaxAge:  conf.GetDuration("auth.cookieMaxAge"),
			SessionTTL:    conf.GetDuration("auth.sessionTTL"),
			SecureCookies: conf.GetBool("auth.secureCookies"),
		},
		Storage: StorageConfig{
			UploadDir:    conf.GetString("storage.uploadDir"),
			ThumbnailDir: conf.GetString("storage.thumbnailDir"),
		},
		Shoutbox: ShoutboxConfig{
			Keep:          conf.GetInt("shoutbox.keep"),
			PruneSchedule: conf.GetString("shoutbox.pruneSchedule"),
		},
	}
}

func setDefaults(conf *viper.Viper) {
	conf.SetTypeByDefaultValue(true)

	conf.SetDefault("appName", "Klassenbuch")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "k7#z-pl0)qa$+91=vx&ew8m2(h!r)#*c5(#ty4u^$dofn3kwq")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridAPIKey", "")
	conf.SetDefault("passwordResetTimeout", 3*24*time.Hour)
	conf.SetDefault("notifyNewTasks", true)

	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugAddress", ":4000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 10*time.Second)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.bodyLimit", "2M")

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "klassenbuch")
	conf.SetDefault("database.user", "klassenbuch")
	conf.SetDefault("database.password", "klassenbuch")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.url", "")
	conf.SetDefault("redis.keyPrefix", "klassenbuch:session:")

	conf.SetDefault("rpc.debugLevel", 0)
	conf.SetDefault("rpc.allowSystemFuncs", true)
	conf.SetDefault("rpc.acceptedCompression", []string{"gzip", "deflate"})
	conf.SetDefault("rpc.compressResponse", false)
	conf.SetDefault("rpc.responseCharset", "")

	conf.SetDefault("auth.sessionCookie", "kb_session")
	conf.SetDefault("auth.userIdCookie", "userId")
	conf.SetDefault("auth.tokenCookie", "token")
	conf.SetDefault("auth.cookieMaxAge", 30*24*time.Hour)
	conf.SetDefault("auth.sessionTTL", 2*time.Hour)
	conf.SetDefault("auth.secureCookies", false)

	conf.SetDefault("storage.uploadDir", "uploads")
	conf.SetDefault("storage.thumbnailDir", "uploads/thumbs")

	conf.SetDefault("shoutbox.keep", 200)
	conf.SetDefault("shoutbox.pruneSchedule", "@daily")
}

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
