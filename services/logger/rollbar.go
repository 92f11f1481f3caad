package logsvc

import (
	"context"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/klassenbuch/core"
)

// RollbarLogger prints every entry to std and reports it to Rollbar once enabled.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, conf.WorkDir)
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(false)
	return &RollbarLogger{std: std, client: client}
}

func (l *RollbarLogger) Enable(enabled bool) { l.client.SetEnabled(enabled) }

// Close waits for queued reports to be sent.
func (l *RollbarLogger) Close() { _ = l.client.Close() }

// report is one log call, shaped for the rollbar client.
type report struct {
	msg    string
	err    error
	extras map[string]interface{}
	ctx    context.Context
}

// prepare sorts the arguments of a log call: the last error wins, extras maps are merged,
// and the first core.Actor becomes the reported person.
func (l *RollbarLogger) prepare(msg string, args []interface{}) report {
	r := report{msg: msg, ctx: context.Background()}
	var personSet bool
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			r.err = v
		case map[string]interface{}:
			if r.extras == nil {
				r.extras = make(map[string]interface{}, len(v)+1)
			}
			for k, val := range v {
				r.extras[k] = val
			}
		case core.Actor:
			if !personSet {
				r.ctx = rollbar.NewPersonContext(r.ctx, &rollbar.Person{
					Id:       strconv.FormatInt(v.ID, 10),
					Username: v.Name,
					Email:    v.Email,
				})
				personSet = true
			}
		}
	}
	if r.err != nil {
		if r.extras == nil {
			r.extras = make(map[string]interface{}, 1)
		}
		r.extras["message"] = msg
	}
	return r
}

func (l *RollbarLogger) log(level, label, msg string, args []interface{}) {
	r := l.prepare(msg, args)
	if r.err != nil {
		l.client.ErrorWithStackSkipWithExtrasAndContext(r.ctx, level, r.err, 3, r.extras)
	} else {
		l.client.MessageWithExtrasAndContext(r.ctx, level, r.msg, r.extras)
	}

	l.std.Println(label, msg)
	for _, arg := range args {
		if _, ok := arg.(core.Actor); !ok {
			l.std.Printf("%+v\n", arg)
		}
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, "DEBUG", msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, "INFO", msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, "WARN", msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, "ERROR", msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, "FATAL", msg, args)
	l.Close()
	l.std.Fatal(msg)
}
