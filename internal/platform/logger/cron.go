package logger

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// CronLogger adapta Logger a cron.Logger. Los Info de cron van a debug
// porque cron loguea cada ejecución.
func CronLogger(l Logger) cron.Logger {
	if l == nil {
		l = Nop()
	}
	return cronLogger{l: l}
}

type cronLogger struct {
	l Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, kvToFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	f := kvToFields(keysAndValues)
	f["error"] = err
	c.l.Error(msg, f)
}

func kvToFields(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		out["extra"] = kv[len(kv)-1]
	}
	return out
}
