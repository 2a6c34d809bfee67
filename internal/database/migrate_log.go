package database

import (
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// gooseLogger routes goose output through zap.
type gooseLogger struct{ log *zap.SugaredLogger }

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Infof(strings.TrimRight(format, "\n"), v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatalf(strings.TrimRight(format, "\n"), v...)
}

// SetLogger sends migration output to log. A nil log discards it.
func SetLogger(log *zap.Logger) {
	if log == nil {
		goose.SetLogger(goose.NopLogger())
		return
	}
	goose.SetLogger(gooseLogger{log: log.Named("migrate").Sugar()})
}
