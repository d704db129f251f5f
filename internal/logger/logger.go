package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stdout at level (e.g. "debug",
// "info"). An unknown level falls back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// LogError logs err with the component and operation that produced it.
func LogError(l logrus.FieldLogger, component, op string, fields logrus.Fields, err error) {
	e := l.WithFields(logrus.Fields{"component": component, "op": op})
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	e.Error(err.Error())
}
