package redis

import (
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger is the package default: silent unless a caller opts
// into diagnostics by pointing a Pool/Router's Log field elsewhere.
// Matches the teacher lineage's habit of keeping logging opt-in rather
// than writing to stderr by default.
var discardLogger = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewLogger returns a logrus.Logger preconfigured the way this module
// expects callers to wire one in: text formatter, Info level. Callers
// needing JSON or a different level construct their own. Either way the
// logger is wrapped with logrus.NewEntry before assignment, since
// Pool.Log and the router Log fields are *logrus.Entry.
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}
