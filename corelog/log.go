// Package corelog is the module's logging surface: a thin wrapper over
// logrus that gives every call site the same Debugf/Infof/Errorf shape the
// teacher repo's own fs.Debugf/fs.Infof/fs.Errorf calls use throughout
// backend/local/local.go and backend/cache/*.go, keyed by "the object being
// logged about" rather than a bare format string.
package corelog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logrus instance. Tests may swap its output or
// level; production wiring (cmd/filecorecli) configures formatting once at
// startup.
var Logger = logrus.New()

func subject(o interface{}) string {
	if o == nil {
		return "-"
	}
	if s, ok := o.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", o)
}

// Debugf logs at debug level about subject o.
func Debugf(o interface{}, format string, args ...interface{}) {
	Logger.WithField("object", subject(o)).Debugf(format, args...)
}

// Infof logs at info level about subject o.
func Infof(o interface{}, format string, args ...interface{}) {
	Logger.WithField("object", subject(o)).Infof(format, args...)
}

// Errorf logs at error level about subject o.
func Errorf(o interface{}, format string, args ...interface{}) {
	Logger.WithField("object", subject(o)).Errorf(format, args...)
}

// Warnf logs at warn level about subject o. Used for the cache's
// programmer-error cases (§4.D: a direct Valid->Pending transition, or
// set_pending on an already-Valid slot) that spec.md requires to be logged
// rather than panicking.
func Warnf(o interface{}, format string, args ...interface{}) {
	Logger.WithField("object", subject(o)).Warnf(format, args...)
}
