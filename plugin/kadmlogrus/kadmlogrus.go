// Package kadmlogrus provides the kadmin.Logger interface, plus a set
// of kadmin.Hook implementations, backed by logrus.
//
// The Logger half is for kadmin.WithLogger when initializing a client.
// The Hook half additionally logs the same Call lifecycle events that
// kadmprom turns into metrics (submitted, assigned, sent, retried,
// completed, metadata refresh), each at a level appropriate to its
// severity, with structured fields for the Call name, node, and error.
package kadmlogrus

import (
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

var ( // interface checks to ensure we implement the hooks properly
	_ kadmin.Logger              = new(Logger)
	_ kadmin.HookCallSubmitted   = new(Logger)
	_ kadmin.HookCallAssigned    = new(Logger)
	_ kadmin.HookCallSent        = new(Logger)
	_ kadmin.HookCallRetried     = new(Logger)
	_ kadmin.HookCallCompleted   = new(Logger)
	_ kadmin.HookMetadataRefresh = new(Logger)
)

// Logger provides the kadmin.Logger interface for usage in
// kadmin.WithLogger, and doubles as a kadmin.Hook implementation for
// usage in kadmin.WithHooks so that Call lifecycle events land in the
// same logrus output as everything else.
type Logger struct {
	lr *logrus.Logger
}

// New returns a new Logger.
func New(lr *logrus.Logger) *Logger {
	return &Logger{lr}
}

// Level is for the kadmin.Logger interface.
func (l *Logger) Level() kadmin.LogLevel {
	return logrusToKadminLevel(l.lr.GetLevel())
}

// Log is for the kadmin.Logger interface.
func (l *Logger) Log(level kadmin.LogLevel, msg string, keyvals ...any) {
	logrusLevel, levelMatched := kadminToLogrusLevel(level)
	if !levelMatched {
		return
	}
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if k, ok := keyvals[i].(string); ok {
			fields[k] = keyvals[i+1]
		}
	}
	l.lr.WithFields(fields).Log(logrusLevel, msg)
}

func strnode(node int32) string {
	if node < 0 {
		return "seed_" + strconv.Itoa(int(node)-math.MinInt32)
	}
	return strconv.Itoa(int(node))
}

// OnCallSubmitted logs at debug: submission is the common, uninteresting
// case, and there's one of these for every Call ever made.
func (l *Logger) OnCallSubmitted(name string, internal bool) {
	l.lr.WithFields(logrus.Fields{"call": name, "internal": internal}).Debug("call submitted")
}

// OnCallAssigned logs at debug for the same reason as OnCallSubmitted.
func (l *Logger) OnCallAssigned(name string, nodeID int32) {
	l.lr.WithFields(logrus.Fields{"call": name, "node": strnode(nodeID)}).Debug("call assigned to node")
}

// OnCallSent logs at debug; tries lets a reader spot a Call that is
// being sent repeatedly without reading through the retry log lines.
func (l *Logger) OnCallSent(name string, nodeID int32, tries int) {
	l.lr.WithFields(logrus.Fields{"call": name, "node": strnode(nodeID), "tries": tries}).Debug("call sent")
}

// OnCallRetried logs at warn: a retry means something on the request
// path already failed once.
func (l *Logger) OnCallRetried(name string, tries int, err error) {
	l.lr.WithFields(logrus.Fields{"call": name, "tries": tries, "err": err}).Warn("call retried")
}

// OnCallCompleted logs at info on success and error on failure.
func (l *Logger) OnCallCompleted(name string, tries int, took time.Duration, err error) {
	fields := logrus.Fields{"call": name, "tries": tries, "took": took}
	if err != nil {
		l.lr.WithFields(fields).WithError(err).Error("call failed")
		return
	}
	l.lr.WithFields(fields).Info("call completed")
}

// OnMetadataRefresh logs at info on success and warn on failure: a
// single failed refresh isn't fatal, the next scheduled attempt will
// retry it.
func (l *Logger) OnMetadataRefresh(nodeCount int, err error) {
	if err != nil {
		l.lr.WithError(err).Warn("metadata refresh failed")
		return
	}
	l.lr.WithField("nodes", nodeCount).Info("metadata refreshed")
}

func kadminToLogrusLevel(level kadmin.LogLevel) (logrus.Level, bool) {
	switch level {
	case kadmin.LogLevelError:
		return logrus.ErrorLevel, true
	case kadmin.LogLevelWarn:
		return logrus.WarnLevel, true
	case kadmin.LogLevelInfo:
		return logrus.InfoLevel, true
	case kadmin.LogLevelDebug:
		return logrus.DebugLevel, true
	}
	return logrus.TraceLevel, false
}

func logrusToKadminLevel(level logrus.Level) kadmin.LogLevel {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return kadmin.LogLevelError
	case logrus.WarnLevel:
		return kadmin.LogLevelWarn
	case logrus.InfoLevel:
		return kadmin.LogLevelInfo
	case logrus.DebugLevel, logrus.TraceLevel:
		return kadmin.LogLevelDebug
	default:
		return kadmin.LogLevelNone
	}
}
