package craft

import "time"

// Level is the minimum severity a message needs to be logged.
type Level uint

const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
	SilentLevel
)

var level = InfoLevel

// Logger writes leveled messages.  Each method formats like fmt.Printf.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Shutdown flushes and closes any log file.
	Shutdown()
}

// SetLevel drops messages below the given severity.  SilentLevel drops everything.
func SetLevel(l Level) {
	level = l
}

func Debugf(format string, args ...interface{}) {
	if level <= DebugLevel {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if level <= InfoLevel {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if level <= WarningLevel {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if level <= ErrorLevel {
		logger.Errorf(format, args...)
	}
}

// Shutdown closes any log file opened by LogConfig.SetLogger.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since NewTimeLog to each message.
//
//	timedLog := craft.NewTimeLog()
//	...
//	timedLog.Infof("Loaded %d volumes", n)
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s\n", append(args, time.Since(t.start))...)
}
