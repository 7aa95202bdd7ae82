package craft

import (
	"fmt"
	"log"

	"github.com/natefinch/lumberjack"
)

// fileLogger sends leveled messages through the standard log package, whose output is a
// rotating file once SetLogger has run.
type fileLogger struct {
	*lumberjack.Logger
}

var logger = &fileLogger{}

// LogConfig is the [logging] section of the server configuration.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

// SetLogger sends log output to a rotating log file.  With no file configured, messages
// keep going to stderr.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("Sending log messages to stderr since no log file specified.")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(l)
	logger.Logger = l
}

func (l *fileLogger) Debugf(format string, args ...interface{}) {
	log.Printf(" DEBUG "+format, args...)
}

func (l *fileLogger) Infof(format string, args ...interface{}) {
	log.Printf(" INFO "+format, args...)
}

func (l *fileLogger) Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

func (l *fileLogger) Errorf(format string, args ...interface{}) {
	log.Printf(" ERROR "+format, args...)
}

func (l *fileLogger) Shutdown() {
	if l.Logger != nil {
		log.Printf("Closing log file...\n")
		l.Logger.Close()
	}
}
