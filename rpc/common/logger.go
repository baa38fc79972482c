package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// levelLabels are the tags printed in front of every line
var levelLabels = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// lineLogger writes "LEVEL | name | message" lines and implements logger.ILogger
type lineLogger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

// newLineLogger creates a logger for one package writing to out
func newLineLogger(name string, out *log.Logger) *lineLogger {
	l := &lineLogger{name: name, out: out}
	l.level.Store(int32(logger.INFO))
	return l
}

func (l *lineLogger) SetLevel(level logger.LogLevel) { l.level.Store(int32(level)) }

func (l *lineLogger) Debugf(format string, args ...interface{}) {
	l.emit(logger.DEBUG, format, args)
}

func (l *lineLogger) Infof(format string, args ...interface{}) {
	l.emit(logger.INFO, format, args)
}

func (l *lineLogger) Warningf(format string, args ...interface{}) {
	l.emit(logger.WARNING, format, args)
}

func (l *lineLogger) Errorf(format string, args ...interface{}) {
	l.emit(logger.ERROR, format, args)
}

// Panicf always panics, the message is logged first if the level allows it
func (l *lineLogger) Panicf(format string, args ...interface{}) {
	l.emit(logger.CRITICAL, format, args)
	panic(fmt.Sprintf(format, args...))
}

// emit drops messages above the configured level
func (l *lineLogger) emit(level logger.LogLevel, format string, args []interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.out.Printf("%-5s | %-8s | %s", levelLabels[level], l.name, fmt.Sprintf(format, args...))
}

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	return newLineLogger(pkgName, log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lmicroseconds))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames are all package loggers of the bridge
var loggerNames = []string{
	"server",
	"dispatch",
	"store",
}

// InitLoggers initializes all loggers with the custom format
func InitLoggers(config ServerConfig) error {
	level, err := ParseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	// Set as the global logger factory
	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
