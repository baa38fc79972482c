package cstore

import (
	"fmt"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// driverLogger routes gocql output (gocql.StdLogger) into the package logger.
// The driver only logs noteworthy events (reconnects, failed hosts), so everything is a warning.
type driverLogger struct {
	log logger.ILogger
}

func (l *driverLogger) Print(v ...interface{}) {
	l.log.Warningf("gocql: %s", strings.TrimSpace(fmt.Sprint(v...)))
}

func (l *driverLogger) Printf(format string, v ...interface{}) {
	l.log.Warningf("gocql: %s", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *driverLogger) Println(v ...interface{}) {
	l.log.Warningf("gocql: %s", strings.TrimSpace(fmt.Sprintln(v...)))
}
