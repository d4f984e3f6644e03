// Package logger builds the logrus logger shared by every service.
package logger

import (
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. level is a logrus level name ("debug", "info"...),
// format is "json" or "text". Unknown values fall back to info/text.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stdout

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
		return log
	}

	log.SetReportCaller(lvl >= logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
			return "", path.Base(frame.File) + ":" + strconv.Itoa(frame.Line) + " >>"
		},
	})
	return log
}
