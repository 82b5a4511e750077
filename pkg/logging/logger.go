package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Debug mode switches to human-readable
// text with timestamps; otherwise output is JSON for log collection.
// Callers hand the logger to each component explicitly.
func New(debug bool) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stdout

	if debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
