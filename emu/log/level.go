package log

import "gopkg.in/Sirupsen/logrus.v0"

// Level mirrors logrus levels, lower is more severe.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (lvl Level) logrus() logrus.Level {
	return logrus.Level(lvl)
}

var disabled bool

// Disable silences every module, including warnings and errors.
func Disable() {
	disabled = true
}

// SetOutputLevel sets the minimum severity forwarded to the logrus backend.
func SetOutputLevel(lvl Level) {
	logrus.SetLevel(lvl.logrus())
}

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
}
