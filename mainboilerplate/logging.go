package mainboilerplate

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

var logFormatters = map[string]func() log.Formatter{
	"json":  func() log.Formatter { return &log.JSONFormatter{} },
	"text":  func() log.Formatter { return &log.TextFormatter{DisableColors: true, FullTimestamp: true} },
	"color": func() log.Formatter { return &log.TextFormatter{ForceColors: true, FullTimestamp: true} },
}

// InitLog configures the logger. Logs go to stderr; stdout carries command output.
func InitLog(cfg LogConfig) {
	log.SetOutput(os.Stderr)

	if newFormatter, ok := logFormatters[cfg.Format]; ok {
		log.SetFormatter(newFormatter())
	}
	var lvl, err = log.ParseLevel(cfg.Level)
	Must(err, "unrecognized log level", "level", cfg.Level)
	log.SetLevel(lvl)
}
