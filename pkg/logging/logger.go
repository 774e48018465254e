package logging

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/DeRuina/timberjack"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/sirupsen/logrus"
)

// NewLogger creates and configures a new logrus.Logger based on the provided configuration.
func NewLogger(cfg *config.LogSettings) (*logrus.Logger, error) {
	logger := logrus.New()

	logLevel := logrus.InfoLevel
	if cfg.LogLevel != nil && *cfg.LogLevel != "" {
		if lv, err := logrus.ParseLevel(strings.ToLower(*cfg.LogLevel)); err == nil {
			logLevel = lv
		}
	}
	logger.SetLevel(logLevel)

	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		fileLogger := &timberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		output = io.MultiWriter(os.Stdout, fileLogger)
		// the main logger isn't ready yet
		logrus.New().Infof("file logging enabled, writing to %s", cfg.LogFile)
	}
	logger.SetOutput(output)

	// our SourceFormatter prints the caller, the underlying one must not
	noCaller := func(f *runtime.Frame) (string, string) {
		return "", ""
	}

	var underlying logrus.Formatter
	addSpace := false
	switch strings.ToLower(cfg.Format) {
	case "json":
		underlying = &logrus.JSONFormatter{
			CallerPrettyfier: noCaller,
		}
	default:
		underlying = &logrus.TextFormatter{
			FullTimestamp:    true,
			CallerPrettyfier: noCaller,
			ForceColors:      cfg.LogFile == "",
		}
		addSpace = true
	}

	logger.SetFormatter(&SourceFormatter{
		Underlying: underlying,
		AddSpace:   addSpace,
	})
	logger.SetReportCaller(true)

	return logger, nil
}
