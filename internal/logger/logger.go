package logger

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the logrus standard logger used across the application.
// format is either "text" or "json".
func Setup(level, format string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	log.SetOutput(os.Stdout)
	log.SetLevel(parsed)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	return nil
}
