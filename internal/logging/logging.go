// Package logging sets up the shared logrus logger every component in
// this repo logs through. It replaces the teacher's ad hoc
// fmt.Printf("[Recovery] ...")-style diagnostics with structured fields,
// keeping the same bracketed-tag vocabulary as log message text.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger from a level string ("debug", "info",
// "warn", "error", case-insensitive) and a format ("text" or "json").
// An unrecognized level falls back to Info rather than failing startup.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
