package logger

import (
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init initialise le logger structuré.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Format JSON en production, texte en développement
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter active le format texte (développement).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
