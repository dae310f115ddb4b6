package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

// Init configures the logger from LOG_LEVEL and LOG_FORMAT.
// format "text" selects the development formatter, anything else is JSON.
func Init(level, format string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if format == "text" {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// WithBooking returns an entry tagged with the booking id.
func WithBooking(bookingID string) *logrus.Entry {
	return Log.WithField("booking_id", bookingID)
}
