package utils

import (
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// MeasureTime logs the elapsed time of a call site, use with defer.
func MeasureTime(name string, start time.Time) {
	goapp.Log.Info().Dur("elapsed", time.Since(start)).Str("func", name).Msg("time")
}
