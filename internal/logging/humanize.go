package logging

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

func formatBytes(bytes int64) string {
	if bytes < 0 {
		return strconv.FormatInt(bytes, 10)
	}
	return humanize.Bytes(uint64(bytes))
}

func formatDurationHuman(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func formatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}
