package download

import (
	"fmt"
	"log/slog"
	"time"
)

const meterInterval = time.Second

// meter logs a sink's throughput at most once per meterInterval, and
// once more when the download is committed.
type meter struct {
	logger *slog.Logger
	total  int64
	start  time.Time
	last   time.Time
}

func (m *meter) update(written int64) {
	if m == nil || time.Since(m.last) < meterInterval {
		return
	}
	m.last = time.Now()
	m.log("downloading", written)
}

func (m *meter) finish(written int64) {
	if m == nil {
		return
	}
	m.log("download complete", written)
}

func (m *meter) log(msg string, written int64) {
	elapsed := time.Since(m.start)

	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", written,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, "mbps", fmt.Sprintf("%.2f", float64(written)/secs/(1024*1024)))
	}
	if m.total > 0 {
		attrs = append(attrs,
			"progress", fmt.Sprintf("%.1f%%", float64(written)/float64(m.total)*100),
			"total", m.total,
		)
	}

	m.logger.Info(msg, attrs...)
}
