// Package progress tracks multi-stage download progress: per-transfer byte
// counts, a smoothed transfer rate with ETA, and the normalized event stream
// surfaced to whatever is driving the launcher.
package progress

// Event is one progress report. The core is stateless across events beyond
// in-flight counters; consumers own retention.
type Event struct {
	Stage          string  `json:"stage"`
	File           string  `json:"file,omitempty"`
	FilePercent    float64 `json:"file_percent"`
	OverallPercent float64 `json:"overall_percent"`
	BytesDone      int64   `json:"bytes_done"`
	TotalBytes     int64   `json:"total_bytes"`
	RateBps        float64 `json:"rate_bps"`
	ETASeconds     int64   `json:"eta_seconds"` // 0 when rate is unknown
	Completed      int     `json:"completed"`
	Total          int     `json:"total"`
}

// Func receives progress events. Implementations must be fast; events are
// already coalesced to a few per second before reaching the callback.
type Func func(Event)
