package transfer

import (
	"fmt"
	"time"
)

// Progress is a point-in-time snapshot of one upload, emitted after
// every acknowledged chunk.
type Progress struct {
	Filename    string
	ChunksSent  int
	TotalChunks int
	BytesSent   int64
	TotalBytes  int64
}

// Reporter prints upload progress to the terminal, throttled so large
// uploads do not flood the output.
type Reporter struct {
	start    time.Time
	last     time.Time
	interval time.Duration
}

// NewReporter creates a reporter that prints at most one line per
// interval. The final chunk always prints.
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{start: time.Now(), interval: interval}
}

// Update prints a progress line when one is due.
func (r *Reporter) Update(p Progress) {
	now := time.Now()
	done := p.ChunksSent == p.TotalChunks
	if !done && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now

	percent := 0.0
	if p.TotalChunks > 0 {
		percent = float64(p.ChunksSent) / float64(p.TotalChunks) * 100.0
	}

	elapsed := now.Sub(r.start).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(p.BytesSent) / elapsed
	}

	line := fmt.Sprintf("📤 %s: %d/%d chunks (%.1f%%), %s/%s",
		p.Filename, p.ChunksSent, p.TotalChunks, percent,
		formatBytes(p.BytesSent), formatBytes(p.TotalBytes))
	if sp := int64(speed); sp > 0 {
		line += fmt.Sprintf(" at %s/s", formatBytes(sp))
		if p.TotalBytes > p.BytesSent {
			eta := time.Duration((p.TotalBytes-p.BytesSent)/sp) * time.Second
			line += fmt.Sprintf(", ETA %s", formatDuration(eta))
		}
	}
	fmt.Println(line)
}

// Summary prints the final accounting for an upload, finished or not.
func (r *Reporter) Summary(res *TransferResult) {
	fmt.Printf("\n=== Upload Summary: %s ===\n", res.Filename)
	fmt.Printf("  Chunks: %d/%d\n", res.ChunksSent, res.Total)
	fmt.Printf("  Bytes: %s\n", formatBytes(res.Bytes))
	fmt.Printf("  Attempts: %d\n", res.Attempts)
	fmt.Printf("  Duration: %s\n", formatDuration(res.Duration))
	if res.Duration > 0 && res.Bytes > 0 {
		speed := float64(res.Bytes) / res.Duration.Seconds()
		if sp := int64(speed); sp > 0 {
			fmt.Printf("  Speed: %s/s\n", formatBytes(sp))
		}
	}
	if res.SessionID != "" {
		fmt.Printf("  Session: %s\n", res.SessionID)
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	return fmt.Sprintf("%.0fh", d.Hours())
}
