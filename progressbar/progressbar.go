// Package progressbar is the default spi.ProgressListener: a terminal
// progress bar over github.com/cheggaaa/pb/v3, with a plain end-of-transfer
// summary line in quiet mode.
package progressbar

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// Bar reports incremental byte counts — spi.ProgressListener.Progress is
// called once per chunk written, not with a running total — onto a
// single pb.ProgressBar.
type Bar struct {
	bar       *pb.ProgressBar
	quiet     bool
	label     string
	startTime time.Time
	mu        sync.Mutex
	current   int64
}

// New creates a progress listener for a transfer of known total size (0
// if unknown). quiet suppresses the live bar but Finish still reports a
// one-line summary.
func New(label string, total int64, quiet bool) *Bar {
	b := &Bar{quiet: quiet, label: label, startTime: time.Now()}
	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", label+": ")
		b.bar = bar
	}
	return b
}

// Progress implements spi.ProgressListener.
func (b *Bar) Progress(bytesTransferred int64) error {
	b.mu.Lock()
	b.current += bytesTransferred
	current := b.current
	b.mu.Unlock()

	if b.bar != nil {
		b.bar.SetCurrent(current)
	}
	return nil
}

// Finish closes the bar and, in quiet mode, prints a one-line summary.
func (b *Bar) Finish() {
	elapsed := time.Since(b.startTime)
	if b.bar != nil {
		b.bar.Finish()
		return
	}
	speed := float64(b.current) / elapsed.Seconds()
	fmt.Printf("%s: %s in %v (%s/s)\n", b.label, formatBytes(b.current), elapsed.Round(time.Millisecond), formatBytes(int64(speed)))
}

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
