// pkg/progress/progress.go
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Func reports progress for one app. total is 0 when the size is unknown.
type Func func(app string, current, total int64)

// Discard ignores all progress updates.
func Discard(string, int64, int64) {}

// Reporter renders plain progress lines onto a writer. All updates pass
// through one mutex so concurrent workers never interleave output.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool
	percent map[string]int
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, noColor bool) *Reporter {
	return &Reporter{
		w:       w,
		noColor: noColor,
		percent: make(map[string]int),
	}
}

// Download reports download progress; updates are emitted on whole-percent
// steps to keep output readable when called per chunk.
func (r *Reporter) Download(app string, current, total int64) {
	r.update("downloading", app, current, total)
}

// Extract reports extraction progress in archive members.
func (r *Reporter) Extract(app string, current, total int64) {
	r.update("extracting", app, current, total)
}

func (r *Reporter) update(verb, app string, current, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := verb + ":" + app
	if total <= 0 {
		fmt.Fprintf(r.w, "%s %s: %s\n", verb, app, formatBytes(current))
		return
	}

	pct := int(current * 100 / total)
	if last, ok := r.percent[key]; ok && pct == last {
		return
	}
	r.percent[key] = pct

	if pct >= 100 {
		delete(r.percent, key)
		if r.noColor {
			fmt.Fprintf(r.w, "%s %s: done\n", verb, app)
		} else {
			fmt.Fprintf(r.w, "%s %s: \x1b[32mdone\x1b[0m\n", verb, app)
		}
		return
	}
	fmt.Fprintf(r.w, "%s %s: %d%%\n", verb, app, pct)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
