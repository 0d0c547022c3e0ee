package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// progressTracker records completed fetch units in a .completed file under
// the data directory so interrupted runs resume where they left off. A unit
// key names what was fetched, e.g. "bars/AAPL.XNAS/1-DAY/2024-06-30".
type progressTracker struct {
	mu     sync.Mutex
	done   map[string]struct{}
	writer *bufio.Writer
	file   *os.File
}

// newProgressTracker creates a tracker rooted at dir and loads any existing
// completed entries.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	pt := &progressTracker{
		done: make(map[string]struct{}),
	}

	path := filepath.Join(dir, ".completed")
	data, err := os.ReadFile(path)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			key := strings.TrimSpace(line)
			if key != "" {
				pt.done[key] = struct{}{}
			}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening .completed: %w", err)
	}
	pt.file = f
	pt.writer = bufio.NewWriter(f)

	return pt, nil
}

// IsDone returns true if the unit was already fetched.
func (p *progressTracker) IsDone(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.done[key]
	return ok
}

// MarkDone records the unit as fetched.
func (p *progressTracker) MarkDone(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.done[key]; ok {
		return nil
	}
	p.done[key] = struct{}{}
	if _, err := p.writer.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("writing to .completed: %w", err)
	}
	return p.writer.Flush()
}

// Close flushes and closes the .completed file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
