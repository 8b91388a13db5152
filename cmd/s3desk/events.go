package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/s3desk/s3desk/pkg/transfer"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// consoleEvents prints transfer notifications as plain lines. Progress is
// reported as a percentage once the total is known.
type consoleEvents struct {
	mu  sync.Mutex
	out io.Writer
}

var _ transfer.Events = (*consoleEvents)(nil)

func newConsoleEvents(out io.Writer) *consoleEvents {
	return &consoleEvents{out: out}
}

func (c *consoleEvents) Progress(id uint, transferred, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if total > 0 {
		fmt.Fprintf(c.out, "transfer %d: %d/%d bytes (%.1f%%)\n", id, transferred, total,
			float64(transferred)/float64(total)*100)
		return
	}
	fmt.Fprintf(c.out, "transfer %d: %d bytes\n", id, transferred)
}

func (c *consoleEvents) Speed(id uint, bytesPerSecond float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "transfer %d: %s/s\n", id, humanBytes(int64(bytesPerSecond)))
}

func (c *consoleEvents) StatusChanged(id uint, status store.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "transfer %d: %s\n", id, status)
}

func (c *consoleEvents) Finished(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "transfer %d: done\n", id)
}

func (c *consoleEvents) Failed(id uint, userMessage, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "transfer %d: FAILED: %s\n", id, userMessage)
	if detail != "" && detail != userMessage {
		fmt.Fprintf(c.out, "transfer %d: detail: %s\n", id, detail)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
