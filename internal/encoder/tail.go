package encoder

import (
	"strings"
	"sync"

	"github.com/schovi/screenrec/internal/ansi"
)

const maxPartialLine = 4096

// logTail keeps the last max lines of ffmpeg console output with escape
// sequences removed.
type logTail struct {
	mu      sync.Mutex
	lines   []string
	partial string
	max     int
}

func newLogTail(max int) *logTail {
	return &logTail{max: max}
}

func (t *logTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := t.partial + string(p)
	cut := strings.LastIndexAny(data, "\r\n")
	if cut < 0 {
		t.partial = data
		if len(t.partial) > maxPartialLine {
			t.partial = t.partial[len(t.partial)-maxPartialLine:]
		}
		return len(p), nil
	}
	t.partial = data[cut+1:]
	t.lines = append(t.lines, ansi.Lines(data[:cut+1])...)

	if t.max > 0 && len(t.lines) > t.max {
		excess := len(t.lines) - t.max
		t.lines = append([]string(nil), t.lines[excess:]...)
	}
	return len(p), nil
}

// Lines returns the buffered lines including any unterminated last line.
func (t *logTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := append([]string(nil), t.lines...)
	out = append(out, ansi.Lines(t.partial)...)
	return out
}

func (t *logTail) String() string {
	return strings.Join(t.Lines(), "\n")
}
