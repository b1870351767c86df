package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	FilePrefix    = "ScreenRecord_"
	FileExtension = ".mp4"
	stampLayout   = "20060102_150405"
)

// Namer hands out unique output paths named after the local time.
type Namer struct {
	mu   sync.Mutex
	now  func() time.Time
	last string
	seq  int
}

func NewNamer() *Namer {
	return &Namer{now: time.Now}
}

// NextOutputPath returns a path in dir that no earlier call returned and
// that does not exist yet. Calls within the same second get a _N suffix.
func (n *Namer) NextOutputPath(dir string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	stamp := n.now().Format(stampLayout)
	if stamp == n.last {
		n.seq++
	} else {
		n.last = stamp
		n.seq = 0
	}

	for {
		name := FilePrefix + stamp
		if n.seq > 0 {
			name += fmt.Sprintf("_%d", n.seq)
		}
		path := filepath.Join(dir, name+FileExtension)
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
		n.seq++
	}
}
