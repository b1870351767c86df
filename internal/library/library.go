package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var ErrNotFound = errors.New("recording not found")

type Item struct {
	Path      string    `json:"path" yaml:"path"`
	Name      string    `json:"name" yaml:"name"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
}

// HumanSize formats the size with binary units, e.g. "5.0 MiB".
func (i Item) HumanSize() string {
	return humanize.IBytes(uint64(i.SizeBytes))
}

// Age formats the modification time relative to now, e.g. "3 minutes ago".
func (i Item) Age() string {
	return humanize.Time(i.ModTime)
}

// Library manages the recordings directory.
type Library struct {
	dir   string
	namer *Namer
}

func New(dir string) *Library {
	return &Library{dir: dir, namer: NewNamer()}
}

func (l *Library) Dir() string { return l.dir }

func (l *Library) EnsureDir() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}
	return nil
}

// NextOutputPath creates the directory if needed and returns a fresh
// output path inside it.
func (l *Library) NextOutputPath() (string, error) {
	if err := l.EnsureDir(); err != nil {
		return "", err
	}
	return l.namer.NextOutputPath(l.dir), nil
}

// List returns the recordings newest first. A missing directory is empty.
func (l *Library) List() ([]Item, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("read recordings dir: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isRecording(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, itemFrom(l.dir, info))
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ModTime.Equal(items[b].ModTime) {
			return items[a].Name > items[b].Name
		}
		return items[a].ModTime.After(items[b].ModTime)
	})
	return items, nil
}

func (l *Library) Find(name string) (Item, error) {
	if err := ValidateName(name); err != nil {
		return Item{}, err
	}
	info, err := os.Stat(filepath.Join(l.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return Item{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Item{}, fmt.Errorf("stat recording: %w", err)
	}
	if info.IsDir() || !isRecording(name) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return itemFrom(l.dir, info), nil
}

// Delete removes the item's file and reports whether it was deleted.
func (l *Library) Delete(item Item) bool {
	if filepath.Dir(item.Path) != filepath.Clean(l.dir) {
		return false
	}
	return os.Remove(item.Path) == nil
}

// DeleteByName finds and removes a recording.
func (l *Library) DeleteByName(name string) (Item, error) {
	item, err := l.Find(name)
	if err != nil {
		return Item{}, err
	}
	if !l.Delete(item) {
		return Item{}, fmt.Errorf("could not delete %s", item.Path)
	}
	return item, nil
}

func isRecording(name string) bool {
	return strings.EqualFold(filepath.Ext(name), FileExtension)
}

func itemFrom(dir string, info os.FileInfo) Item {
	return Item{
		Path:      filepath.Join(dir, info.Name()),
		Name:      info.Name(),
		ModTime:   info.ModTime(),
		SizeBytes: info.Size(),
	}
}
