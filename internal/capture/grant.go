package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/schovi/screenrec/internal/session"
)

const LockFile = "capture.lock"

var (
	ErrDeviceBusy    = errors.New("capture device is busy")
	ErrNoDisplay     = errors.New("no display to capture")
	ErrGrantReleased = errors.New("capture grant was released")
)

type Options struct {
	LockDir string
	// Display overrides $DISPLAY on X11 systems.
	Display string
	Logger  *slog.Logger

	goos   string
	getenv func(string) string
}

// Grant is an exclusive, single-use hold on the screen capture device. It
// is backed by a file lock so that two daemons never record at once.
type Grant struct {
	mu       sync.Mutex
	token    string
	lock     *flock.Flock
	display  string
	goos     string
	logger   *slog.Logger
	surface  *Surface
	released bool
}

// Request acquires the capture device without blocking.
func Request(opts Options) (*Grant, error) {
	if opts.goos == "" {
		opts.goos = runtime.GOOS
	}
	if opts.getenv == nil {
		opts.getenv = os.Getenv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	display, err := resolveDisplay(opts.goos, opts.Display, opts.getenv)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.LockDir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lockPath := filepath.Join(opts.LockDir, LockFile)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock capture device: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock held: %s", ErrDeviceBusy, lockPath)
	}

	g := &Grant{
		token:   uuid.NewString(),
		lock:    lock,
		display: display,
		goos:    opts.goos,
		logger:  opts.Logger,
	}
	g.logger.Debug("capture grant acquired", "grant", g.token, "display", display)
	return g, nil
}

// ResolveDisplay reports which display a grant would capture on this
// system.
func ResolveDisplay(display string) (string, error) {
	return resolveDisplay(runtime.GOOS, display, os.Getenv)
}

// Busy reports whether some process holds the capture lock in lockDir.
func Busy(lockDir string) (bool, error) {
	lock := flock.New(filepath.Join(lockDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !locked {
		return true, nil
	}
	return false, lock.Unlock()
}

func resolveDisplay(goos, display string, getenv func(string) string) (string, error) {
	switch goos {
	case "darwin", "windows":
		return display, nil
	}
	if display != "" {
		return display, nil
	}
	if d := getenv("DISPLAY"); d != "" {
		return d, nil
	}
	if getenv("WAYLAND_DISPLAY") != "" {
		return "", fmt.Errorf("%w: wayland session without XWayland ($DISPLAY unset)", ErrNoDisplay)
	}
	return "", fmt.Errorf("%w: $DISPLAY is not set", ErrNoDisplay)
}

func (g *Grant) Token() string { return g.token }

func (g *Grant) Display() string { return g.display }

func (g *Grant) IsValid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.released
}

// CreateSurfaceTarget describes a capture target of the given size. Only
// one surface may be live per grant.
func (g *Grant) CreateSurfaceTarget(width, height, density int) (session.Surface, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, ErrGrantReleased
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("surface size %dx%d must be positive", width, height)
	}
	if g.surface != nil {
		return nil, fmt.Errorf("grant %s already has surface %s", g.token, g.surface.id)
	}

	s := &Surface{
		id:      uuid.NewString(),
		width:   width,
		height:  height,
		density: density,
		args:    inputArgs(g.goos, g.display),
		grant:   g,
	}
	g.surface = s
	g.logger.Debug("surface created", "grant", g.token, "surface", s.id, "size", fmt.Sprintf("%dx%d", width, height))
	return s, nil
}

// Release drops any live surface and the device lock. It is safe to call
// more than once.
func (g *Grant) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil
	}
	g.released = true
	if g.surface != nil {
		g.surface.released = true
		g.surface = nil
	}
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock capture device: %w", err)
	}
	g.logger.Debug("capture grant released", "grant", g.token)
	return nil
}

func (g *Grant) releaseSurface(s *Surface) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s.released {
		return
	}
	s.released = true
	if g.surface == s {
		g.surface = nil
	}
}
