package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/schovi/screenrec/internal/session"
)

const (
	DefaultBinary   = "ffmpeg"
	DefaultLogLines = 200

	// FinalizeGracePeriod is how long ffmpeg gets after each shutdown
	// request (q, then SIGINT) before the next, harsher one.
	FinalizeGracePeriod = 5 * time.Second

	// StartupProbe is how long Start watches for ffmpeg dying on bad input.
	StartupProbe = 300 * time.Millisecond

	ReadBufferSize = 4096
)

var ErrNotFound = errors.New("ffmpeg not found")

// InputSource is implemented by capture surfaces that can describe
// themselves as ffmpeg input arguments.
type InputSource interface {
	InputArgs() []string
}

type Options struct {
	Binary      string
	Display     string
	LogLines    int
	Audio       AudioInputs
	GracePeriod time.Duration
	Startup     time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.LogLines <= 0 {
		o.LogLines = DefaultLogLines
	}
	if o.Audio == (AudioInputs{}) {
		o.Audio = defaultAudioInputs()
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = FinalizeGracePeriod
	}
	if o.Startup <= 0 {
		o.Startup = StartupProbe
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Factory configures one ffmpeg encoder per recording.
type Factory struct {
	opts Options
}

func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts.withDefaults()}
}

func (f *Factory) Configure(cfg session.Config) (session.Encoder, error) {
	bin, err := exec.LookPath(f.opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, f.opts.Binary, err)
	}
	return &FFmpeg{
		id:     uuid.NewString(),
		bin:    bin,
		cfg:    cfg,
		opts:   f.opts,
		logger: f.opts.Logger,
		tail:   newLogTail(f.opts.LogLines),
	}, nil
}

// FFmpeg is a single ffmpeg process writing one output file. Its console
// runs on a pty so that a q keypress can ask it to finish the file.
type FFmpeg struct {
	id     string
	bin    string
	cfg    session.Config
	opts   Options
	logger *slog.Logger
	tail   *logTail

	mu          sync.Mutex
	cmd         *exec.Cmd
	ptmx        *os.File
	done        chan struct{}
	drained     chan struct{}
	waitErr     error
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	finalizeOnce sync.Once
	duration     time.Duration
	finalErr     error
}

func (e *FFmpeg) ID() string { return e.id }

// Args returns the command line Start would run for input.
func (e *FFmpeg) Args(input []string) []string {
	return BuildArgs(e.cfg, input, e.opts.Audio)
}

func (e *FFmpeg) Start(surface session.Surface) error {
	src, ok := surface.(InputSource)
	if !ok {
		return fmt.Errorf("surface %s cannot be used as an ffmpeg input", surface.ID())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return fmt.Errorf("encoder %s already started", e.id)
	}

	args := e.Args(src.InputArgs())
	cmd := exec.Command(e.bin, args...)
	cmd.Env = os.Environ()
	if e.opts.Display != "" {
		cmd.Env = append(cmd.Env, "DISPLAY="+e.opts.Display)
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.cmd = cmd
	e.ptmx = ptmx
	e.done = make(chan struct{})
	e.drained = make(chan struct{})
	e.startedAt = time.Now()

	go e.drain(ptmx)
	go e.wait(cmd)

	e.logger.Debug("ffmpeg started", "encoder", e.id, "pid", cmd.Process.Pid, "args", args)

	select {
	case <-e.done:
		return fmt.Errorf("ffmpeg exited during startup: %v\n%s", e.waitErr, e.tail.String())
	case <-time.After(e.opts.Startup):
	}
	return nil
}

func (e *FFmpeg) drain(ptmx *os.File) {
	defer close(e.drained)
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			e.tail.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (e *FFmpeg) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	e.waitErr = err
	close(e.done)
}

// Exited is closed when the ffmpeg process ends, whether or not Finalize
// asked it to. It is nil before Start.
func (e *FFmpeg) Exited() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		return nil
	}
	return e.done
}

// ExitErr describes how ffmpeg ended, with its last console lines. It is
// nil while the process is still running.
func (e *FFmpeg) ExitErr() error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
	default:
		return nil
	}
	if e.waitErr != nil {
		return fmt.Errorf("ffmpeg exited: %v\n%s", e.waitErr, e.tail.String())
	}
	return fmt.Errorf("ffmpeg exited before it was asked to stop\n%s", e.tail.String())
}

func (e *FFmpeg) SupportsPause() bool { return pauseSupported }

func (e *FFmpeg) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.runningLocked(); err != nil {
		return err
	}
	if !e.pausedAt.IsZero() {
		return nil
	}
	if err := suspend(e.cmd.Process.Pid); err != nil {
		return fmt.Errorf("suspend ffmpeg: %w", err)
	}
	e.pausedAt = time.Now()
	return nil
}

func (e *FFmpeg) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.runningLocked(); err != nil {
		return err
	}
	return e.resumeLocked()
}

func (e *FFmpeg) resumeLocked() error {
	if e.pausedAt.IsZero() {
		return nil
	}
	if err := resume(e.cmd.Process.Pid); err != nil {
		return fmt.Errorf("resume ffmpeg: %w", err)
	}
	e.pausedTotal += time.Since(e.pausedAt)
	e.pausedAt = time.Time{}
	return nil
}

func (e *FFmpeg) runningLocked() error {
	if e.cmd == nil {
		return fmt.Errorf("encoder %s not started", e.id)
	}
	select {
	case <-e.done:
		return fmt.Errorf("ffmpeg exited: %v", e.waitErr)
	default:
	}
	return nil
}

// Finalize asks ffmpeg to finish the file and waits for it to exit. The
// first call does the work; later calls return its result.
func (e *FFmpeg) Finalize(ctx context.Context) (time.Duration, error) {
	e.finalizeOnce.Do(func() {
		e.duration, e.finalErr = e.finalize(ctx)
	})
	return e.duration, e.finalErr
}

func (e *FFmpeg) finalize(ctx context.Context) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return 0, nil
	}

	// A stopped process cannot read the quit key.
	if err := e.resumeLocked(); err != nil {
		e.logger.Warn("resume before finalize", "encoder", e.id, "error", err)
	}
	active := time.Since(e.startedAt) - e.pausedTotal
	pid := e.cmd.Process.Pid

	exited := e.exited()
	if !exited {
		if _, err := e.ptmx.Write([]byte("q\n")); err != nil {
			e.logger.Warn("send quit to ffmpeg", "encoder", e.id, "error", err)
		}
		exited = e.waitExit(ctx, e.opts.GracePeriod)
	}
	if !exited {
		e.logger.Warn("ffmpeg ignored quit, interrupting", "encoder", e.id, "pid", pid)
		interrupt(pid)
		exited = e.waitExit(ctx, e.opts.GracePeriod)
	}
	killed := false
	if !exited {
		e.logger.Error("ffmpeg ignored interrupt, killing", "encoder", e.id, "pid", pid)
		e.cmd.Process.Kill()
		<-e.done
		killed = true
	}

	select {
	case <-e.drained:
	case <-time.After(100 * time.Millisecond):
	}
	e.ptmx.Close()

	if killed {
		return active, fmt.Errorf("%w: ffmpeg killed before finishing %s\n%s", session.ErrEncoder, e.cfg.OutputPath, e.tail.String())
	}
	if e.waitErr != nil {
		return active, fmt.Errorf("%w: ffmpeg: %v\n%s", session.ErrEncoder, e.waitErr, e.tail.String())
	}
	e.logger.Debug("ffmpeg finished", "encoder", e.id, "duration", active)
	return active, nil
}

func (e *FFmpeg) exited() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *FFmpeg) waitExit(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-e.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Log returns the most recent ffmpeg console lines.
func (e *FFmpeg) Log() []string {
	return e.tail.Lines()
}
