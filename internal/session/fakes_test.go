package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// callLog records teardown-relevant calls across fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(s string) int {
	n := 0
	for _, c := range l.all() {
		if c == s {
			n++
		}
	}
	return n
}

type fakeSurface struct {
	id         string
	log        *callLog
	releaseErr error
}

func (s *fakeSurface) ID() string { return s.id }

func (s *fakeSurface) Release() error {
	s.log.add("surface.release")
	return s.releaseErr
}

type fakeGrant struct {
	log        *callLog
	valid      bool
	surfaceErr error
	releaseErr error
	surfaces   int
}

func (g *fakeGrant) IsValid() bool { return g.valid }

func (g *fakeGrant) CreateSurfaceTarget(width, height, density int) (Surface, error) {
	g.log.add("grant.surface")
	if g.surfaceErr != nil {
		return nil, g.surfaceErr
	}
	g.surfaces++
	return &fakeSurface{id: fmt.Sprintf("surface-%d", g.surfaces), log: g.log}, nil
}

func (g *fakeGrant) Release() error {
	g.log.add("grant.release")
	g.valid = false
	return g.releaseErr
}

type fakeEncoder struct {
	id          string
	log         *callLog
	output      string
	noPause     bool
	startErr    error
	pauseErr    error
	finalizeErr error
	duration    time.Duration
	// exited, when set, is closed by crash or by Finalize.
	exited  chan struct{}
	exitErr error

	once   sync.Once
	result time.Duration
	err    error
}

func (e *fakeEncoder) ID() string { return e.id }

func (e *fakeEncoder) Start(surface Surface) error {
	e.log.add("encoder.start")
	if e.startErr != nil {
		return e.startErr
	}
	return os.WriteFile(e.output, []byte("mp4-bytes"), 0o644)
}

func (e *fakeEncoder) SupportsPause() bool { return !e.noPause }

func (e *fakeEncoder) Pause() error {
	e.log.add("encoder.pause")
	return e.pauseErr
}

func (e *fakeEncoder) Resume() error {
	e.log.add("encoder.resume")
	return nil
}

func (e *fakeEncoder) Finalize(ctx context.Context) (time.Duration, error) {
	e.once.Do(func() {
		e.log.add("encoder.finalize")
		e.result, e.err = e.duration, e.finalizeErr
		if e.exited != nil {
			close(e.exited)
		}
	})
	return e.result, e.err
}

func (e *fakeEncoder) Exited() <-chan struct{} {
	if e.exited == nil {
		return nil
	}
	return e.exited
}

func (e *fakeEncoder) ExitErr() error { return e.exitErr }

// crash simulates the encoder process dying on its own.
func (e *fakeEncoder) crash(err error) {
	e.once.Do(func() {
		e.exitErr = err
		e.result, e.err = 0, fmt.Errorf("%w: process exited", ErrEncoder)
		close(e.exited)
	})
}

type fakeFactory struct {
	log          *callLog
	configureErr error
	tweak        func(*fakeEncoder)
	configured   int
	last         *fakeEncoder
}

func (f *fakeFactory) Configure(cfg Config) (Encoder, error) {
	f.log.add("factory.configure")
	if f.configureErr != nil {
		return nil, f.configureErr
	}
	f.configured++
	enc := &fakeEncoder{
		id:       fmt.Sprintf("encoder-%d", f.configured),
		log:      f.log,
		output:   cfg.OutputPath,
		duration: 1500 * time.Millisecond,
	}
	if f.tweak != nil {
		f.tweak(enc)
	}
	f.last = enc
	return enc, nil
}

type fixture struct {
	log     *callLog
	grant   *fakeGrant
	factory *fakeFactory
	machine *Machine
	cfg     Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		log:     log,
		grant:   &fakeGrant{log: log, valid: true},
		factory: &fakeFactory{log: log},
		cfg: Config{
			AudioSource: AudioNone,
			Video:       Profile720p,
			OutputPath:  filepath.Join(t.TempDir(), "a.mp4"),
		},
	}
	f.machine = NewMachine(f.factory)
	return f
}

var errBoom = errors.New("boom")

// handles exposes the live encoder and surface for identity checks.
func (m *Machine) handles() (Encoder, Surface) {
	if m.sess == nil {
		return nil, nil
	}
	return m.sess.encoder, m.sess.surface
}

// checkHandleInvariant asserts that encoder and surface are both present
// exactly when the state is Recording or Paused.
func checkHandleInvariant(t *testing.T, m *Machine) {
	t.Helper()
	enc, surf := m.handles()
	live := m.State() == StateRecording || m.State() == StatePaused
	if live && (enc == nil || surf == nil) {
		t.Fatalf("state %s: encoder=%v surface=%v, want both present", m.State(), enc, surf)
	}
	if !live && (enc != nil || surf != nil) {
		t.Fatalf("state %s: encoder=%v surface=%v, want both absent", m.State(), enc, surf)
	}
}
