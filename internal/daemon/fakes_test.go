package daemon

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schovi/screenrec/internal/session"
)

type fakeSurface struct{ released atomic.Bool }

func (s *fakeSurface) ID() string { return "fake-surface" }

func (s *fakeSurface) Release() error {
	s.released.Store(true)
	return nil
}

type fakeGrant struct {
	mu       sync.Mutex
	released int
}

func (g *fakeGrant) IsValid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released == 0
}

func (g *fakeGrant) CreateSurfaceTarget(width, height, density int) (session.Surface, error) {
	return &fakeSurface{}, nil
}

func (g *fakeGrant) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released++
	return nil
}

func (g *fakeGrant) releases() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

type grantPool struct {
	mu     sync.Mutex
	grants []*fakeGrant
	err    error
	// before runs ahead of each request; a non-nil error refuses it.
	before func() error
}

func (p *grantPool) source() (session.Grant, error) {
	p.mu.Lock()
	before := p.before
	p.mu.Unlock()
	if before != nil {
		if err := before(); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	g := &fakeGrant{}
	p.grants = append(p.grants, g)
	return g, nil
}

func (p *grantPool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.grants)
}

func (p *grantPool) last() *fakeGrant {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.grants) == 0 {
		return nil
	}
	return p.grants[len(p.grants)-1]
}

type fakeEncoder struct {
	output    string
	finalized atomic.Int32
}

func (e *fakeEncoder) ID() string { return "fake-encoder" }

func (e *fakeEncoder) Start(session.Surface) error {
	return os.WriteFile(e.output, []byte("fake mp4"), 0o644)
}

func (e *fakeEncoder) SupportsPause() bool { return true }
func (e *fakeEncoder) Pause() error        { return nil }
func (e *fakeEncoder) Resume() error       { return nil }

func (e *fakeEncoder) Finalize(context.Context) (time.Duration, error) {
	e.finalized.Add(1)
	return 2 * time.Second, nil
}

type fakeFactory struct {
	mu       sync.Mutex
	encoders []*fakeEncoder
}

func (f *fakeFactory) Configure(cfg session.Config) (session.Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEncoder{output: cfg.OutputPath}
	f.encoders = append(f.encoders, e)
	return e, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.encoders)
}

func (f *fakeFactory) last() *fakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.encoders) == 0 {
		return nil
	}
	return f.encoders[len(f.encoders)-1]
}
