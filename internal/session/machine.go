package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// SetupRollbackTimeout bounds the encoder finalize issued while rolling back
// a failed capture setup.
const SetupRollbackTimeout = 10 * time.Second

type liveSession struct {
	id        string
	state     State
	cfg       Config
	grant     Grant
	encoder   Encoder
	surface   Surface
	createdAt time.Time
	startedAt time.Time

	pausedAt    time.Time
	pausedTotal time.Duration
}

// Machine owns the state of at most one recording session. It is not safe
// for concurrent use; Controller serializes every call.
type Machine struct {
	encoders EncoderFactory
	logger   *slog.Logger
	now      func() time.Time

	sess *liveSession
}

type MachineOption func(*Machine)

func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

func NewMachine(encoders EncoderFactory, opts ...MachineOption) *Machine {
	m := &Machine{
		encoders: encoders,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	if m.sess == nil {
		return StateIdle
	}
	return m.sess.state
}

func (m *Machine) SessionID() string {
	if m.sess == nil {
		return ""
	}
	return m.sess.id
}

// exitWatcher returns the live encoder when it can report exiting on its
// own, or nil.
func (m *Machine) exitWatcher() ExitWatcher {
	if m.sess == nil || m.sess.encoder == nil {
		return nil
	}
	w, _ := m.sess.encoder.(ExitWatcher)
	return w
}

// Start validates cfg and enters Countdown holding grant. On error nothing
// changes and the grant stays with the caller.
func (m *Machine) Start(cfg Config, grant Grant) error {
	if m.sess != nil {
		return ErrSessionAlreadyActive
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if grant == nil || !grant.IsValid() {
		return fmt.Errorf("%w: capture grant is not valid", ErrInvalidConfig)
	}

	m.sess = &liveSession{
		id:        uuid.NewString(),
		state:     StateCountdown,
		cfg:       cfg,
		grant:     grant,
		createdAt: m.now(),
	}
	m.logger.Info("session created", "session", m.sess.id, "output", cfg.OutputPath, "video", cfg.Video.String(), "audio", cfg.AudioSource)
	return nil
}

// CountdownComplete acquires the surface and encoder and enters Recording.
// Any failure rolls back what was acquired, releases the grant and returns
// to Idle.
func (m *Machine) CountdownComplete() error {
	if err := m.require(StateCountdown); err != nil {
		return err
	}
	s := m.sess
	v := s.cfg.Video

	surface, err := s.grant.CreateSurfaceTarget(v.Width, v.Height, s.cfg.Density)
	if err != nil {
		return m.abortSetup(fmt.Errorf("%w: create surface: %w", ErrCaptureSetupFailed, err))
	}
	s.surface = surface

	enc, err := m.encoders.Configure(s.cfg)
	if err != nil {
		return m.abortSetup(fmt.Errorf("%w: configure encoder: %w", ErrCaptureSetupFailed, err))
	}

	if err := enc.Start(surface); err != nil {
		s.encoder = enc
		return m.abortSetup(fmt.Errorf("%w: start encoder: %w", ErrCaptureSetupFailed, err))
	}

	s.encoder = enc
	s.state = StateRecording
	s.startedAt = m.now()
	m.logger.Info("recording started", "session", s.id, "surface", surface.ID(), "encoder", enc.ID())
	return nil
}

func (m *Machine) abortSetup(setupErr error) error {
	s := m.sess
	ctx, cancel := context.WithTimeout(context.Background(), SetupRollbackTimeout)
	defer cancel()

	_, td := m.teardown(ctx, s)
	m.sess = nil
	m.logger.Error("capture setup failed", "session", s.id, "error", setupErr)
	if td != nil {
		return errors.Join(setupErr, td)
	}
	return setupErr
}

// Cancel abandons a session that is still counting down.
func (m *Machine) Cancel() error {
	if err := m.require(StateCountdown); err != nil {
		return err
	}
	s := m.sess
	m.sess = nil

	if err := s.grant.Release(); err != nil {
		m.logger.Warn("release grant on cancel", "session", s.id, "error", err)
		return &TeardownError{SessionID: s.id, Steps: []*StepError{{Step: StepReleaseGrant, Err: err}}}
	}
	m.logger.Info("session cancelled", "session", s.id)
	return nil
}

func (m *Machine) Pause() error {
	if err := m.require(StateRecording); err != nil {
		return err
	}
	s := m.sess
	if !s.encoder.SupportsPause() {
		return ErrPauseUnsupported
	}
	if err := s.encoder.Pause(); err != nil {
		return fmt.Errorf("%w: pause: %w", ErrEncoder, err)
	}
	s.state = StatePaused
	s.pausedAt = m.now()
	m.logger.Info("recording paused", "session", s.id)
	return nil
}

func (m *Machine) Resume() error {
	if err := m.require(StatePaused); err != nil {
		return err
	}
	s := m.sess
	if err := s.encoder.Resume(); err != nil {
		return fmt.Errorf("%w: resume: %w", ErrEncoder, err)
	}
	s.pausedTotal += m.now().Sub(s.pausedAt)
	s.pausedAt = time.Time{}
	s.state = StateRecording
	m.logger.Info("recording resumed", "session", s.id)
	return nil
}

// Stop finalizes the encoder, releases the surface and releases the grant,
// in that order, and always returns to Idle. A failed step never prevents
// the later ones. The artifact is nil only when no output file exists.
func (m *Machine) Stop(ctx context.Context) (*Artifact, error) {
	if m.sess == nil {
		return nil, ErrNoActiveSession
	}
	s := m.sess
	if s.state != StateRecording && s.state != StatePaused {
		return nil, fmt.Errorf("%w: stop from %s", ErrInvalidTransition, s.state)
	}
	wall := m.recordedWallTime(s)
	s.state = StateStopping

	dur, td := m.teardown(ctx, s)
	m.sess = nil

	var err error
	if td != nil {
		err = td
	}

	info, statErr := os.Stat(s.cfg.OutputPath)
	if statErr != nil {
		m.logger.Error("recording output missing", "session", s.id, "output", s.cfg.OutputPath, "error", statErr)
		return nil, errors.Join(err, fmt.Errorf("%w: output %s: %w", ErrEncoder, s.cfg.OutputPath, statErr))
	}

	if dur <= 0 {
		dur = wall
	}
	art := &Artifact{
		Path:       s.cfg.OutputPath,
		SizeBytes:  info.Size(),
		Duration:   dur,
		CreatedAt:  m.now(),
		Incomplete: td != nil && td.Failed(StepFinalizeEncoder),
	}
	m.logger.Info("recording stopped", "session", s.id, "output", art.Path, "bytes", art.SizeBytes, "duration", art.Duration, "incomplete", art.Incomplete)
	return art, err
}

// Terminate tears down whatever the session holds without producing an
// artifact. It is used when the hosting process goes away.
func (m *Machine) Terminate(ctx context.Context) error {
	if m.sess == nil {
		return nil
	}
	s := m.sess
	s.state = StateStopping
	_, td := m.teardown(ctx, s)
	m.sess = nil
	m.logger.Warn("session terminated", "session", s.id)
	if td != nil {
		return td
	}
	return nil
}

// teardown releases encoder, surface and grant in that order. Every step is
// attempted regardless of earlier failures.
func (m *Machine) teardown(ctx context.Context, s *liveSession) (time.Duration, *TeardownError) {
	var steps []*StepError
	var dur time.Duration

	if s.encoder != nil {
		d, err := s.encoder.Finalize(ctx)
		if err != nil {
			m.logger.Error("finalize encoder", "session", s.id, "error", err)
			steps = append(steps, &StepError{Step: StepFinalizeEncoder, Err: err})
		} else {
			dur = d
		}
		s.encoder = nil
	}

	if s.surface != nil {
		if err := s.surface.Release(); err != nil {
			m.logger.Error("release surface", "session", s.id, "error", err)
			steps = append(steps, &StepError{Step: StepReleaseSurface, Err: err})
		}
		s.surface = nil
	}

	if s.grant != nil {
		if err := s.grant.Release(); err != nil {
			m.logger.Error("release grant", "session", s.id, "error", err)
			steps = append(steps, &StepError{Step: StepReleaseGrant, Err: err})
		}
		s.grant = nil
	}

	if len(steps) == 0 {
		return dur, nil
	}
	return dur, &TeardownError{SessionID: s.id, Steps: steps}
}

func (m *Machine) require(want State) error {
	if m.sess == nil {
		return ErrNoActiveSession
	}
	if m.sess.state != want {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidTransition, m.sess.state, want)
	}
	return nil
}

func (m *Machine) recordedWallTime(s *liveSession) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	now := m.now()
	d := now.Sub(s.startedAt) - s.pausedTotal
	if !s.pausedAt.IsZero() {
		d -= now.Sub(s.pausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot reports the current session without exposing its handles.
func (m *Machine) Snapshot() Status {
	if m.sess == nil {
		return Status{State: StateIdle}
	}
	s := m.sess
	st := Status{
		State:      s.state,
		SessionID:  s.id,
		OutputPath: s.cfg.OutputPath,
		StartedAt:  s.startedAt,
		HasEncoder: s.encoder != nil,
		HasSurface: s.surface != nil,
	}
	if !s.startedAt.IsZero() {
		st.Elapsed = m.recordedWallTime(s).Seconds()
	}
	return st
}
