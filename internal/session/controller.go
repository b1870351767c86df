package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFinalizeTimeout bounds the teardown that pause/resume/cancel run
// on their own when the encoder fails or a live recording is cancelled.
const DefaultFinalizeTimeout = 30 * time.Second

type observerEntry struct {
	id  int
	obs Observer
}

// Controller is the public facade over Machine. It admits one session at a
// time, drives the countdown, and reports lifecycle events to observers.
// All methods are safe for concurrent use; transitions are serialized.
type Controller struct {
	mu sync.Mutex

	machine         *Machine
	logger          *slog.Logger
	ticks           int
	interval        time.Duration
	finalizeTimeout time.Duration

	countdown *Countdown
	countGen  uint64
	remaining int

	exitStop chan struct{}
	exitGen  uint64

	observers []observerEntry
	nextID    int
}

type ControllerOption func(*Controller)

func WithCountdown(ticks int, interval time.Duration) ControllerOption {
	return func(c *Controller) {
		if ticks < 0 {
			ticks = 0
		}
		if interval <= 0 {
			interval = DefaultCountdownInterval
		}
		c.ticks = ticks
		c.interval = interval
	}
}

func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithFinalizeTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.finalizeTimeout = d
		}
	}
}

func NewController(machine *Machine, opts ...ControllerOption) *Controller {
	c := &Controller{
		machine:         machine,
		logger:          slog.Default(),
		ticks:           DefaultCountdownTicks,
		interval:        DefaultCountdownInterval,
		finalizeTimeout: DefaultFinalizeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers o and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, observerEntry{id: id, obs: o})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.observers {
			if e.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.machine.Snapshot()
	if st.State == StateCountdown {
		st.CountdownRemaining = c.remaining
	}
	return st
}

// RequestStart admits a new session and begins the countdown. With a zero
// tick countdown the capture is set up before RequestStart returns and any
// setup error is returned as well as reported.
func (c *Controller) RequestStart(cfg Config, grant Grant) error {
	return c.RequestStartCountdown(cfg, grant, -1)
}

// RequestStartCountdown is RequestStart with a per-session tick count. A
// negative ticks uses the controller default.
func (c *Controller) RequestStartCountdown(cfg Config, grant Grant, ticks int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticks < 0 {
		ticks = c.ticks
	}

	if c.machine.State() != StateIdle {
		return ErrSessionAlreadyActive
	}
	if err := c.machine.Start(cfg, grant); err != nil {
		c.emitError(err)
		return err
	}
	c.emitState(StateIdle, StateCountdown)

	if ticks == 0 {
		return c.completeCountdownLocked()
	}

	c.remaining = ticks
	c.emit(Event{Type: EventCountdownTick, Remaining: c.remaining})

	c.countGen++
	gen := c.countGen
	c.countdown = StartCountdown(ticks, c.interval, func(remaining int) {
		c.onCountdownStep(gen, remaining)
	})
	return nil
}

func (c *Controller) onCountdownStep(gen uint64, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A cancel or stop that got the lock first has already cleared the
	// countdown; this tick belongs to a dead session.
	if c.countdown == nil || c.countGen != gen || c.machine.State() != StateCountdown {
		c.logger.Debug("dropping stale countdown tick", "remaining", remaining)
		return
	}

	if remaining > 0 {
		c.remaining = remaining
		c.emit(Event{Type: EventCountdownTick, Remaining: remaining})
		return
	}

	c.countdown = nil
	c.remaining = 0
	_ = c.completeCountdownLocked()
}

func (c *Controller) completeCountdownLocked() error {
	id := c.machine.SessionID()
	if err := c.machine.CountdownComplete(); err != nil {
		c.emitErrorFor(id, err)
		c.emitStateFor(id, StateCountdown, StateIdle)
		return err
	}
	c.emitState(StateCountdown, StateRecording)
	c.emit(Event{Type: EventRecordingActive})
	c.watchEncoderLocked()
	return nil
}

// watchEncoderLocked ends the session through the stop path if the encoder
// exits while recording without having been asked to.
func (c *Controller) watchEncoderLocked() {
	w := c.machine.exitWatcher()
	if w == nil {
		return
	}
	exited := w.Exited()
	if exited == nil {
		return
	}

	c.exitGen++
	gen := c.exitGen
	stop := make(chan struct{})
	c.exitStop = stop

	go func() {
		select {
		case <-exited:
			c.onEncoderExit(gen, w)
		case <-stop:
		}
	}()
}

func (c *Controller) unwatchEncoderLocked() {
	if c.exitStop != nil {
		close(c.exitStop)
		c.exitStop = nil
	}
}

func (c *Controller) onEncoderExit(gen uint64, w ExitWatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop, cancel or termination got the lock first; the exit was requested.
	if c.exitStop == nil || c.exitGen != gen {
		return
	}
	c.unwatchEncoderLocked()

	switch c.machine.State() {
	case StateRecording, StatePaused:
	default:
		return
	}

	cause := w.ExitErr()
	if cause == nil {
		cause = errors.New("encoder exited unexpectedly")
	}
	c.logger.Error("encoder exited during recording", "session", c.machine.SessionID(), "error", cause)
	_ = c.failEncoderLocked(fmt.Errorf("%w: %w", ErrEncoder, cause))
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.State() == StateIdle {
		return ErrNoActiveSession
	}
	err := c.machine.Pause()
	switch {
	case err == nil:
		c.emitState(StateRecording, StatePaused)
		return nil
	case errors.Is(err, ErrEncoder):
		return c.failEncoderLocked(err)
	}
	c.emitError(err)
	return err
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.State() == StateIdle {
		return ErrNoActiveSession
	}
	err := c.machine.Resume()
	switch {
	case err == nil:
		c.emitState(StatePaused, StateRecording)
		return nil
	case errors.Is(err, ErrEncoder):
		return c.failEncoderLocked(err)
	}
	c.emitError(err)
	return err
}

// failEncoderLocked ends the session through the stop path after the
// encoder rejected a pause or resume.
func (c *Controller) failEncoderLocked(encErr error) error {
	c.emitError(encErr)
	ctx, cancel := context.WithTimeout(context.Background(), c.finalizeTimeout)
	defer cancel()
	_, stopErr := c.stopLocked(ctx)
	return errors.Join(encErr, stopErr)
}

// Stop ends the session. During the countdown it behaves like Cancel and
// returns no artifact. Stop blocks until the encoder has been finalized.
func (c *Controller) Stop(ctx context.Context) (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.machine.State() {
	case StateIdle:
		return nil, ErrNoActiveSession
	case StateCountdown:
		return nil, c.cancelLocked()
	}
	return c.stopLocked(ctx)
}

// Cancel abandons a countdown without acquiring capture resources. On a
// live recording it stops and keeps the artifact.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.machine.State() {
	case StateIdle:
		return ErrNoActiveSession
	case StateCountdown:
		return c.cancelLocked()
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.finalizeTimeout)
	defer cancel()
	_, err := c.stopLocked(ctx)
	return err
}

func (c *Controller) cancelLocked() error {
	c.abortCountdownLocked()
	id := c.machine.SessionID()
	err := c.machine.Cancel()
	c.emitStateFor(id, StateCountdown, StateIdle)
	if err != nil {
		c.emitErrorFor(id, err)
	}
	return err
}

func (c *Controller) stopLocked(ctx context.Context) (*Artifact, error) {
	c.unwatchEncoderLocked()
	from := c.machine.State()
	id := c.machine.SessionID()
	c.emitState(from, StateStopping)

	art, err := c.machine.Stop(ctx)
	if err != nil {
		c.emitErrorFor(id, err)
	}
	if art != nil {
		c.emit(Event{Type: EventArtifact, SessionID: id, Artifact: art})
	}
	c.emitStateFor(id, StateStopping, StateIdle)
	c.emit(Event{Type: EventRecordingStopped, SessionID: id})
	return art, err
}

// ProcessTerminated releases everything the session holds because the
// hosting process is going away. No artifact is reported.
func (c *Controller) ProcessTerminated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.machine.State()
	if from == StateIdle {
		return nil
	}
	c.abortCountdownLocked()
	c.unwatchEncoderLocked()

	id := c.machine.SessionID()
	err := c.machine.Terminate(ctx)
	c.emitStateFor(id, from, StateIdle)
	if from == StateRecording || from == StatePaused {
		c.emit(Event{Type: EventRecordingStopped, SessionID: id})
	}
	if err != nil {
		c.emitErrorFor(id, err)
	}
	return err
}

func (c *Controller) abortCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	c.remaining = 0
}

func (c *Controller) emitState(from, to State) {
	c.emitStateFor(c.machine.SessionID(), from, to)
}

func (c *Controller) emitStateFor(id string, from, to State) {
	c.logger.Debug("state changed", "session", id, "from", from, "to", to)
	c.emit(Event{Type: EventStateChanged, SessionID: id, From: from, To: to})
}

func (c *Controller) emitError(err error) {
	c.emitErrorFor(c.machine.SessionID(), err)
}

func (c *Controller) emitErrorFor(id string, err error) {
	c.emit(Event{Type: EventError, SessionID: id, Err: err})
}

func (c *Controller) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.SessionID == "" {
		e.SessionID = c.machine.SessionID()
	}
	for _, o := range c.observers {
		o.obs.OnEvent(e)
	}
}
