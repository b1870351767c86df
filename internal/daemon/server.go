package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/schovi/screenrec/internal/capture"
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
)

// GrantSource obtains a capture grant for a new session.
type GrantSource func() (session.Grant, error)

type Server struct {
	mu       sync.Mutex
	listener net.Listener
	lock     *flock.Flock

	socketDir       string
	controller      *session.Controller
	library         *library.Library
	journal         *Journal
	grants          GrantSource
	video           session.VideoProfile
	audio           session.AudioSource
	finalizeTimeout time.Duration
	logger          *slog.Logger

	unsubscribe func()
}

type ServerOption func(*Server)

func WithSocketDir(dir string) ServerOption {
	return func(s *Server) {
		s.socketDir = dir
	}
}

func WithLibrary(lib *library.Library) ServerOption {
	return func(s *Server) {
		s.library = lib
	}
}

func WithJournal(j *Journal) ServerOption {
	return func(s *Server) {
		s.journal = j
	}
}

func WithGrantSource(fn GrantSource) ServerOption {
	return func(s *Server) {
		s.grants = fn
	}
}

// WithDefaults sets the profile and audio used when a start request
// leaves them empty.
func WithDefaults(video session.VideoProfile, audio session.AudioSource) ServerOption {
	return func(s *Server) {
		s.video = video
		s.audio = audio
	}
}

func WithFinalizeTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.finalizeTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

func NewServer(controller *session.Controller, opts ...ServerOption) (*Server, error) {
	s := &Server{
		controller:      controller,
		journal:         NewJournal(DefaultJournalSize),
		video:           session.Profile720p,
		audio:           session.AudioNone,
		finalizeTimeout: session.DefaultFinalizeTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.socketDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		s.socketDir = filepath.Join(homeDir, ".screenrec")
	}
	if err := os.MkdirAll(s.socketDir, 0755); err != nil {
		return nil, err
	}
	if s.library == nil {
		return nil, fmt.Errorf("recordings library is required")
	}
	if s.grants == nil {
		lockDir := s.socketDir
		logger := s.logger
		s.grants = func() (session.Grant, error) {
			g, err := capture.Request(capture.Options{LockDir: lockDir, Logger: logger})
			if err != nil {
				return nil, err
			}
			return g, nil
		}
	}

	s.unsubscribe = controller.Subscribe(s.journal)
	return s, nil
}

func SocketPath(socketDir string) string {
	return filepath.Join(socketDir, SocketName)
}

func (s *Server) SocketPath() string {
	return SocketPath(s.socketDir)
}

func (s *Server) Journal() *Journal {
	return s.journal
}

// Start takes the single-instance lock, listens on the socket and serves
// until Shutdown.
func (s *Server) Start() error {
	lock := flock.New(filepath.Join(s.socketDir, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock held: %s)", ErrAlreadyRunning, lock.Path())
	}

	sockPath := s.SocketPath()
	os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		lock.Unlock()
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.lock = lock
	s.mu.Unlock()

	s.logger.Info("daemon listening", "socket", sockPath, "pid", os.Getpid())

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.listener == nil
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Shutdown releases any live session, then closes the socket and the
// instance lock.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.controller.ProcessTerminated(ctx)
	if err != nil {
		s.logger.Error("terminate session", "error", err)
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
		os.Remove(s.SocketPath())
	}
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.sendResponse(conn, errorResponse(fmt.Errorf("%w: %v", ErrBadRequest, err)))
		return
	}

	s.sendResponse(conn, s.dispatch(req))
}

func (s *Server) dispatch(req Request) Response {
	switch req.Action {
	case "ping":
		return Response{Success: true, Data: "pong"}
	case "start":
		return s.handleStart(req)
	case "pause":
		return s.statusAfter(s.controller.Pause())
	case "resume":
		return s.statusAfter(s.controller.Resume())
	case "cancel":
		return s.statusAfter(s.controller.Cancel())
	case "stop":
		return s.handleStop()
	case "status":
		return Response{Success: true, Data: s.controller.Status()}
	case "events":
		return s.handleEvents(req)
	case "list":
		return s.handleList()
	case "delete":
		return s.handleDelete(req)
	}
	return errorResponse(fmt.Errorf("%w: unknown action %q", ErrBadRequest, req.Action))
}

func (s *Server) sendResponse(conn net.Conn, resp Response) {
	json.NewEncoder(conn).Encode(resp)
}

func (s *Server) statusAfter(err error) Response {
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: s.controller.Status()}
}

func (s *Server) handleStart(req Request) Response {
	if s.controller.Status().Active() {
		return errorResponse(session.ErrSessionAlreadyActive)
	}

	cfg, err := s.buildConfig(req)
	if err != nil {
		return errorResponse(err)
	}

	grant, err := s.grants()
	if err != nil {
		// A concurrent start won admission between the check above and
		// the grant; its session is what holds the device.
		if errors.Is(err, capture.ErrDeviceBusy) && s.controller.Status().Active() {
			err = session.ErrSessionAlreadyActive
		}
		s.logger.Warn("capture grant refused", "error", err)
		return errorResponse(err)
	}

	ticks := -1
	if req.Countdown != nil {
		ticks = *req.Countdown
	}
	if err := s.controller.RequestStartCountdown(cfg, grant, ticks); err != nil {
		// Setup failures already released the grant inside the machine.
		if !errors.Is(err, session.ErrCaptureSetupFailed) {
			if relErr := grant.Release(); relErr != nil {
				s.logger.Warn("release refused grant", "error", relErr)
			}
		}
		return errorResponse(err)
	}
	return Response{Success: true, Data: s.controller.Status()}
}

func (s *Server) buildConfig(req Request) (session.Config, error) {
	cfg := session.Config{Video: s.video, AudioSource: s.audio}

	if req.Quality != "" {
		p, err := session.ProfileByName(req.Quality)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", session.ErrInvalidConfig, err)
		}
		cfg.Video = p
	}
	if req.Audio != "" {
		a, err := session.ParseAudioSource(req.Audio)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", session.ErrInvalidConfig, err)
		}
		cfg.AudioSource = a
	}
	if req.Countdown != nil && *req.Countdown < 0 {
		return cfg, fmt.Errorf("%w: countdown must not be negative", session.ErrInvalidConfig)
	}

	if req.Output != "" {
		abs, err := filepath.Abs(req.Output)
		if err != nil {
			return cfg, fmt.Errorf("%w: output: %v", session.ErrInvalidConfig, err)
		}
		cfg.OutputPath = abs
		return cfg, nil
	}

	path, err := s.library.NextOutputPath()
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", session.ErrInvalidConfig, err)
	}
	cfg.OutputPath = path
	return cfg, nil
}

func (s *Server) handleStop() Response {
	ctx, cancel := context.WithTimeout(context.Background(), s.finalizeTimeout)
	defer cancel()

	art, err := s.controller.Stop(ctx)
	if err != nil && art == nil {
		return errorResponse(err)
	}
	resp := Response{Success: true, Data: StopResult{Artifact: art, Status: s.controller.Status()}}
	if err != nil {
		// The file exists but teardown was not clean.
		resp.Error = err.Error()
		resp.Code = codeFor(err)
	}
	return resp
}

func (s *Server) handleEvents(req Request) Response {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	events, next := s.journal.ReadFrom(req.Cursor, limit)
	return Response{Success: true, Data: EventsPage{Events: events, Next: next}}
}

func (s *Server) handleList() Response {
	items, err := s.library.List()
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: items}
}

func (s *Server) handleDelete(req Request) Response {
	if st := s.controller.Status(); st.Active() && filepath.Base(st.OutputPath) == req.Name {
		return errorResponse(fmt.Errorf("%w: %s is being recorded", ErrBadRequest, req.Name))
	}
	item, err := s.library.DeleteByName(req.Name)
	if err != nil {
		if !errors.Is(err, library.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return errorResponse(err)
	}
	s.logger.Info("recording deleted", "path", item.Path)
	return Response{Success: true, Data: DeleteResult{Deleted: item}}
}
