package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
)

type AudioSource string

const (
	AudioNone       AudioSource = "none"
	AudioMicrophone AudioSource = "microphone"
	AudioDevice     AudioSource = "device"
	AudioBoth       AudioSource = "both"
)

func ParseAudioSource(s string) (AudioSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return AudioNone, nil
	case "mic", "microphone":
		return AudioMicrophone, nil
	case "device", "system", "internal":
		return AudioDevice, nil
	case "both", "all":
		return AudioBoth, nil
	}
	return "", fmt.Errorf("unknown audio source %q (want none, microphone, device or both)", s)
}

// HasMicrophone reports whether the source includes the microphone input.
func (a AudioSource) HasMicrophone() bool {
	return a == AudioMicrophone || a == AudioBoth
}

// HasDevice reports whether the source includes device (loopback) audio.
func (a AudioSource) HasDevice() bool {
	return a == AudioDevice || a == AudioBoth
}

const DefaultFrameRate = 30

type VideoProfile struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	Bitrate   int `json:"bitrate"`
	FrameRate int `json:"frame_rate"`
}

var (
	Profile480p  = VideoProfile{Width: 854, Height: 480, Bitrate: 2_500_000, FrameRate: DefaultFrameRate}
	Profile720p  = VideoProfile{Width: 1280, Height: 720, Bitrate: 5_000_000, FrameRate: DefaultFrameRate}
	Profile1080p = VideoProfile{Width: 1920, Height: 1080, Bitrate: 10_000_000, FrameRate: DefaultFrameRate}
)

// ProfileByName resolves a quality preset such as "720p".
func ProfileByName(name string) (VideoProfile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "480", "480p", "sd":
		return Profile480p, nil
	case "", "720", "720p", "hd":
		return Profile720p, nil
	case "1080", "1080p", "fhd":
		return Profile1080p, nil
	}
	return VideoProfile{}, fmt.Errorf("unknown quality %q (want 480p, 720p or 1080p)", name)
}

func (p VideoProfile) String() string {
	return fmt.Sprintf("%dx%d@%dfps %dkbps", p.Width, p.Height, p.FrameRate, p.Bitrate/1000)
}

// Config describes a single recording. The machine keeps its own copy once
// a session starts, so later changes by the caller have no effect.
type Config struct {
	AudioSource AudioSource  `json:"audio_source"`
	Video       VideoProfile `json:"video"`
	OutputPath  string       `json:"output_path"`
	Density     int          `json:"density,omitempty"`
}

type Artifact struct {
	Path       string        `json:"path"`
	SizeBytes  int64         `json:"size_bytes"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
	Incomplete bool          `json:"incomplete,omitempty"`
}

// DurationMs is the artifact duration in whole milliseconds.
func (a Artifact) DurationMs() int64 {
	return a.Duration.Milliseconds()
}

// Status is a read-only snapshot of the controller.
type Status struct {
	State              State     `json:"state"`
	SessionID          string    `json:"session_id,omitempty"`
	OutputPath         string    `json:"output_path,omitempty"`
	StartedAt          time.Time `json:"started_at,omitempty"`
	Elapsed            float64   `json:"elapsed_seconds,omitempty"`
	CountdownRemaining int       `json:"countdown_remaining,omitempty"`
	HasEncoder         bool      `json:"has_encoder"`
	HasSurface         bool      `json:"has_surface"`
}

// Active reports whether a session exists.
func (s Status) Active() bool {
	return s.State != StateIdle
}

// Grant is a single-use authorization to mirror the screen.
type Grant interface {
	IsValid() bool
	CreateSurfaceTarget(width, height, density int) (Surface, error)
	Release() error
}

// Surface is the off-screen target the encoder reads frames from.
type Surface interface {
	ID() string
	Release() error
}

type Encoder interface {
	ID() string
	Start(surface Surface) error
	SupportsPause() bool
	Pause() error
	Resume() error
	// Finalize flushes and closes the output. Repeated calls return the
	// first result.
	Finalize(ctx context.Context) (time.Duration, error)
}

// ExitWatcher is implemented by encoders that can report their process
// ending without a Finalize call. Exited is closed when that happens and
// ExitErr then describes the exit.
type ExitWatcher interface {
	Exited() <-chan struct{}
	ExitErr() error
}

type EncoderFactory interface {
	Configure(cfg Config) (Encoder, error)
}
