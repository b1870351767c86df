package encoder

import (
	"runtime"
	"strconv"

	"github.com/schovi/screenrec/internal/session"
)

const (
	AudioBitrate    = 128_000
	AudioSampleRate = 44_100
	AudioChannels   = 2
)

// AudioInputs names the platform audio capture inputs handed to ffmpeg.
type AudioInputs struct {
	Format     string
	Microphone string
	Device     string
}

// DefaultAudioInputs returns the inputs for goos: PulseAudio on Linux,
// avfoundation elsewhere.
func DefaultAudioInputs(goos string) AudioInputs {
	switch goos {
	case "darwin":
		return AudioInputs{Format: "avfoundation", Microphone: ":0", Device: ":1"}
	case "windows":
		return AudioInputs{Format: "dshow", Microphone: "audio=default", Device: "audio=virtual-audio-capturer"}
	}
	return AudioInputs{Format: "pulse", Microphone: "default", Device: "default.monitor"}
}

// BuildArgs assembles the ffmpeg command line. input is the video input
// description supplied by the capture surface.
func BuildArgs(cfg session.Config, input []string, audio AudioInputs) []string {
	v := cfg.Video
	args := []string{"-hide_banner", "-loglevel", "info"}

	args = append(args, "-framerate", strconv.Itoa(v.FrameRate))
	args = append(args, input...)

	var audioInputs int
	if cfg.AudioSource.HasMicrophone() {
		args = append(args, "-f", audio.Format, "-i", audio.Microphone)
		audioInputs++
	}
	if cfg.AudioSource.HasDevice() {
		args = append(args, "-f", audio.Format, "-i", audio.Device)
		audioInputs++
	}

	switch audioInputs {
	case 2:
		args = append(args,
			"-filter_complex", "[1:a][2:a]amix=inputs=2:duration=longest:dropout_transition=0[a]",
			"-map", "0:v", "-map", "[a]",
		)
	case 1:
		args = append(args, "-map", "0:v", "-map", "1:a")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(v.Bitrate),
		"-r", strconv.Itoa(v.FrameRate),
		"-s", strconv.Itoa(v.Width)+"x"+strconv.Itoa(v.Height),
	)
	if audioInputs > 0 {
		args = append(args,
			"-c:a", "aac",
			"-b:a", strconv.Itoa(AudioBitrate),
			"-ar", strconv.Itoa(AudioSampleRate),
			"-ac", strconv.Itoa(AudioChannels),
		)
	}

	return append(args, "-movflags", "+faststart", "-y", cfg.OutputPath)
}

func defaultAudioInputs() AudioInputs {
	return DefaultAudioInputs(runtime.GOOS)
}
