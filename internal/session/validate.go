package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// ValidateConfig checks that cfg can be recorded. The output's parent
// directory must already exist and be writable; nothing is created here.
func ValidateConfig(cfg Config) error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidConfig)
	}
	if err := validateProfile(cfg.Video); err != nil {
		return err
	}
	switch cfg.AudioSource {
	case AudioNone, AudioMicrophone, AudioDevice, AudioBoth:
	default:
		return fmt.Errorf("%w: unknown audio source %q", ErrInvalidConfig, cfg.AudioSource)
	}
	if cfg.Density < 0 {
		return fmt.Errorf("%w: density must not be negative", ErrInvalidConfig)
	}

	if info, err := os.Stat(cfg.OutputPath); err == nil && info.IsDir() {
		return fmt.Errorf("%w: output %s is a directory", ErrInvalidConfig, cfg.OutputPath)
	}

	parent := filepath.Dir(cfg.OutputPath)
	info, err := os.Stat(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: parent directory %s does not exist", ErrInvalidConfig, parent)
		}
		return fmt.Errorf("%w: stat %s: %v", ErrInvalidConfig, parent, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: parent %s is not a directory", ErrInvalidConfig, parent)
	}
	if err := checkWritable(parent); err != nil {
		return fmt.Errorf("%w: parent directory %s is not writable", ErrInvalidConfig, parent)
	}
	return nil
}

func validateProfile(p VideoProfile) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: video size %dx%d must be positive", ErrInvalidConfig, p.Width, p.Height)
	}
	// libx264 with yuv420p rejects odd dimensions.
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return fmt.Errorf("%w: video size %dx%d must be even", ErrInvalidConfig, p.Width, p.Height)
	}
	if p.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate must be positive", ErrInvalidConfig)
	}
	if p.Bitrate <= 0 {
		return fmt.Errorf("%w: bitrate must be positive", ErrInvalidConfig)
	}
	return nil
}
