package capture

// Surface is the capture target handed to the encoder. ffmpeg scales the
// grabbed screen to the surface size.
type Surface struct {
	id      string
	width   int
	height  int
	density int
	args    []string
	grant   *Grant

	// guarded by grant.mu
	released bool
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) Size() (width, height int) { return s.width, s.height }

func (s *Surface) Density() int { return s.density }

// InputArgs returns the ffmpeg input options for the platform grabber.
func (s *Surface) InputArgs() []string {
	return append([]string(nil), s.args...)
}

func (s *Surface) Release() error {
	s.grant.releaseSurface(s)
	return nil
}

func inputArgs(goos, display string) []string {
	switch goos {
	case "darwin":
		screen := display
		if screen == "" {
			screen = "Capture screen 0"
		}
		return []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", screen + ":none"}
	case "windows":
		return []string{"-f", "gdigrab", "-i", "desktop"}
	}
	return []string{"-f", "x11grab", "-draw_mouse", "1", "-i", display}
}
