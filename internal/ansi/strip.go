package ansi

import (
	"regexp"
	"strings"
)

var escapePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x1b\[\??[0-9;]*[A-Za-z]`),           // CSI and DEC private modes
	regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`), // OSC
	regexp.MustCompile(`\x1b[()][AB012]`),                    // character set selection
	regexp.MustCompile(`\x1b[=>A-Za-z]`),                     // keypad modes, ESC+letter
}

// Strip removes terminal escape sequences. Carriage returns are kept so
// callers can split progress redraws.
func Strip(s string) string {
	for _, re := range escapePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// Lines strips s and splits it on newlines and on bare carriage returns,
// which ffmpeg uses to redraw its progress line. Empty lines are dropped.
func Lines(s string) []string {
	s = strings.ReplaceAll(Strip(s), "\r\n", "\n")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, strings.TrimRight(f, " \t"))
		}
	}
	return out
}
