package ansi

import (
	"reflect"
	"testing"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "frame=  120 fps= 30",
			expected: "frame=  120 fps= 30",
		},
		{
			name:     "strip color codes",
			input:    "\x1b[31mError opening input\x1b[0m",
			expected: "Error opening input",
		},
		{
			name:     "strip bold color",
			input:    "\x1b[1;33m[x11grab @ 0x55]\x1b[0m",
			expected: "[x11grab @ 0x55]",
		},
		{
			name:     "strip OSC sequences",
			input:    "\x1b]0;ffmpeg\x07text",
			expected: "text",
		},
		{
			name:     "strip DEC private mode",
			input:    "\x1b[?25hvisible cursor",
			expected: "visible cursor",
		},
		{
			name:     "strip character set selection",
			input:    "\x1b(Btext",
			expected: "text",
		},
		{
			name:     "keep carriage return",
			input:    "a\rb",
			expected: "a\rb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Strip(tt.input); got != tt.expected {
				t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "progress redraws become lines",
			input: "frame=1 \rframe=2 \rframe=3\n",
			want:  []string{"frame=1", "frame=2", "frame=3"},
		},
		{
			name:  "crlf",
			input: "Input #0, x11grab\r\n  Duration: N/A\r\n",
			want:  []string{"Input #0, x11grab", "  Duration: N/A"},
		},
		{
			name:  "blank lines dropped",
			input: "\n\n\x1b[0m\nok\n",
			want:  []string{"ok"},
		},
		{
			name:  "empty",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lines(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lines(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
