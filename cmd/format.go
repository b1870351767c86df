package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schovi/screenrec/internal/session"
	"gopkg.in/yaml.v3"
)

const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// writeStructured prints v as JSON or YAML. It reports false for any other
// format so the caller can render text.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return true, nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("marshal output: %w", err)
		}
		return true, enc.Close()
	}
	return false, nil
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, allowed)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func printArtifact(w io.Writer, art *session.Artifact) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render("Saved"), pathStyle.Render(art.Path))
	fmt.Fprintf(w, "  %s, %s\n", humanize.IBytes(uint64(art.SizeBytes)), formatDuration(art.Duration))
	if art.Incomplete {
		fmt.Fprintln(w, warningStyle.Render("  encoder did not finish cleanly; the file may be truncated"))
	}
}

func printStatus(w io.Writer, st session.Status) {
	fmt.Fprintf(w, "State:   %s\n", styleState(string(st.State)))
	if st.SessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", dimStyle.Render(st.SessionID))
	}
	if st.OutputPath != "" {
		fmt.Fprintf(w, "Output:  %s\n", pathStyle.Render(st.OutputPath))
	}
	if st.State == session.StateCountdown {
		fmt.Fprintf(w, "Starts:  in %d\n", st.CountdownRemaining)
	}
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s\n", humanize.Time(st.StartedAt))
		fmt.Fprintf(w, "Elapsed: %s\n", formatDuration(time.Duration(st.Elapsed*float64(time.Second))))
	}
}
