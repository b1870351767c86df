package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/schovi/screenrec/internal/capture"
	"github.com/schovi/screenrec/internal/config"
	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that recording can work on this system",
	Long: `Check the pieces a recording needs:
  • ffmpeg on PATH (or the configured ffmpeg_path)
  • a display to capture
  • a writable recordings directory
  • the daemon socket and capture lock`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

type check struct {
	name   string
	ok     bool
	warn   bool
	detail string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := []check{
		checkConfigFile(),
		checkFFmpeg(),
		checkDisplay(),
		checkRecordingsDir(),
		checkDaemon(),
		checkCaptureLock(),
	}

	fmt.Println(headerStyle.Render("screenrec doctor"))
	failed := 0
	for _, c := range checks {
		mark := successStyle.Render("ok  ")
		switch {
		case !c.ok:
			mark = errorStyle.Render("FAIL")
			failed++
		case c.warn:
			mark = warningStyle.Render("warn")
		}
		fmt.Printf("  %s %-18s %s\n", mark, c.name, dimStyle.Render(c.detail))
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkConfigFile() check {
	path := config.FilePath()
	if _, err := os.Stat(path); err != nil {
		return check{name: "config", ok: true, warn: true, detail: "no file at " + path + ", using defaults"}
	}
	return check{name: "config", ok: true, detail: path}
}

func checkFFmpeg() check {
	bin, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		return check{name: "ffmpeg", detail: err.Error()}
	}
	out, err := exec.Command(bin, "-hide_banner", "-version").Output()
	if err != nil {
		return check{name: "ffmpeg", detail: fmt.Sprintf("%s: %v", bin, err)}
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return check{name: "ffmpeg", ok: true, detail: first}
}

func checkDisplay() check {
	display, err := capture.ResolveDisplay(cfg.Display)
	if err != nil {
		return check{name: "display", detail: err.Error()}
	}
	if display == "" {
		display = "primary screen"
	}
	return check{name: "display", ok: true, detail: display}
}

func checkRecordingsDir() check {
	lib := library.New(cfg.RecordingsDir)
	if err := lib.EnsureDir(); err != nil {
		return check{name: "recordings dir", detail: err.Error()}
	}
	probe, err := lib.NextOutputPath()
	if err != nil {
		return check{name: "recordings dir", detail: err.Error()}
	}
	if err := session.ValidateConfig(session.Config{
		Video:       cfg.Video(),
		AudioSource: cfg.AudioSource(),
		OutputPath:  probe,
	}); err != nil {
		return check{name: "recordings dir", detail: err.Error()}
	}
	return check{name: "recordings dir", ok: true, detail: lib.Dir()}
}

func checkDaemon() check {
	client := daemon.NewClient(cfg.SocketDir)
	if !client.Ping() {
		return check{name: "daemon", ok: true, warn: true, detail: "not running (starts on first command)"}
	}
	st, err := client.Status()
	if err != nil {
		return check{name: "daemon", detail: err.Error()}
	}
	return check{name: "daemon", ok: true, detail: fmt.Sprintf("running, %s", st.State)}
}

func checkCaptureLock() check {
	busy, err := capture.Busy(cfg.SocketDir)
	if err != nil {
		return check{name: "capture lock", detail: err.Error()}
	}
	if busy {
		return check{name: "capture lock", ok: true, warn: true, detail: "held (a recording is in progress)"}
	}
	return check{name: "capture lock", ok: true, detail: "free"}
}
