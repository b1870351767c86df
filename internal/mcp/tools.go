package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/schovi/screenrec/internal/daemon"
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
	"github.com/schovi/screenrec/internal/wait"
)

const DefaultWaitTimeoutSec = 30

// Recorder is the daemon surface the tools drive. *daemon.Client
// implements it.
type Recorder interface {
	EnsureDaemon() error
	Start(opts daemon.StartOptions) (session.Status, error)
	Pause() (session.Status, error)
	Resume() (session.Status, error)
	Cancel() (session.Status, error)
	Stop() (*daemon.StopResult, error)
	Status() (session.Status, error)
	Events(cursor int64, limit int) (*daemon.EventsPage, error)
	List() ([]library.Item, error)
	Delete(name string) (library.Item, error)
}

// Notifier delivers a log message to the MCP client.
type Notifier func(level string, data interface{})

type ToolRegistry struct {
	client Recorder
	notify Notifier
}

func NewToolRegistry(client Recorder) *ToolRegistry {
	return &ToolRegistry{client: client}
}

// SetNotifier routes session events seen during blocking tool calls to n.
func (r *ToolRegistry) SetNotifier(n Notifier) {
	r.notify = n
}

// eventLevel maps a journal record to a client log level.
func eventLevel(rec daemon.EventRecord) string {
	switch session.EventType(rec.Type) {
	case session.EventError:
		return "error"
	case session.EventArtifact, session.EventRecordingActive, session.EventRecordingStopped:
		return "notice"
	default:
		return "info"
	}
}

// journalRelay forwards journal records after a cursor to the notifier.
type journalRelay struct {
	client Recorder
	notify Notifier
	cursor int64
}

// newJournalRelay positions the relay after every record already in the
// journal, so only events of the upcoming call are forwarded.
func (r *ToolRegistry) newJournalRelay() *journalRelay {
	if r.notify == nil {
		return nil
	}
	rel := &journalRelay{client: r.client, notify: r.notify}
	if page, err := r.client.Events(0, 0); err == nil {
		rel.cursor = page.Next
	}
	return rel
}

func (rel *journalRelay) flush() {
	if rel == nil {
		return
	}
	page, err := rel.client.Events(rel.cursor, 0)
	if err != nil {
		rel.notify("warning", map[string]string{"error": fmt.Sprintf("read events: %v", err)})
		return
	}
	for _, rec := range page.Events {
		rel.notify(eventLevel(rec), rec)
	}
	rel.cursor = page.Next
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (r *ToolRegistry) List() []ToolDef {
	return []ToolDef{
		{
			Name:        "start_recording",
			Description: "Start a screen recording. A countdown runs first unless countdown is 0. Only one recording can be active.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"audio": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"none", "microphone", "device", "both"},
						"description": "Audio to capture (default from config, usually none)",
					},
					"quality": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"480p", "720p", "1080p"},
						"description": "Video quality preset (default from config, usually 720p)",
					},
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Output file path. Defaults to a timestamped file in the recordings directory.",
					},
					"countdown": map[string]interface{}{
						"type":        "integer",
						"description": "Countdown ticks before capture starts (default from config, usually 3)",
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Block until the countdown ends and capture is running, sending session events as log notifications meanwhile (default: false)",
					},
				},
			},
		},
		{
			Name:        "pause_recording",
			Description: "Pause the active recording. Fails with pause_unsupported on platforms that cannot suspend the encoder.",
			InputSchema: noArgs(),
		},
		{
			Name:        "resume_recording",
			Description: "Resume a paused recording",
			InputSchema: noArgs(),
		},
		{
			Name:        "stop_recording",
			Description: "Stop the active recording and return the saved file. During the countdown this cancels instead.",
			InputSchema: noArgs(),
		},
		{
			Name:        "cancel_recording",
			Description: "Cancel a countdown before capture starts. On a live recording this stops it and keeps the file.",
			InputSchema: noArgs(),
		},
		{
			Name:        "recording_status",
			Description: "Show the session state, output path and elapsed time",
			InputSchema: noArgs(),
		},
		{
			Name:        "recording_events",
			Description: "Read session events (state changes, countdown ticks, artifacts, errors) after a cursor",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cursor": map[string]interface{}{
						"type":        "integer",
						"description": "Sequence number to read from; use 'next' from the previous call (default: 0, all retained events)",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum events to return (default: 100)",
					},
				},
			},
		},
		{
			Name:        "list_recordings",
			Description: "List saved recordings, newest first",
			InputSchema: noArgs(),
		},
		{
			Name:        "delete_recording",
			Description: "Delete a saved recording by file name",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "File name as shown by list_recordings (e.g., 'ScreenRecord_20240101_120000.mp4')",
					},
				},
				"required": []string{"name"},
			},
		},
	}
}

func (r *ToolRegistry) Call(name string, args json.RawMessage) (*CallToolResult, error) {
	if err := r.client.EnsureDaemon(); err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	switch name {
	case "start_recording":
		return r.callStart(args)
	case "pause_recording":
		return jsonResult(r.client.Pause())
	case "resume_recording":
		return jsonResult(r.client.Resume())
	case "stop_recording":
		return r.callStop()
	case "cancel_recording":
		return jsonResult(r.client.Cancel())
	case "recording_status":
		return jsonResult(r.client.Status())
	case "recording_events":
		return r.callEvents(args)
	case "list_recordings":
		return r.callList()
	case "delete_recording":
		return r.callDelete(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func jsonResult[T any](v T, err error) (*CallToolResult, error) {
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(v, "", "  ")
	return &CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(data)}},
	}, nil
}

func parseArgs(args json.RawMessage, out interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}
	return nil
}

type StartArgs struct {
	Audio      string `json:"audio"`
	Quality    string `json:"quality"`
	Output     string `json:"output"`
	Countdown  *int   `json:"countdown"`
	Wait       bool   `json:"wait"`
	TimeoutSec int    `json:"timeout_sec"`
}

func (a StartArgs) options() (daemon.StartOptions, error) {
	if a.Countdown != nil && *a.Countdown < 0 {
		return daemon.StartOptions{}, fmt.Errorf("countdown must not be negative")
	}
	if a.Quality != "" {
		if _, err := session.ProfileByName(a.Quality); err != nil {
			return daemon.StartOptions{}, err
		}
	}
	if a.Audio != "" {
		if _, err := session.ParseAudioSource(a.Audio); err != nil {
			return daemon.StartOptions{}, err
		}
	}
	return daemon.StartOptions{
		Audio:     a.Audio,
		Quality:   a.Quality,
		Output:    a.Output,
		Countdown: a.Countdown,
	}, nil
}

func (r *ToolRegistry) callStart(args json.RawMessage) (*CallToolResult, error) {
	var a StartArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}

	var relay *journalRelay
	if a.Wait {
		relay = r.newJournalRelay()
	}

	st, err := r.client.Start(opts)
	if err != nil {
		return nil, err
	}
	if !a.Wait || st.State != session.StateCountdown {
		relay.flush()
		return jsonResult(st, nil)
	}

	timeoutSec := a.TimeoutSec
	if timeoutSec == 0 {
		timeoutSec = DefaultWaitTimeoutSec
	}
	st, err = wait.ForState(r.client.Status, wait.Config{
		States:     []session.State{session.StateRecording, session.StateIdle},
		TimeoutSec: timeoutSec,
		OnChange:   func(session.Status) { relay.flush() },
	})
	relay.flush()
	if err != nil {
		return nil, err
	}
	if st.State == session.StateIdle {
		return nil, fmt.Errorf("recording did not start; see recording_events for the error")
	}
	return jsonResult(st, nil)
}

func (r *ToolRegistry) callStop() (*CallToolResult, error) {
	result, err := r.client.Stop()
	if result == nil {
		return jsonResult(result, err)
	}

	out := map[string]interface{}{
		"artifact": result.Artifact,
		"status":   result.Status,
	}
	if err != nil {
		// The file was written but teardown reported a problem.
		out["warning"] = err.Error()
	}
	return jsonResult(out, nil)
}

type EventsArgs struct {
	Cursor int64 `json:"cursor"`
	Limit  int   `json:"limit"`
}

func (r *ToolRegistry) callEvents(args json.RawMessage) (*CallToolResult, error) {
	var a EventsArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Cursor < 0 || a.Limit < 0 {
		return nil, fmt.Errorf("cursor and limit must not be negative")
	}
	return jsonResult(r.client.Events(a.Cursor, a.Limit))
}

func (r *ToolRegistry) callList() (*CallToolResult, error) {
	items, err := r.client.List()
	if err != nil {
		return nil, err
	}

	type listed struct {
		library.Item
		Size string `json:"size"`
	}
	out := make([]listed, 0, len(items))
	for _, it := range items {
		out = append(out, listed{Item: it, Size: it.HumanSize()})
	}
	return jsonResult(out, nil)
}

type DeleteArgs struct {
	Name string `json:"name"`
}

func (r *ToolRegistry) callDelete(args json.RawMessage) (*CallToolResult, error) {
	var a DeleteArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	if err := library.ValidateName(a.Name); err != nil {
		return nil, err
	}
	return jsonResult(r.client.Delete(a.Name))
}
