package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
)

type Client struct {
	socketDir  string
	socketPath string
}

func NewClient(socketDir string) *Client {
	return &Client{socketDir: socketDir, socketPath: SocketPath(socketDir)}
}

func NewClientWithSocketPath(path string) *Client {
	return &Client{socketPath: path}
}

// EnsureDaemon starts `screenrec daemon` in the background unless one is
// already answering on the socket.
func (c *Client) EnsureDaemon() error {
	if c.Ping() {
		return nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}

	cmd := exec.Command(exePath, "daemon")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.Env = os.Environ()
	if c.socketDir != "" {
		cmd.Env = append(cmd.Env, "SCREENREC_SOCKET_DIR="+c.socketDir)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	go cmd.Wait()

	deadline := time.Now().Add(DaemonStartTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(DaemonPollInterval)
		if c.Ping() {
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start")
}

func (c *Client) Ping() bool {
	resp, err := c.send(Request{Action: "ping"})
	return err == nil && resp.Success
}

type StartOptions struct {
	Audio   string
	Quality string
	Output  string
	// Countdown overrides the daemon's tick count when non-nil.
	Countdown *int
}

func (c *Client) Start(opts StartOptions) (session.Status, error) {
	var st session.Status
	err := c.call(Request{
		Action:    "start",
		Audio:     opts.Audio,
		Quality:   opts.Quality,
		Output:    opts.Output,
		Countdown: opts.Countdown,
	}, &st)
	return st, err
}

func (c *Client) Pause() (session.Status, error) {
	var st session.Status
	err := c.call(Request{Action: "pause"}, &st)
	return st, err
}

func (c *Client) Resume() (session.Status, error) {
	var st session.Status
	err := c.call(Request{Action: "resume"}, &st)
	return st, err
}

func (c *Client) Cancel() (session.Status, error) {
	var st session.Status
	err := c.call(Request{Action: "cancel"}, &st)
	return st, err
}

// Stop ends the recording. A non-nil result may come with an error when
// the file was written but teardown was not clean.
func (c *Client) Stop() (*StopResult, error) {
	resp, err := c.send(Request{Action: "stop"})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	var result StopResult
	if err := decodeData(resp, &result); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return &result, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return &result, nil
}

func (c *Client) Status() (session.Status, error) {
	var st session.Status
	err := c.call(Request{Action: "status"}, &st)
	return st, err
}

func (c *Client) Events(cursor int64, limit int) (*EventsPage, error) {
	var page EventsPage
	if err := c.call(Request{Action: "events", Cursor: cursor, Limit: limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) List() ([]library.Item, error) {
	var items []library.Item
	err := c.call(Request{Action: "list"}, &items)
	return items, err
}

func (c *Client) Delete(name string) (library.Item, error) {
	if err := library.ValidateName(name); err != nil {
		return library.Item{}, err
	}
	var result DeleteResult
	err := c.call(Request{Action: "delete", Name: name}, &result)
	return result.Deleted, err
}

func (c *Client) call(req Request, out interface{}) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return decodeData(resp, out)
}

func (c *Client) send(req Request) (*Response, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(ClientDeadline))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func decodeData(resp *Response, out interface{}) error {
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
