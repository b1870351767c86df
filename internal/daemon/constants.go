package daemon

import "time"

const (
	SocketName         = "screenrec.sock"
	LockName           = "daemon.lock"
	ClientDeadline     = 90 * time.Second
	DaemonStartTimeout = 5 * time.Second
	DaemonPollInterval = 100 * time.Millisecond
	DefaultJournalSize = 1000
	DefaultEventsLimit = 100
)
