package wait

import (
	"fmt"
	"time"

	"github.com/schovi/screenrec/internal/session"
)

const DefaultPollInterval = 50 * time.Millisecond

type StatusFunc func() (session.Status, error)

type Config struct {
	// States ends the wait when the session reaches any of them.
	States []session.State
	// TimeoutSec of zero waits forever.
	TimeoutSec   int
	PollInterval time.Duration
	// OnChange, if set, sees every status whose state differs from the
	// previous poll.
	OnChange func(session.Status)
}

// ForState polls statusFn until the session is in one of cfg.States.
func ForState(statusFn StatusFunc, cfg Config) (session.Status, error) {
	if len(cfg.States) == 0 {
		return session.Status{}, fmt.Errorf("no target state given")
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	deadline := time.Now().Add(timeout)

	var last session.Status
	first := true
	for {
		st, err := statusFn()
		if err != nil {
			return st, err
		}

		if cfg.OnChange != nil && (first || st.State != last.State || st.CountdownRemaining != last.CountdownRemaining) {
			cfg.OnChange(st)
		}
		first = false
		last = st

		for _, want := range cfg.States {
			if st.State == want {
				return st, nil
			}
		}

		if cfg.TimeoutSec > 0 && !time.Now().Before(deadline) {
			return st, fmt.Errorf("timeout waiting for state %v (last %s)", cfg.States, st.State)
		}
		time.Sleep(pollInterval)
	}
}
