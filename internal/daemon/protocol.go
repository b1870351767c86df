package daemon

import (
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
)

type Request struct {
	Action    string `json:"action"`
	Audio     string `json:"audio,omitempty"`
	Quality   string `json:"quality,omitempty"`
	Output    string `json:"output,omitempty"`
	Countdown *int   `json:"countdown,omitempty"`
	Name      string `json:"name,omitempty"`
	Cursor    int64  `json:"cursor,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type StopResult struct {
	Artifact *session.Artifact `json:"artifact,omitempty"`
	Status   session.Status    `json:"status"`
}

type EventsPage struct {
	Events []EventRecord `json:"events"`
	Next   int64         `json:"next"`
}

type DeleteResult struct {
	Deleted library.Item `json:"deleted"`
}
