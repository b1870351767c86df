package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "screenrec"
)

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Log levels accepted by logging/setLevel, least severe first.
var logLevels = []string{"debug", "info", "notice", "warning", "error", "critical", "alert", "emergency"}

func levelRank(level string) int {
	for i, l := range logLevels {
		if l == level {
			return i
		}
	}
	return -1
}

type Server struct {
	tools    *ToolRegistry
	version  string
	reader   *bufio.Reader
	writer   io.Writer
	handlers map[string]func(*Request)

	mu       sync.Mutex
	minLevel int
}

func NewServer(tools *ToolRegistry, version string) *Server {
	return NewServerIO(tools, version, os.Stdin, os.Stdout)
}

// NewServerIO serves JSON-RPC lines read from r and writes replies and
// session notifications to w.
func NewServerIO(tools *ToolRegistry, version string, r io.Reader, w io.Writer) *Server {
	s := &Server{
		tools:    tools,
		version:  version,
		reader:   bufio.NewReader(r),
		writer:   w,
		minLevel: levelRank("info"),
	}
	s.handlers = map[string]func(*Request){
		"initialize":                s.handleInitialize,
		"notifications/initialized": func(*Request) {},
		"ping":                      func(req *Request) { s.sendResult(req.ID, struct{}{}) },
		"tools/list":                s.handleToolsList,
		"tools/call":                s.handleToolsCall,
		"logging/setLevel":          s.handleSetLevel,
	}
	tools.SetNotifier(s.notify)
	return s
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Notification is a server-initiated message. It carries no id and gets
// no reply.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// LogMessage is the params of notifications/message.
type LogMessage struct {
	Level  string      `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}

type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type ToolsListResult struct {
	Tools []ToolDef `json:"tools"`
}

type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type SetLevelParams struct {
	Level string `json:"level"`
}

// Run serves requests until the input ends. Tool calls run inline, so
// notifications they raise are written before their reply.
func (s *Server) Run() error {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(bytes.TrimSpace(line)) > 0) {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, codeParseError, "Parse error", err.Error())
			continue
		}

		handler, ok := s.handlers[req.Method]
		if !ok {
			// Unknown notifications are dropped; unknown calls get an error.
			if req.ID != nil {
				s.sendError(req.ID, codeMethodNotFound, "Method not found", req.Method)
			}
			continue
		}
		handler(&req)
	}
}

func (s *Server) handleInitialize(req *Request) {
	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools":   map[string]any{},
			"logging": map[string]any{},
		},
	}
	result.ServerInfo.Name = ServerName
	result.ServerInfo.Version = s.version

	s.sendResult(req.ID, result)
}

func (s *Server) handleToolsList(req *Request) {
	s.sendResult(req.ID, ToolsListResult{Tools: s.tools.List()})
}

func (s *Server) handleToolsCall(req *Request) {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}

	result, err := s.tools.Call(params.Name, params.Arguments)
	if err != nil {
		s.sendResult(req.ID, CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
		return
	}
	s.sendResult(req.ID, result)
}

func (s *Server) handleSetLevel(req *Request) {
	var params SetLevelParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	rank := levelRank(params.Level)
	if rank < 0 {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", fmt.Sprintf("unknown log level %q", params.Level))
		return
	}

	s.mu.Lock()
	s.minLevel = rank
	s.mu.Unlock()
	s.sendResult(req.ID, struct{}{})
}

// notify sends a notifications/message unless level is below the
// client's chosen minimum.
func (s *Server) notify(level string, data interface{}) {
	s.mu.Lock()
	min := s.minLevel
	s.mu.Unlock()
	if levelRank(level) < min {
		return
	}
	s.write(Notification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params:  LogMessage{Level: level, Logger: ServerName, Data: data},
	})
}

func (s *Server) sendResult(id interface{}, result interface{}) {
	s.write(Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id interface{}, code int, message, data string) {
	s.write(Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	})
}

func (s *Server) write(msg interface{}) {
	data, _ := json.Marshal(msg)
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Write(data)
}
