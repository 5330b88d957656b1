package everything

import (
	"encoding/json"
	"iter"

	mcp "github.com/mcpwire/go-mcp"
)

var logLevelSeverity = map[mcp.LogLevel]int{
	mcp.LogLevelDebug:     0,
	mcp.LogLevelInfo:      1,
	mcp.LogLevelNotice:    2,
	mcp.LogLevelWarning:   3,
	mcp.LogLevelError:     4,
	mcp.LogLevelCritical:  5,
	mcp.LogLevelAlert:     6,
	mcp.LogLevelEmergency: 7,
}

// LogStreams implements mcp.LogStreamer. The emitted entries are broadcast to
// every connected client as message notifications.
func (s *Server) LogStreams() iter.Seq[mcp.LogParams] {
	return func(yield func(mcp.LogParams) bool) {
		for {
			select {
			case <-s.done:
				return
			case params := <-s.logs:
				if !yield(params) {
					return
				}
			}
		}
	}
}

// SetLogLevel adjusts the minimum severity of streamed log entries.
func (s *Server) SetLogLevel(level mcp.LogLevel) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.logLevel = level
}

func (s *Server) log(msg string, level mcp.LogLevel) {
	s.logMu.RLock()
	minLevel := s.logLevel
	s.logMu.RUnlock()

	if logLevelSeverity[level] < logLevelSeverity[minLevel] {
		return
	}

	type logData struct {
		Message string `json:"message"`
	}
	dataBs, _ := json.Marshal(logData{Message: msg})

	select {
	case s.logs <- mcp.LogParams{
		Level:  level,
		Logger: "everything",
		Data:   dataBs,
	}:
	case <-s.done:
	default:
		// Drop the entry rather than stall a tool call on a slow consumer.
	}
}
