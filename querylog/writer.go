package querylog

import (
	"fmt"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
)

// LogEntry is one answered query
type LogEntry struct {
	Request    *model.Request
	Response   *model.Response
	Start      time.Time
	DurationMs int64
}

// Writer persists log entries
type Writer interface {
	Write(entry *LogEntry)
	CleanUp()
}

// NewWriter creates the writer configured by cfg
func NewWriter(cfg config.QueryLog) (Writer, error) {
	switch cfg.Type {
	case config.QueryLogTypeNone:
		return NewNoneWriter(), nil
	case config.QueryLogTypeConsole:
		return NewLoggerWriter(), nil
	case config.QueryLogTypeCsv:
		return NewCSVWriter(cfg.Target, false, cfg.LogRetentionDays)
	case config.QueryLogTypeCsvClient:
		return NewCSVWriter(cfg.Target, true, cfg.LogRetentionDays)
	}

	return nil, fmt.Errorf("unsupported query log type %s", cfg.Type)
}
