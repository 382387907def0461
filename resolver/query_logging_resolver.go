package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/querylog"
	"github.com/sirupsen/logrus"
)

const (
	cleanUpRunPeriod = 12 * time.Hour
	logChanCap       = 1000
)

// QueryLoggingResolver writes query information (question, answer, duration, ...)
type QueryLoggingResolver struct {
	configurable[*config.QueryLog]
	NextResolver
	typed

	logChan chan *querylog.LogEntry
	writer  querylog.Writer
}

// NewQueryLoggingResolver creates the resolver and starts its writer. The writer stops with ctx.
func NewQueryLoggingResolver(ctx context.Context, cfg config.QueryLog) (*QueryLoggingResolver, error) {
	writer, err := querylog.NewWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("can't create query log writer: %w", err)
	}

	resolver := QueryLoggingResolver{
		configurable: withConfig(&cfg),
		typed:        withType("query_log"),

		logChan: make(chan *querylog.LogEntry, logChanCap),
		writer:  writer,
	}

	go resolver.writeLog(ctx)

	if cfg.LogRetentionDays > 0 {
		go resolver.periodicCleanUp(ctx)
	}

	return &resolver, nil
}

// triggers periodically cleanup of old log files
func (r *QueryLoggingResolver) periodicCleanUp(ctx context.Context) {
	ticker := time.NewTicker(cleanUpRunPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.doCleanUp()
		case <-ctx.Done():
			return
		}
	}
}

func (r *QueryLoggingResolver) doCleanUp() {
	r.writer.CleanUp()
}

// Resolve logs the query, duration and the result
func (r *QueryLoggingResolver) Resolve(ctx context.Context, request *model.Request) (*model.Response, error) {
	ctx, logger := r.log(ctx)

	start := time.Now()

	resp, err := r.next.Resolve(ctx, request)

	duration := time.Since(start).Milliseconds()

	if err == nil {
		select {
		case r.logChan <- &querylog.LogEntry{
			Request:    request,
			Response:   resp,
			Start:      start,
			DurationMs: duration,
		}:
		default:
			logger.Error("query log writer is too slow, log entry will be dropped")
		}
	}

	return resp, err
}

// writeLog passes the queued entries to the writer until ctx is done
func (r *QueryLoggingResolver) writeLog(ctx context.Context) {
	_, logger := r.log(ctx)

	for {
		select {
		case logEntry := <-r.logChan:
			start := time.Now()

			r.writer.Write(logEntry)

			halfCap := cap(r.logChan) / 2

			// if log channel is > 50% full, this could be a problem with slow writer (external storage over network etc.)
			if len(r.logChan) > halfCap {
				logger.WithField("channel_len",
					len(r.logChan)).Warnf("query log writer is too slow, write duration: %d ms", time.Since(start).Milliseconds())
			}
		case <-ctx.Done():
			return
		}
	}
}

// LogConfig implements `config.Configurable`.
func (r *QueryLoggingResolver) LogConfig(logger *logrus.Entry) {
	r.configurable.LogConfig(logger)

	if r.cfg.LogRetentionDays == 0 {
		logger.Debug("log cleanup deactivated")
	}
}
