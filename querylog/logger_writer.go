package querylog

import (
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const loggerPrefixLoggerWriter = "queryLog"

// LoggerWriter writes every entry as structured log message
type LoggerWriter struct {
	logger *logrus.Entry
}

func NewLoggerWriter() *LoggerWriter {
	return &LoggerWriter{logger: log.PrefixedLog(loggerPrefixLoggerWriter)}
}

func (d *LoggerWriter) Write(entry *LogEntry) {
	d.logger.WithFields(LogEntryFields(entry)).Infof("query resolved")
}

func (d *LoggerWriter) CleanUp() {
	// Nothing to do
}

// LogEntryFields returns the non empty fields of an entry
func LogEntryFields(entry *LogEntry) logrus.Fields {
	fields := logrus.Fields{
		"duration_ms": entry.DurationMs,
	}

	if req := entry.Request; req != nil {
		if req.ClientIP.IsValid() {
			fields["client_ip"] = req.ClientIP.String()
		}

		if req.Req != nil && len(req.Req.Question) > 0 {
			q := req.Req.Question[0]
			fields["question_name"] = q.Name
			fields["question_type"] = dns.Type(q.Qtype).String()
		}
	}

	if res := entry.Response; res != nil {
		fields["response_reason"] = res.Reason
		fields["response_type"] = res.RType.String()

		if res.Res != nil {
			fields["response_code"] = dns.RcodeToString[res.Res.Rcode]
			fields["answer"] = util.AnswerToString(res.Res.Answer)
		}
	}

	return withoutZeroes(fields)
}

func withoutZeroes(fields logrus.Fields) logrus.Fields {
	for k, v := range fields {
		switch x := v.(type) {
		case string:
			if x == "" {
				delete(fields, k)
			}
		case int:
			if x == 0 {
				delete(fields, k)
			}
		case int64:
			if x == 0 {
				delete(fields, k)
			}
		}
	}

	return fields
}
