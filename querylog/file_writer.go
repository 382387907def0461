package querylog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	loggerPrefixFileWriter = "fileQueryLogWriter"
	fileDateFormat         = "2006-01-02"
	allClientsPrefix       = "ALL"
)

var validFilePattern = regexp.MustCompile("[^a-zA-Z0-9-_]+")

// FileWriter appends entries as tab separated rows to one file per day (and client)
type FileWriter struct {
	target           string
	perClient        bool
	logRetentionDays uint64
}

func NewCSVWriter(target string, perClient bool, logRetentionDays uint64) (*FileWriter, error) {
	if _, err := os.Stat(target); target != "" && err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("query log directory '%s' does not exist or is not writable", target)
	}

	return &FileWriter{
		target:           target,
		perClient:        perClient,
		logRetentionDays: logRetentionDays,
	}, nil
}

func (d *FileWriter) Write(entry *LogEntry) {
	clientPrefix := allClientsPrefix

	if d.perClient && entry.Request != nil && entry.Request.ClientIP.IsValid() {
		clientPrefix = entry.Request.ClientIP.String()
	}

	fileName := fmt.Sprintf("%s_%s.log", entry.Start.Format(fileDateFormat), escape(clientPrefix))
	writePath := filepath.Join(d.target, fileName)

	logger := log.PrefixedLog(loggerPrefixFileWriter).WithField("file_name", writePath)

	file, err := os.OpenFile(writePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		util.LogOnErrorWithEntry(logger, "can't create/open file", err)

		return
	}

	defer file.Close()

	writer := createCsvWriter(file)

	util.LogOnErrorWithEntry(logger, "can't write to file", writer.Write(createQueryLogRow(entry)))
	writer.Flush()
}

// CleanUp deletes old log files
func (d *FileWriter) CleanUp() {
	const hoursPerDay = 24

	logger := log.PrefixedLog(loggerPrefixFileWriter)

	logger.Trace("starting clean up")

	files, err := os.ReadDir(d.target)

	util.LogOnErrorWithEntry(logger.WithField("target", d.target), "can't list log directory: ", err)

	// search for log files, which names starts with date
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), ".log") || len(f.Name()) <= len(fileDateFormat) {
			continue
		}

		t, err := time.Parse(fileDateFormat, f.Name()[:len(fileDateFormat)])
		if err != nil {
			continue
		}

		differenceDays := uint64(time.Since(t).Hours() / hoursPerDay)
		if d.logRetentionDays > 0 && differenceDays > d.logRetentionDays {
			logger.WithFields(logrus.Fields{
				"file":             f.Name(),
				"ageInDays":        differenceDays,
				"logRetentionDays": d.logRetentionDays,
			}).Info("existing log file is older than retention time and will be deleted")

			err := os.Remove(filepath.Join(d.target, f.Name()))
			util.LogOnErrorWithEntry(logger.WithField("file", f.Name()), "can't remove file: ", err)
		}
	}
}

func createQueryLogRow(logEntry *LogEntry) []string {
	var clientIP, question, reason, rtype, answer, rcode string

	if request := logEntry.Request; request != nil {
		if request.ClientIP.IsValid() {
			clientIP = request.ClientIP.String()
		}

		if request.Req != nil {
			question = util.QuestionToString(request.Req.Question)
		}
	}

	if response := logEntry.Response; response != nil {
		reason = response.Reason
		rtype = response.RType.String()

		if response.Res != nil {
			answer = util.AnswerToString(response.Res.Answer)
			rcode = dns.RcodeToString[response.Res.Rcode]
		}
	}

	return []string{
		logEntry.Start.Format("2006-01-02 15:04:05"),
		clientIP,
		fmt.Sprintf("%d", logEntry.DurationMs),
		reason,
		rtype,
		question,
		answer,
		rcode,
	}
}

func createCsvWriter(file io.Writer) *csv.Writer {
	writer := csv.NewWriter(file)
	writer.Comma = '\t'

	return writer
}

func escape(file string) string {
	return validFilePattern.ReplaceAllString(file, "_")
}
