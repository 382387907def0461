package log

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"errors"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

const defaultHostnameFile = "/etc/hostname"

// FormatType format for logging ENUM(
// text // logging as text
// json // JSON format
// )
type FormatType int

// Level log level ENUM(
// info
// trace
// debug
// warn
// error
// fatal
// )
type Level int

// Config is the logging section of the harness configuration
type Config struct {
	Level     Level      `yaml:"level" default:"info"`
	Format    FormatType `yaml:"format" default:"text"`
	Timestamp bool       `yaml:"timestamp" default:"true"`
	Hostname  bool       `yaml:"hostname" default:"false"`
	// Packets logs every tapped packet on trace level
	Packets bool `yaml:"packets" default:"false"`
}

// nolint:gochecknoglobals
var (
	logger       *logrus.Logger
	tracePackets bool
)

// nolint:gochecknoinits
func init() {
	logger = logrus.New()

	ConfigureLogger(Config{
		Level:     LevelInfo,
		Format:    FormatTypeText,
		Timestamp: true,
	})
}

// Log returns the global logger
func Log() *logrus.Logger {
	return logger
}

// PrefixedLog return the global logger with prefix
func PrefixedLog(prefix string) *logrus.Entry {
	return logger.WithField("prefix", prefix)
}

// NodeLog returns the global logger with prefix and the node address
func NodeLog(prefix string, addr netip.Addr) *logrus.Entry {
	return PrefixedLog(prefix).WithField("addr", addr.String())
}

// PacketTracing reports whether tapped packets should be logged
func PacketTracing() bool {
	return tracePackets && logger.IsLevelEnabled(logrus.TraceLevel)
}

// EscapeInput removes line breaks from input
func EscapeInput(input string) string {
	result := strings.ReplaceAll(input, "\n", "")
	result = strings.ReplaceAll(result, "\r", "")

	return result
}

// ConfigureLogger applies configuration to the global logger
func ConfigureLogger(lc Config) {
	if level, err := logrus.ParseLevel(lc.Level.String()); err != nil {
		logger.Fatalf("invalid log level %s %v", lc.Level, err)
	} else {
		logger.SetLevel(level)
	}

	tracePackets = lc.Packets

	var baseFormatter logrus.Formatter

	switch lc.Format {
	case FormatTypeText:
		logFormatter := &prefixed.TextFormatter{
			TimestampFormat:  "2006-01-02 15:04:05.000",
			FullTimestamp:    true,
			ForceFormatting:  true,
			ForceColors:      false,
			QuoteEmptyFields: true,
			DisableTimestamp: !lc.Timestamp,
		}

		logFormatter.SetColorScheme(&prefixed.ColorScheme{
			PrefixStyle:    "blue+b",
			TimestampStyle: "white+h",
		})

		baseFormatter = logFormatter

	case FormatTypeJson:
		baseFormatter = &logrus.JSONFormatter{}
	}

	var newFormatter logrus.Formatter

	if hn, err := getHostname(defaultHostnameFile); err == nil && lc.Hostname {
		newFormatter = hostnameFormatter{
			hostname:  hn,
			formatter: baseFormatter,
		}
	} else {
		newFormatter = baseFormatter
	}

	logger.SetFormatter(newFormatter)
}

// Silence disables the logger output
func Silence() {
	logger.Out = io.Discard
}

type hostnameFormatter struct {
	hostname  string
	formatter logrus.Formatter
}

func (l hostnameFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	newentry := *entry
	newentry.Data = make(logrus.Fields, len(entry.Data)+1)

	for k, v := range entry.Data {
		newentry.Data[k] = v
	}

	newentry.Data["hostname"] = l.hostname

	return l.formatter.Format(&newentry)
}

func getHostname(location string) (string, error) {
	if location != "" {
		if hn, err := os.ReadFile(location); err == nil {
			return strings.ToLower(strings.TrimSpace(string(hn))), nil
		}
	}

	if hn, err := os.Hostname(); err == nil {
		return hn, nil
	}

	return "", errors.New("hostname couldn't be determined")
}

// WithIndent runs callback with every message logged through logger prefixed by indent
func WithIndent(logger *logrus.Entry, indent string, callback func(*logrus.Entry)) {
	hook := &indentHook{indent: indent}

	// the indent hook must fire before all other hooks see the message
	hooks := make(logrus.LevelHooks)
	for _, level := range hook.Levels() {
		hooks[level] = append(hooks[level], hook)
	}

	for level, levelHooks := range logger.Logger.Hooks {
		hooks[level] = append(hooks[level], levelHooks...)
	}

	old := logger.Logger.ReplaceHooks(hooks)
	defer logger.Logger.ReplaceHooks(old)

	callback(logger)
}

type indentHook struct {
	indent string
}

func (h *indentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *indentHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.indent + entry.Message

	return nil
}
