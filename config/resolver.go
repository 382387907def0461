package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resolver configures the in-process iterative resolver
type Resolver struct {
	// Timeout of a single upstream exchange
	Timeout      Duration `yaml:"timeout" default:"2s"`
	MaxReferrals uint     `yaml:"maxReferrals" default:"16"`
	// CacheSize is the number of delegations kept in the LRU cache
	CacheSize int      `yaml:"cacheSize" default:"1024"`
	DNSSEC    DNSSEC   `yaml:"dnssec"`
	QueryLog  QueryLog `yaml:"queryLog"`
}

// DNSSEC is the configuration for DNSSEC validation
type DNSSEC struct {
	// Validate enables validation for resolvers with a trust anchor
	Validate      bool `yaml:"validate" default:"true"`
	MaxChainDepth uint `yaml:"maxChainDepth" default:"10"`
	// DoS protection: max upstream queries per validation
	MaxUpstreamQueries uint `yaml:"maxUpstreamQueries" default:"30"`
	// Clock skew tolerance in seconds for signature validation
	ClockSkewToleranceSec uint `yaml:"clockSkewToleranceSec" default:"3600"`
	// CacheEntries is the number of validated DNSKEY sets kept
	CacheEntries int `yaml:"cacheEntries" default:"256"`
}

// QueryLog configures the log of the queries answered by the resolver
type QueryLog struct {
	Type QueryLogType `yaml:"type" default:"none"`
	// Target is the directory of the CSV files
	Target           string `yaml:"target"`
	LogRetentionDays uint64 `yaml:"logRetentionDays"`
}

// IsEnabled implements `config.Configurable`.
func (c *Resolver) IsEnabled() bool {
	return true
}

func (c *Resolver) validate() error {
	if !c.Timeout.IsAboveZero() {
		return fmt.Errorf("timeout must be above zero")
	}

	if c.MaxReferrals == 0 {
		return fmt.Errorf("maxReferrals must be above zero")
	}

	if c.CacheSize <= 0 || c.DNSSEC.CacheEntries <= 0 {
		return fmt.Errorf("cache sizes must be above zero")
	}

	if c.QueryLog.isCSV() && c.QueryLog.Target == "" {
		return fmt.Errorf("queryLog: target is required for type %s", c.QueryLog.Type)
	}

	return nil
}

// LogConfig implements `config.Configurable`.
func (c *Resolver) LogConfig(logger *logrus.Entry) {
	logger.Infof("timeout = %s", c.Timeout)
	logger.Infof("max referrals = %d", c.MaxReferrals)
	logger.Infof("cache size = %d", c.CacheSize)
	logger.Info("dnssec:")
	c.DNSSEC.LogConfig(logger)
	logger.Info("query log:")
	c.QueryLog.LogConfig(logger)
}

// IsEnabled implements `config.Configurable`.
func (c *DNSSEC) IsEnabled() bool {
	return c.Validate
}

// LogConfig implements `config.Configurable`.
func (c *DNSSEC) LogConfig(logger *logrus.Entry) {
	logger.Infof("  Validate = %t", c.Validate)
	logger.Infof("  Max chain depth = %d", c.MaxChainDepth)
	logger.Infof("  Max upstream queries per validation = %d", c.MaxUpstreamQueries)
	logger.Infof("  Clock skew tolerance = %d second(s)", c.ClockSkewToleranceSec)
	logger.Infof("  Key cache entries = %d", c.CacheEntries)
}

// IsEnabled implements `config.Configurable`.
func (c *QueryLog) IsEnabled() bool {
	return c.Type != QueryLogTypeNone
}

// LogConfig implements `config.Configurable`.
func (c *QueryLog) LogConfig(logger *logrus.Entry) {
	logger.Infof("  type = %s", c.Type)

	if c.isCSV() {
		logger.Infof("  target = %s", c.Target)
		logger.Infof("  log retention days = %d", c.LogRetentionDays)
	}
}

func (c *QueryLog) isCSV() bool {
	return c.Type == QueryLogTypeCsv || c.Type == QueryLogTypeCsvClient
}
