package config

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Algorithm is the DNSSEC signing algorithm ENUM(
// ECDSAP256SHA256 // algorithm 13
// ECDSAP384SHA384 // algorithm 14
// ED25519 // algorithm 15
// RSASHA256 // algorithm 8
// RSASHA512 // algorithm 10
// )
type Algorithm uint8

// DigestType is the DS digest algorithm ENUM(
// SHA1 // digest type 1
// SHA256 // digest type 2
// SHA384 // digest type 4
// )
type DigestType uint8

// KeyRollover is the key rollover state the zone is signed in ENUM(
// none // one key per role
// prePublish // a standby ZSK is published but does not sign
// doubleSignature // two ZSKs are published and both sign
// )
type KeyRollover uint8

// ToDNS returns the DNSSEC algorithm number
func (a Algorithm) ToDNS() uint8 {
	switch a {
	case AlgorithmECDSAP256SHA256:
		return dns.ECDSAP256SHA256
	case AlgorithmECDSAP384SHA384:
		return dns.ECDSAP384SHA384
	case AlgorithmED25519:
		return dns.ED25519
	case AlgorithmRSASHA256:
		return dns.RSASHA256
	case AlgorithmRSASHA512:
		return dns.RSASHA512
	}

	return 0
}

// KeySize returns the key size in bits used for the algorithm
func (a Algorithm) KeySize() int {
	switch a {
	case AlgorithmECDSAP384SHA384:
		return 384
	case AlgorithmRSASHA256, AlgorithmRSASHA512:
		return 2048
	default:
		return 256
	}
}

// ToDNS returns the DS digest type number
func (d DigestType) ToDNS() uint8 {
	switch d {
	case DigestTypeSHA1:
		return dns.SHA1
	case DigestTypeSHA256:
		return dns.SHA256
	case DigestTypeSHA384:
		return dns.SHA384
	}

	return 0
}

// Signing configures how zones are signed when a topology is built with signing enabled
type Signing struct {
	Algorithm  Algorithm   `yaml:"algorithm" default:"ECDSAP256SHA256"`
	DigestType DigestType  `yaml:"digestType" default:"SHA256"`
	SplitKeys  bool        `yaml:"splitKeys" default:"true"`
	Rollover   KeyRollover `yaml:"rollover" default:"none"`
	NSEC       bool        `yaml:"nsec" default:"true"`
	Validity   Duration    `yaml:"validity" default:"720h"`
	// InceptionOffset backdates the signature inception to tolerate clock skew
	InceptionOffset Duration `yaml:"inceptionOffset" default:"1h"`
}

func (c *Signing) validate() error {
	if !c.Algorithm.IsValid() {
		return fmt.Errorf("unsupported algorithm %s", c.Algorithm)
	}

	if !c.DigestType.IsValid() {
		return fmt.Errorf("unsupported digest type %s", c.DigestType)
	}

	if !c.Validity.IsAboveZero() {
		return fmt.Errorf("validity must be above zero")
	}

	if c.InceptionOffset < 0 {
		return fmt.Errorf("inception offset must not be negative")
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *Signing) LogConfig(logger *logrus.Entry) {
	logger.Infof("algorithm = %s", c.Algorithm)
	logger.Infof("digest type = %s", c.DigestType)
	logger.Infof("split keys = %t", c.SplitKeys)
	logger.Infof("rollover = %s", c.Rollover)
	logger.Infof("NSEC = %t", c.NSEC)
	logger.Infof("validity = %s", c.Validity)
	logger.Infof("inception offset = %s", c.InceptionOffset)
}

// DefaultSigning returns the signing settings with every default applied
func DefaultSigning() Signing {
	var s Signing

	_ = defaults.Set(&s)

	return s
}
