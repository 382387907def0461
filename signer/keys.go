package signer

import (
	"crypto"
	"fmt"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
)

const (
	flagsZSK = dns.ZONE
	flagsKSK = dns.ZONE | dns.SEP

	dnssecProtocol = 3
)

// Key is a generated zone key
type Key struct {
	DNSKEY *dns.DNSKEY
	Signer crypto.Signer
	// Active keys produce signatures, inactive ones are only published
	Active bool
}

// IsKSK returns true for keys with the secure entry point flag
func (k *Key) IsKSK() bool {
	return k.DNSKEY.Flags&dns.SEP != 0
}

// KeyTag returns the key tag of the DNSKEY
func (k *Key) KeyTag() uint16 {
	return k.DNSKEY.KeyTag()
}

func (k *Key) String() string {
	role := "ZSK"
	if k.IsKSK() {
		role = "KSK"
	}

	return fmt.Sprintf("%s %d (%s, active=%t)", role, k.KeyTag(), dns.AlgorithmToString[k.DNSKEY.Algorithm], k.Active)
}

func generateKey(origin model.FQDN, flags uint16, active bool, settings config.Signing, ttl uint32) (*Key, error) {
	algorithm := settings.Algorithm.ToDNS()
	if algorithm == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, settings.Algorithm)
	}

	key := &dns.DNSKEY{
		Hdr: dns.RR_Header{
			Name:   origin.String(),
			Rrtype: dns.TypeDNSKEY,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		Flags:     flags,
		Protocol:  dnssecProtocol,
		Algorithm: algorithm,
	}

	priv, err := key.Generate(settings.Algorithm.KeySize())
	if err != nil {
		return nil, fmt.Errorf("failed to generate DNSKEY: %w", err)
	}

	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: generated key of type %T can't sign", ErrUnsupportedAlgorithm, priv)
	}

	return &Key{DNSKEY: key, Signer: signer, Active: active}, nil
}

// generateKeys creates the key set of a zone according to the key split and rollover settings
func generateKeys(origin model.FQDN, settings config.Signing, ttl uint32) ([]*Key, error) {
	type keyRole struct {
		flags  uint16
		active bool
	}

	var roles []keyRole

	if settings.SplitKeys {
		roles = append(roles, keyRole{flagsKSK, true}, keyRole{flagsZSK, true})
	} else {
		roles = append(roles, keyRole{flagsKSK, true})
	}

	switch settings.Rollover {
	case config.KeyRolloverPrePublish:
		roles = append(roles, keyRole{flagsZSK, false})
	case config.KeyRolloverDoubleSignature:
		roles = append(roles, keyRole{flagsZSK, true})
	case config.KeyRolloverNone:
	}

	keys := make([]*Key, 0, len(roles))

	for _, s := range roles {
		key, err := generateKey(origin, s.flags, s.active, settings, ttl)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}
