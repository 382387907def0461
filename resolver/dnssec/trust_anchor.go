package dnssec

import (
	"errors"
	"fmt"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/miekg/dns"
	"golang.org/x/exp/maps"
)

var errEmptyTrustAnchor = errors.New("trust anchor without keys or digests")

// TrustAnchorStore manages DNSSEC trust anchors
type TrustAnchorStore struct {
	anchors map[model.FQDN][]*signer.TrustAnchor // keyed by zone
}

// NewTrustAnchorStore creates a store holding the given trust anchors.
// A store without anchors validates nothing: every answer is insecure.
func NewTrustAnchorStore(anchors ...*signer.TrustAnchor) (*TrustAnchorStore, error) {
	store := &TrustAnchorStore{
		anchors: make(map[model.FQDN][]*signer.TrustAnchor),
	}

	for _, anchor := range anchors {
		if err := store.Add(anchor); err != nil {
			return nil, fmt.Errorf("failed to load trust anchor: %w", err)
		}
	}

	return store, nil
}

// Add adds a trust anchor. The anchor is shared, not copied.
func (s *TrustAnchorStore) Add(anchor *signer.TrustAnchor) error {
	if anchor == nil || (len(anchor.Keys) == 0 && len(anchor.DS) == 0) {
		return errEmptyTrustAnchor
	}

	s.anchors[anchor.Zone] = append(s.anchors[anchor.Zone], anchor)

	return nil
}

// AddTrustAnchor adds a trust anchor from a DNSKEY or DS record string
func (s *TrustAnchorStore) AddTrustAnchor(anchorStr string) error {
	rr, err := dns.NewRR(anchorStr)
	if err != nil {
		return fmt.Errorf("failed to parse trust anchor: %w", err)
	}

	if rr == nil {
		return errEmptyTrustAnchor
	}

	zone, err := model.NewFQDN(rr.Header().Name)
	if err != nil {
		return err
	}

	anchor := &signer.TrustAnchor{Zone: zone}

	switch r := rr.(type) {
	case *dns.DNSKEY:
		// only a secure entry point may anchor a chain
		if r.Flags&dns.SEP == 0 {
			return errors.New("trust anchor is not a KSK (SEP flag not set)")
		}

		anchor.Keys = append(anchor.Keys, r)
	case *dns.DS:
		anchor.DS = append(anchor.DS, r)
	default:
		return fmt.Errorf("trust anchor is neither DNSKEY nor DS but %s", dns.Type(rr.Header().Rrtype))
	}

	return s.Add(anchor)
}

// IsEmpty returns true if the store holds no anchor
func (s *TrustAnchorStore) IsEmpty() bool {
	return len(s.anchors) == 0
}

// Zones returns the zones with a trust anchor
func (s *TrustAnchorStore) Zones() []model.FQDN {
	return maps.Keys(s.anchors)
}

// HasTrustAnchor returns true if the store has a trust anchor for the zone
func (s *TrustAnchorStore) HasTrustAnchor(zone model.FQDN) bool {
	return len(s.anchors[zone]) > 0
}

// Matches returns true if key is anchored for zone
func (s *TrustAnchorStore) Matches(zone model.FQDN, key *dns.DNSKEY) bool {
	for _, anchor := range s.anchors[zone] {
		if anchor.Matches(key) {
			return true
		}
	}

	return false
}
