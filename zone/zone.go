package zone

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
	"golang.org/x/exp/maps"
)

var (
	// ErrFrozen is returned when a zone is modified after its name server started serving it
	ErrFrozen = errors.New("zone is frozen")

	// ErrOutOfZone is returned for records not at or below the zone origin
	ErrOutOfZone = errors.New("record is out of zone")
)

// Zone is the record set of one zone
type Zone struct {
	origin model.FQDN

	mu      sync.RWMutex
	records map[model.FQDN]map[uint16][]dns.RR
	frozen  bool
}

// New creates an empty zone
func New(origin model.FQDN) *Zone {
	return &Zone{
		origin:  origin,
		records: make(map[model.FQDN]map[uint16][]dns.RR),
	}
}

// Origin returns the apex of the zone
func (z *Zone) Origin() model.FQDN {
	return z.origin
}

func (z *Zone) String() string {
	return fmt.Sprintf("zone %s", z.origin)
}

// Add adds records to the zone; duplicates are ignored
func (z *Zone) Add(rrs ...dns.RR) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.frozen {
		return fmt.Errorf("%s: %w", z.origin, ErrFrozen)
	}

	for _, rr := range rrs {
		name := model.FQDN(dns.CanonicalName(rr.Header().Name))
		if !name.IsSubdomainOf(z.origin) {
			return fmt.Errorf("%w: '%s' is not in %s", ErrOutOfZone, name, z.origin)
		}

		rr = dns.Copy(rr)
		rr.Header().Name = name.String()

		types, ok := z.records[name]
		if !ok {
			types = make(map[uint16][]dns.RR)
			z.records[name] = types
		}

		rtype := rr.Header().Rrtype
		if !containsDuplicate(types[rtype], rr) {
			types[rtype] = append(types[rtype], rr)
		}
	}

	return nil
}

// AddString parses records in presentation format and adds them
func (z *Zone) AddString(records ...string) error {
	rrs := make([]dns.RR, 0, len(records))

	for _, s := range records {
		rr, err := dns.NewRR(s)
		if err != nil {
			return fmt.Errorf("can't parse record '%s': %w", s, err)
		}

		if rr == nil {
			continue
		}

		rrs = append(rrs, rr)
	}

	return z.Add(rrs...)
}

// Remove deletes the RRset of name and type
func (z *Zone) Remove(name model.FQDN, rtype uint16) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.frozen {
		return fmt.Errorf("%s: %w", z.origin, ErrFrozen)
	}

	if types, ok := z.records[name]; ok {
		delete(types, rtype)

		if len(types) == 0 {
			delete(z.records, name)
		}
	}

	return nil
}

// Freeze makes the zone read-only. Subsequent calls have no effect.
func (z *Zone) Freeze() {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.frozen = true
}

// Frozen returns true once the zone is read-only
func (z *Zone) Frozen() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()

	return z.frozen
}

// Lookup returns a copy of the RRset of name and type
func (z *Zone) Lookup(name model.FQDN, rtype uint16) []dns.RR {
	z.mu.RLock()
	defer z.mu.RUnlock()

	return copyRRs(z.records[name][rtype])
}

// Types returns the record types present at name in ascending order
func (z *Zone) Types(name model.FQDN) []uint16 {
	z.mu.RLock()
	defer z.mu.RUnlock()

	types := maps.Keys(z.records[name])
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Names returns every owner name in canonical order
func (z *Zone) Names() []model.FQDN {
	z.mu.RLock()
	defer z.mu.RUnlock()

	names := maps.Keys(z.records)
	sort.Slice(names, func(i, j int) bool {
		return model.CanonicalCompare(names[i].String(), names[j].String()) < 0
	})

	return names
}

// NameExists returns true if name owns records or is an empty non-terminal
func (z *Zone) NameExists(name model.FQDN) bool {
	z.mu.RLock()
	defer z.mu.RUnlock()

	if _, ok := z.records[name]; ok {
		return true
	}

	for owner := range z.records {
		if owner.IsSubdomainOf(name) {
			return true
		}
	}

	return false
}

// SOA returns the SOA record of the apex
func (z *Zone) SOA() (*dns.SOA, bool) {
	rrs := z.Lookup(z.origin, dns.TypeSOA)
	if len(rrs) == 0 {
		return nil, false
	}

	soa, ok := rrs[0].(*dns.SOA)

	return soa, ok
}

// FindDelegation returns the topmost delegation cut at or above name, if name is below one
func (z *Zone) FindDelegation(name model.FQDN) (model.FQDN, []dns.RR, bool) {
	if !name.IsStrictSubdomainOf(z.origin) {
		return "", nil, false
	}

	z.mu.RLock()
	defer z.mu.RUnlock()

	// name followed by its ancestors up to the root; the topmost cut wins
	candidates := append([]model.FQDN{name}, name.Ancestors()...)

	for i := len(candidates) - 1; i >= 0; i-- {
		cut := candidates[i]
		if !cut.IsStrictSubdomainOf(z.origin) {
			continue
		}

		if ns := z.records[cut][dns.TypeNS]; len(ns) > 0 {
			return cut, copyRRs(ns), true
		}
	}

	return "", nil, false
}

// Delegations returns all delegation cuts in canonical order
func (z *Zone) Delegations() []model.FQDN {
	var cuts []model.FQDN

	for _, name := range z.Names() {
		if name == z.origin {
			continue
		}

		if cut, _, ok := z.FindDelegation(name); ok && cut == name {
			cuts = append(cuts, name)
		}
	}

	return cuts
}

// IsOccluded returns true for names strictly below a delegation cut (glue)
func (z *Zone) IsOccluded(name model.FQDN) bool {
	cut, _, ok := z.FindDelegation(name)

	return ok && cut != name
}

// Records returns all records in canonical name order
func (z *Zone) Records() []dns.RR {
	var res []dns.RR

	for _, name := range z.Names() {
		for _, t := range z.Types(name) {
			res = append(res, z.Lookup(name, t)...)
		}
	}

	return res
}

// Clone returns a mutable deep copy of the zone
func (z *Zone) Clone() *Zone {
	c := New(z.origin)

	if err := c.Add(z.Records()...); err != nil {
		// every record was validated when added to z
		panic(err)
	}

	return c
}

func containsDuplicate(rrs []dns.RR, rr dns.RR) bool {
	for _, cur := range rrs {
		if dns.IsDuplicate(cur, rr) {
			return true
		}
	}

	return false
}

func copyRRs(rrs []dns.RR) []dns.RR {
	if len(rrs) == 0 {
		return nil
	}

	res := make([]dns.RR, len(rrs))
	for i, rr := range rrs {
		res[i] = dns.Copy(rr)
	}

	return res
}
