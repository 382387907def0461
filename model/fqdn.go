package model

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// FQDN is a fully qualified domain name in canonical form: lower case, ASCII, with trailing dot
type FQDN string

const (
	// Root is the DNS root zone
	Root FQDN = "."
	// TestTLD is the top level domain used by the harness topologies
	TestTLD FQDN = "test."
	// TestDomain is the default leaf zone under test
	TestDomain FQDN = "example.test."
)

var errEmptyName = errors.New("empty domain name")

// NewFQDN normalizes name into canonical form. Internationalized names are converted to punycode.
func NewFQDN(name string) (FQDN, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errEmptyName
	}

	if name == "." {
		return Root, nil
	}

	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		// idna rejects underscore labels which are valid in DNS
		ascii = strings.TrimSuffix(name, ".")
	}

	fqdn := dns.CanonicalName(ascii)

	if _, ok := dns.IsDomainName(fqdn); !ok {
		return "", fmt.Errorf("invalid domain name '%s'", name)
	}

	return FQDN(fqdn), nil
}

// MustFQDN is NewFQDN for constants; it panics on invalid input
func MustFQDN(name string) FQDN {
	fqdn, err := NewFQDN(name)
	if err != nil {
		panic(err)
	}

	return fqdn
}

func (f FQDN) String() string {
	return string(f)
}

// IsRoot returns true for the root zone
func (f FQDN) IsRoot() bool {
	return f == Root
}

// Labels returns the number of labels, root has zero
func (f FQDN) Labels() int {
	return dns.CountLabel(string(f))
}

// Parent returns the name with the leftmost label removed. Root has no parent.
func (f FQDN) Parent() (FQDN, bool) {
	if f.IsRoot() || f == "" {
		return "", false
	}

	next, end := dns.NextLabel(string(f), 0)
	if end {
		return Root, true
	}

	return FQDN(string(f)[next:]), true
}

// Ancestors returns all strict ancestors from the closest one up to the root
func (f FQDN) Ancestors() []FQDN {
	var res []FQDN

	for cur, ok := f.Parent(); ok; cur, ok = cur.Parent() {
		res = append(res, cur)
	}

	return res
}

// IsSubdomainOf returns true if f is equal to or below parent
func (f FQDN) IsSubdomainOf(parent FQDN) bool {
	return dns.IsSubDomain(string(parent), string(f))
}

// IsStrictSubdomainOf returns true if f is below parent and not equal to it
func (f FQDN) IsStrictSubdomainOf(parent FQDN) bool {
	return f != parent && f.IsSubdomainOf(parent)
}

// Equal compares two names case insensitive
func (f FQDN) Equal(name string) bool {
	return string(f) == dns.CanonicalName(name)
}

// CanonicalCompare orders names per RFC 4034 section 6.1: label by label from the right,
// each label compared as lower case octets. Returns -1, 0 or 1.
func CanonicalCompare(a, b string) int {
	la := dns.SplitDomainName(dns.CanonicalName(a))
	lb := dns.SplitDomainName(dns.CanonicalName(b))

	for i, j := len(la)-1, len(lb)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if c := strings.Compare(unescapeLabel(la[i]), unescapeLabel(lb[j])); c != 0 {
			return c
		}
	}

	switch {
	case len(la) < len(lb):
		return -1
	case len(la) > len(lb):
		return 1
	default:
		return 0
	}
}

func unescapeLabel(label string) string {
	if !strings.Contains(label, `\`) {
		return label
	}

	var sb strings.Builder

	for i := 0; i < len(label); i++ {
		c := label[i]
		if c != '\\' || i+1 >= len(label) {
			sb.WriteByte(c)

			continue
		}

		if i+3 < len(label) && isDigit(label[i+1]) && isDigit(label[i+2]) && isDigit(label[i+3]) {
			v := int(label[i+1]-'0')*100 + int(label[i+2]-'0')*10 + int(label[i+3]-'0')
			sb.WriteByte(byte(v))

			i += 3

			continue
		}

		sb.WriteByte(label[i+1])

		i++
	}

	return sb.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// RootHint is the address of a root server a resolver starts iterating from
type RootHint struct {
	Name FQDN
	Addr netip.Addr
}

func (h RootHint) String() string {
	return fmt.Sprintf("%s (%s)", h.Name, h.Addr)
}
