package record

import (
	"net/netip"

	"github.com/0xERR0R/dnstestbed/model"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mustRR(s string) dns.RR {
	rr, err := dns.NewRR(s)
	Expect(err).Should(Succeed())

	return rr
}

var _ = Describe("Record", func() {
	It("should decode address records", func() {
		a := FromRR(mustRR("NS1.Test. 300 IN A 127.53.0.3"))

		Expect(a).Should(BeAssignableToTypeOf(A{}))
		Expect(a.Name()).Should(Equal(model.FQDN("ns1.test.")))
		Expect(a.TTL()).Should(BeNumerically("==", 300))
		Expect(a.(A).Addr).Should(Equal(netip.MustParseAddr("127.53.0.3")))

		aaaa := FromRR(mustRR("ns1.test. 300 IN AAAA ::1")).(AAAA)
		Expect(aaaa.Addr).Should(Equal(netip.MustParseAddr("::1")))
	})

	It("should expose the zone of a DS record", func() {
		ds := FromRR(mustRR("example.test. 3600 IN DS 4711 13 2 " +
			"49FD46E6C4B45C55D4AC69CBD3CD34AC1AFE51DE9A6D2B0C5B7B2B3E6E3C1F2A")).(DS)

		Expect(ds.Zone).Should(Equal(model.TestDomain))
		Expect(ds.KeyTag).Should(BeNumerically("==", 4711))
		Expect(ds.Algorithm).Should(Equal(dns.ECDSAP256SHA256))
		Expect(ds.DigestType).Should(Equal(dns.SHA256))
		Expect(ds.Type()).Should(Equal(dns.Type(dns.TypeDS)))
	})

	It("should decode NS, CNAME and SOA", func() {
		ns := FromRR(mustRR("test. 3600 IN NS ns1.test.")).(NS)
		Expect(ns.NameServer).Should(Equal(model.FQDN("ns1.test.")))

		cname := FromRR(mustRR("www.example.test. 3600 IN CNAME Example.Test.")).(CNAME)
		Expect(cname.Target).Should(Equal(model.TestDomain))

		soa := FromRR(mustRR("test. 3600 IN SOA ns1.test. hostmaster.test. 7 3600 900 86400 300")).(SOA)
		Expect(soa.Serial).Should(BeNumerically("==", 7))
		Expect(soa.Minimum).Should(BeNumerically("==", 300))
	})

	It("should decode DNSSEC records", func() {
		key := &dns.DNSKEY{
			Hdr:       dns.RR_Header{Name: "test.", Rrtype: dns.TypeDNSKEY, Class: dns.ClassINET, Ttl: 3600},
			Flags:     dns.ZONE | dns.SEP,
			Protocol:  3,
			Algorithm: dns.ED25519,
		}
		_, err := key.Generate(256)
		Expect(err).Should(Succeed())

		decoded := FromRR(key).(DNSKEY)
		Expect(decoded.IsKSK()).Should(BeTrue())
		Expect(decoded.KeyTag).Should(Equal(key.KeyTag()))

		sig := FromRR(&dns.RRSIG{
			Hdr:         dns.RR_Header{Name: "test.", Rrtype: dns.TypeRRSIG, Class: dns.ClassINET},
			TypeCovered: dns.TypeDNSKEY,
			SignerName:  "TEST.",
			Inception:   100,
			Expiration:  200,
		}).(RRSIG)
		Expect(sig.TypeCovered).Should(Equal(dns.Type(dns.TypeDNSKEY)))
		Expect(sig.SignerName).Should(Equal(model.TestTLD))
		Expect(sig.Expiration.Sub(sig.Inception).Seconds()).Should(BeNumerically("==", 100))

		nsec := FromRR(mustRR("example.test. 3600 IN NSEC www.example.test. NS DS RRSIG NSEC")).(NSEC)
		Expect(nsec.Covers(dns.Type(dns.TypeDS))).Should(BeTrue())
		Expect(nsec.Covers(dns.Type(dns.TypeA))).Should(BeFalse())
	})

	It("should keep unknown types", func() {
		r := FromRR(mustRR("example.test. 3600 IN TXT \"hello\""))
		Expect(r).Should(BeAssignableToTypeOf(Unknown{}))
		Expect(r.RR().Header().Rrtype).Should(Equal(dns.TypeTXT))
		Expect(FromRR(nil)).Should(BeNil())
	})

	It("should filter sections by type", func() {
		msg := new(dns.Msg)
		msg.Answer = []dns.RR{
			mustRR("test. 3600 IN NS ns1.test."),
			mustRR("ns1.test. 3600 IN A 127.53.0.3"),
			mustRR("test. 3600 IN NS ns2.test."),
		}
		msg.SetEdns0(1232, true)

		records := FromRRs(append(msg.Answer, msg.Extra...))
		Expect(records).Should(HaveLen(3))
		Expect(OfType[NS](records)).Should(HaveLen(2))
		Expect(OfType[DS](records)).Should(BeEmpty())
	})
})
