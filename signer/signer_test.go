package signer

import (
	"errors"
	"net/netip"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/zone"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func signaturesFor(z *zone.Zone, name model.FQDN, covered uint16) []*dns.RRSIG {
	var res []*dns.RRSIG

	for _, rr := range z.Lookup(name, dns.TypeRRSIG) {
		if sig := rr.(*dns.RRSIG); sig.TypeCovered == covered {
			res = append(res, sig)
		}
	}

	return res
}

func keyByTag(keys []*Key, tag uint16) *Key {
	for _, k := range keys {
		if k.KeyTag() == tag {
			return k
		}
	}

	return nil
}

var _ = Describe("Signer", func() {
	var (
		unsigned *zone.Zone
		settings config.Signing
		sut      *Signer
		now      time.Time
	)

	BeforeEach(func() {
		var err error

		unsigned, err = zone.NewApex(model.TestTLD, netip.MustParseAddr("127.53.0.2"), 3600, 300)
		Expect(err).Should(Succeed())
		Expect(unsigned.Delegate(model.TestDomain, netip.MustParseAddr("127.53.0.3"), 3600)).Should(Succeed())
		Expect(unsigned.AddString("www.test. 600 IN A 192.0.2.1")).Should(Succeed())

		settings = config.DefaultSigning()
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		sut = New(settings)
		sut.now = func() time.Time { return now }
	})

	When("signing with default settings", func() {
		var signed *SignedZone

		JustBeforeEach(func() {
			var err error

			signed, err = sut.Sign(unsigned)
			Expect(err).Should(Succeed())
		})

		It("should not modify the input zone", func() {
			Expect(unsigned.Lookup(model.TestTLD, dns.TypeDNSKEY)).Should(BeEmpty())
			Expect(unsigned.Lookup(model.TestTLD, dns.TypeRRSIG)).Should(BeEmpty())
		})

		It("should publish a KSK and a ZSK", func() {
			Expect(signed.Keys).Should(HaveLen(2))
			Expect(signed.KSKs()).Should(HaveLen(1))
			Expect(signed.Zone.Lookup(model.TestTLD, dns.TypeDNSKEY)).Should(HaveLen(2))

			for _, k := range signed.Keys {
				Expect(k.Active).Should(BeTrue())
				Expect(k.DNSKEY.Algorithm).Should(Equal(dns.ECDSAP256SHA256))
				Expect(k.DNSKEY.Hdr.Ttl).Should(BeNumerically("==", 3600))
			}
		})

		It("should produce signatures that verify", func() {
			for _, name := range []model.FQDN{model.TestTLD, "www.test."} {
				for _, t := range signed.Zone.Types(name) {
					if t == dns.TypeRRSIG {
						continue
					}

					sigs := signaturesFor(signed.Zone, name, t)
					Expect(sigs).ShouldNot(BeEmpty(), "%s %s", name, dns.Type(t))

					for _, sig := range sigs {
						key := keyByTag(signed.Keys, sig.KeyTag)
						Expect(key).ShouldNot(BeNil())
						Expect(sig.Verify(key.DNSKEY, signed.Zone.Lookup(name, t))).Should(Succeed())
					}
				}
			}
		})

		It("should sign the key set with the KSK and everything else with the ZSK", func() {
			ksk := signed.KSKs()[0]

			for _, sig := range signaturesFor(signed.Zone, model.TestTLD, dns.TypeDNSKEY) {
				Expect(sig.KeyTag).Should(Equal(ksk.KeyTag()))
			}

			for _, sig := range signaturesFor(signed.Zone, "www.test.", dns.TypeA) {
				Expect(sig.KeyTag).ShouldNot(Equal(ksk.KeyTag()))
				Expect(sig.OrigTtl).Should(BeNumerically("==", 600))
				Expect(sig.Labels).Should(BeNumerically("==", 2))
				Expect(sig.SignerName).Should(Equal("test."))
			}
		})

		It("should set the validity window", func() {
			sig := signaturesFor(signed.Zone, "www.test.", dns.TypeA)[0]

			Expect(sig.Inception).Should(Equal(uint32(now.Add(-time.Hour).Unix())))
			Expect(sig.Expiration).Should(Equal(uint32(now.Add(720 * time.Hour).Unix())))
		})

		It("should not sign delegation NS records and glue", func() {
			Expect(signed.Zone.Lookup(model.TestDomain, dns.TypeNS)).Should(HaveLen(1))
			Expect(signaturesFor(signed.Zone, model.TestDomain, dns.TypeNS)).Should(BeEmpty())
			Expect(signed.Zone.Lookup("ns1.example.test.", dns.TypeRRSIG)).Should(BeEmpty())
			Expect(signed.Zone.Lookup("ns1.example.test.", dns.TypeNSEC)).Should(BeEmpty())
		})

		It("should link the names in canonical order", func() {
			expected := map[model.FQDN]string{
				"test.":         "example.test.",
				"example.test.": "ns1.test.",
				"ns1.test.":     "www.test.",
				"www.test.":     "test.",
			}

			for owner, next := range expected {
				nsec := signed.Zone.Lookup(owner, dns.TypeNSEC)
				Expect(nsec).Should(HaveLen(1), owner.String())
				Expect(nsec[0].(*dns.NSEC).NextDomain).Should(Equal(next))
				Expect(nsec[0].Header().Ttl).Should(BeNumerically("==", 300))
			}
		})

		It("should list only the delegation types at an insecure cut", func() {
			nsec := signed.Zone.Lookup(model.TestDomain, dns.TypeNSEC)[0].(*dns.NSEC)

			Expect(nsec.TypeBitMap).Should(Equal([]uint16{dns.TypeNS, dns.TypeRRSIG, dns.TypeNSEC}))
			Expect(signaturesFor(signed.Zone, model.TestDomain, dns.TypeNSEC)).Should(HaveLen(1))
		})

		It("should compute the DS of the KSK", func() {
			Expect(signed.DS).Should(HaveLen(1))
			Expect(signed.DS[0].KeyTag).Should(Equal(signed.KSKs()[0].KeyTag()))
			Expect(signed.DS[0].DigestType).Should(Equal(dns.SHA256))
			Expect(signed.DS[0].Hdr.Name).Should(Equal("test."))
		})

		It("should provide a trust anchor", func() {
			ta := signed.TrustAnchor()

			Expect(ta.Zone).Should(Equal(model.TestTLD))
			Expect(ta.Keys).Should(HaveLen(1))
			Expect(ta.Records()).Should(HaveLen(1))
			Expect(ta.DSStrings()).Should(HaveLen(1))
			Expect(ta.DSStrings()[0]).Should(HavePrefix("test.\t"))
			Expect(ta.String()).Should(ContainSubstring("test."))

			for _, k := range signed.Keys {
				Expect(ta.Matches(k.DNSKEY)).Should(Equal(k.IsKSK()))
			}
		})
	})

	When("the child zone is signed first", func() {
		It("should sign the DS at the cut", func() {
			child, err := zone.NewApex(model.TestDomain, netip.MustParseAddr("127.53.0.3"), 3600, 300)
			Expect(err).Should(Succeed())

			signedChild, err := sut.Sign(child)
			Expect(err).Should(Succeed())

			for _, ds := range signedChild.DS {
				Expect(unsigned.Add(ds)).Should(Succeed())
			}

			signed, err := sut.Sign(unsigned)
			Expect(err).Should(Succeed())

			sigs := signaturesFor(signed.Zone, model.TestDomain, dns.TypeDS)
			Expect(sigs).Should(HaveLen(1))
			Expect(sigs[0].SignerName).Should(Equal("test."))

			nsec := signed.Zone.Lookup(model.TestDomain, dns.TypeNSEC)[0].(*dns.NSEC)
			Expect(nsec.TypeBitMap).Should(ContainElement(dns.TypeDS))
		})
	})

	When("keys are not split", func() {
		BeforeEach(func() {
			settings.SplitKeys = false
		})

		It("should sign everything with the single KSK", func() {
			signed, err := sut.Sign(unsigned)
			Expect(err).Should(Succeed())

			Expect(signed.Keys).Should(HaveLen(1))
			Expect(signed.Keys[0].IsKSK()).Should(BeTrue())

			sig := signaturesFor(signed.Zone, "www.test.", dns.TypeA)
			Expect(sig).Should(HaveLen(1))
			Expect(sig[0].KeyTag).Should(Equal(signed.Keys[0].KeyTag()))
		})
	})

	When("a ZSK is pre-published", func() {
		BeforeEach(func() {
			settings.Rollover = config.KeyRolloverPrePublish
		})

		It("should publish the standby key without signing with it", func() {
			signed, err := sut.Sign(unsigned)
			Expect(err).Should(Succeed())

			Expect(signed.Zone.Lookup(model.TestTLD, dns.TypeDNSKEY)).Should(HaveLen(3))
			Expect(signaturesFor(signed.Zone, "www.test.", dns.TypeA)).Should(HaveLen(1))

			for _, sig := range signaturesFor(signed.Zone, "www.test.", dns.TypeA) {
				Expect(keyByTag(signed.Keys, sig.KeyTag).Active).Should(BeTrue())
			}
		})
	})

	When("the zone is double signed", func() {
		BeforeEach(func() {
			settings.Rollover = config.KeyRolloverDoubleSignature
		})

		It("should sign with both ZSKs", func() {
			signed, err := sut.Sign(unsigned)
			Expect(err).Should(Succeed())

			Expect(signed.Keys).Should(HaveLen(3))
			Expect(signaturesFor(signed.Zone, "www.test.", dns.TypeA)).Should(HaveLen(2))
		})
	})

	DescribeTable("algorithms",
		func(algorithm config.Algorithm, digest config.DigestType) {
			settings.Algorithm = algorithm
			settings.DigestType = digest

			signed, err := Sign(unsigned, settings)
			Expect(err).Should(Succeed())

			sig := signaturesFor(signed.Zone, "www.test.", dns.TypeA)[0]
			Expect(sig.Algorithm).Should(Equal(algorithm.ToDNS()))
			Expect(sig.Verify(keyByTag(signed.Keys, sig.KeyTag).DNSKEY, signed.Zone.Lookup("www.test.", dns.TypeA))).
				Should(Succeed())
			Expect(signed.DS[0].DigestType).Should(Equal(digest.ToDNS()))
		},
		Entry("ECDSA P-384", config.AlgorithmECDSAP384SHA384, config.DigestTypeSHA384),
		Entry("Ed25519", config.AlgorithmED25519, config.DigestTypeSHA256),
		Entry("RSA/SHA-256", config.AlgorithmRSASHA256, config.DigestTypeSHA1),
	)

	Describe("errors", func() {
		It("should fail on unsupported algorithm", func() {
			settings.Algorithm = config.Algorithm(99)

			_, err := Sign(unsigned, settings)
			Expect(err).Should(MatchError(ErrUnsupportedAlgorithm))

			var signingErr *SigningError
			Expect(errors.As(err, &signingErr)).Should(BeTrue())
			Expect(signingErr.Zone).Should(Equal(model.TestTLD))
		})

		It("should fail on unsupported digest", func() {
			settings.DigestType = config.DigestType(42)

			_, err := Sign(unsigned, settings)
			Expect(err).Should(MatchError(ErrUnsupportedDigest))
		})

		It("should fail without SOA", func() {
			z := zone.New(model.TestTLD)
			Expect(z.AddString("www.test. 300 IN A 192.0.2.1")).Should(Succeed())

			_, err := Sign(z, settings)
			Expect(err).Should(MatchError(ErrMalformedZone))
			Expect(err.Error()).Should(ContainSubstring("no SOA"))
		})

		It("should refuse to sign a signed zone again", func() {
			signed, err := Sign(unsigned, settings)
			Expect(err).Should(Succeed())

			_, err = Sign(signed.Zone, settings)
			Expect(err).Should(MatchError(ErrMalformedZone))
		})
	})

	It("should publish an event", func() {
		var zones []string

		handler := func(zone, algorithm string) {
			zones = append(zones, zone+"/"+algorithm)
		}

		Expect(evt.Bus().Subscribe(evt.ZoneSigned, handler)).Should(Succeed())
		DeferCleanup(func() {
			Expect(evt.Bus().Unsubscribe(evt.ZoneSigned, handler)).Should(Succeed())
		})

		_, err := sut.Sign(unsigned)
		Expect(err).Should(Succeed())

		Expect(zones).Should(Equal([]string{"test./ECDSAP256SHA256"}))
	})
})
