package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/api"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/nameserver"
	"github.com/0xERR0R/dnstestbed/network"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Query command", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = new(bytes.Buffer)
	})

	execute := func(args ...string) error {
		c := NewQueryCommand()
		c.SetOut(out)
		c.SetErr(out)
		c.SetArgs(args)

		return c.Execute()
	}

	When("a server is queried directly", func() {
		var ns *nameserver.NameServer

		BeforeEach(func() {
			nw, err := network.New(helpertest.NetworkConfig(helpertest.BlockCmd))
			Expect(err).Should(Succeed())
			DeferCleanup(nw.Close)

			ns, err = nameserver.NewForZone(nw, model.TestDomain, config.NameServer{
				TTL:         config.Duration(time.Hour),
				NegativeTTL: config.Duration(time.Minute),
			})
			Expect(err).Should(Succeed())
			DeferCleanup(ns.Stop)

			Expect(ns.Zone().AddString("www.example.test. 600 IN A 192.0.2.1")).Should(Succeed())
			Expect(ns.Start(context.Background())).Should(Succeed())
		})

		It("should print the answer over UDP", func() {
			Expect(execute("www.example.test", "--recurse=false", "-s", ns.AddrPort().String())).Should(Succeed())

			Expect(out.String()).Should(ContainSubstring("NOERROR"))
			Expect(out.String()).Should(ContainSubstring("aa"))
			Expect(out.String()).Should(ContainSubstring("192.0.2.1"))
		})

		It("should print the answer over TCP", func() {
			Expect(execute("www.example.test", "-t", "a", "--tcp", "-s", ns.AddrPort().String())).Should(Succeed())

			Expect(out.String()).Should(ContainSubstring("192.0.2.1"))
		})

		It("should print negative answers", func() {
			Expect(execute("nope.example.test.", "-s", ns.AddrPort().String())).Should(Succeed())

			Expect(out.String()).Should(ContainSubstring("NXDOMAIN"))
		})
	})

	When("the query is sent through the API", func() {
		var (
			ts     *httptest.Server
			mockFn func(w http.ResponseWriter, r *http.Request)
		)

		BeforeEach(func() {
			ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mockFn(w, r)
			}))
			DeferCleanup(ts.Close)
		})

		apiAddr := func() string {
			return strings.TrimPrefix(ts.URL, "http://")
		}

		It("should print the result", func() {
			mockFn = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()

				Expect(r.URL.Path).Should(Equal(api.PathQuery))

				var req api.QueryRequest

				Expect(json.NewDecoder(r.Body).Decode(&req)).Should(Succeed())
				Expect(req).Should(Equal(api.QueryRequest{Query: "example.test.", Type: "DS", DNSSEC: true}))

				w.Header().Add("Content-Type", "application/json")
				Expect(json.NewEncoder(w).Encode(api.QueryResult{
					ReturnCode:    "SERVFAIL",
					Flags:         "rd ra",
					ExtendedError: "6 DNSSEC bogus",
				})).Should(Succeed())
			}

			Expect(execute("example.test.", "-t", "DS", "--dnssec", "--api", apiAddr())).Should(Succeed())

			Expect(out.String()).Should(ContainSubstring("SERVFAIL"))
			Expect(out.String()).Should(ContainSubstring("6 DNSSEC bogus"))
		})

		It("should end with error if the server returns 500", func() {
			mockFn = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			err := execute("example.test.", "--api", apiAddr())
			Expect(err).Should(HaveOccurred())
			Expect(err.Error()).Should(ContainSubstring("500"))
		})

		It("should end with error if the response is not JSON", func() {
			mockFn = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("invalid"))
			}

			err := execute("example.test.", "--api", apiAddr())
			Expect(err).Should(MatchError(ContainSubstring("can't read response")))
		})
	})

	When("the arguments are invalid", func() {
		It("should reject an unknown query type", func() {
			Expect(execute("example.test.", "-t", "XYZ")).Should(MatchError("unknown query type 'XYZ'"))
		})

		It("should reject an invalid server", func() {
			Expect(execute("example.test.", "-s", "localhost")).Should(MatchError(ContainSubstring("invalid server")))
		})
	})
})
