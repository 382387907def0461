package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"

	"github.com/0xERR0R/dnstestbed/api"
	"github.com/0xERR0R/dnstestbed/helpertest"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/onsi/gomega/gbytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Serve command", func() {
	var (
		httpAddr string
		out      *gbytes.Buffer
	)

	BeforeEach(func() {
		configPath = defaultConfigPath
		httpAddr = fmt.Sprintf("127.0.0.1:%d", 14000+GinkgoParallelProcess())
		out = gbytes.NewBuffer()

		network := helpertest.NetworkConfig(helpertest.BlockCmd)

		cfgFile := helpertest.TempFile(fmt.Sprintf(`log:
  level: fatal
network:
  subnet: %s
  port: %d
metrics:
  enable: true
`, network.Subnet, network.Port))

		os.Setenv(configFileEnvVar, cfgFile.Name())
		DeferCleanup(func() {
			os.Unsetenv(configFileEnvVar)

			cfg = nil

			log.Silence()
		})

		Expect(initConfig()).Should(Succeed())
	})

	serve := func(flags map[string]string) chan error {
		c := newServeCommand()
		c.SetOut(out)

		for name, value := range flags {
			Expect(c.Flags().Set(name, value)).Should(Succeed())
		}

		errChan := make(chan error, 1)

		go func() {
			// blocks until a signal is received
			errChan <- startServer(c, []string{})
		}()

		return errChan
	}

	getTopology := func(g Gomega) api.Topology {
		resp, err := http.Get("http://" + httpAddr + api.PathTopology)
		g.Expect(err).Should(Succeed())

		defer resp.Body.Close()

		var topology api.Topology

		g.Expect(resp.StatusCode).Should(Equal(http.StatusOK))
		g.Expect(json.NewDecoder(resp.Body).Decode(&topology)).Should(Succeed())

		return topology
	}

	postQuery := func(req api.QueryRequest) api.QueryResult {
		body, err := json.Marshal(req)
		Expect(err).Should(Succeed())

		resp, err := http.Post("http://"+httpAddr+api.PathQuery, "application/json", bytes.NewReader(body))
		Expect(err).Should(Succeed())

		defer resp.Body.Close()

		Expect(resp.StatusCode).Should(Equal(http.StatusOK))

		var result api.QueryResult

		Expect(json.NewDecoder(resp.Body).Decode(&result)).Should(Succeed())

		return result
	}

	When("Serve command is called with an unsigned zone", func() {
		It("should resolve through the resolver and terminate with signal", func() {
			errChan := serve(map[string]string{
				"record": "www.example.test. 600 IN A 192.0.2.1",
				"http":   httpAddr,
			})

			var topology api.Topology

			By("describe the topology", func() {
				Eventually(func(g Gomega) {
					topology = getTopology(g)
				}).Should(Succeed())

				Expect(topology.Signing).Should(Equal("unsigned"))
				Expect(topology.TrustAnchor).Should(BeEmpty())
				Expect(topology.Nodes).Should(HaveLen(5))
				Expect(topology.Nodes[0]).Should(HaveField("Zone", "."))
				Expect(topology.Nodes[2]).Should(HaveField("Zone", "example.test."))
				Expect(topology.Nodes[3]).Should(HaveField("Role", "resolver"))
				Expect(topology.Nodes[3].Validating).Should(BeFalse())

				Eventually(out).Should(gbytes.Say("example.test."))
			})

			By("resolve a record of the leaf zone", func() {
				result := postQuery(api.QueryRequest{Query: "www.example.test.", Type: "A"})

				Expect(result.ReturnCode).Should(Equal("NOERROR"))
				Expect(result.Answer).Should(ConsistOf("www.example.test. 600 IN A 192.0.2.1"))
			})

			By("serve the metrics", func() {
				resp, err := http.Get("http://" + httpAddr + "/metrics")
				Expect(err).Should(Succeed())
				Expect(resp.Body.Close()).Should(Succeed())
				Expect(resp.StatusCode).Should(Equal(http.StatusOK))
			})

			By("terminate with signal", func() {
				signals <- syscall.SIGINT

				Eventually(errChan).Should(Receive(BeNil()))
			})
		})
	})

	When("Serve command is called with a signed zone", func() {
		It("should validate with the trust anchor", func() {
			errChan := serve(map[string]string{
				"record": "www.example.test. 600 IN A 192.0.2.1",
				"signed": "true",
				"http":   httpAddr,
			})

			var topology api.Topology

			Eventually(func(g Gomega) {
				topology = getTopology(g)
			}).Should(Succeed())

			Expect(topology.Signing).Should(HavePrefix("signed"))
			Expect(topology.TrustAnchor).ShouldNot(BeEmpty())
			Expect(topology.Nodes[3].Validating).Should(BeTrue())

			result := postQuery(api.QueryRequest{Query: "www.example.test.", Type: "A", DNSSEC: true})

			Expect(result.ReturnCode).Should(Equal("NOERROR"))
			Expect(result.Flags).Should(ContainSubstring("ad"))

			signals <- syscall.SIGINT

			Eventually(errChan).Should(Receive(BeNil()))
		})
	})

	When("Serve command is called with invalid flags", func() {
		It("should reject the root zone", func() {
			errChan := serve(map[string]string{"zone": "."})

			Eventually(errChan).Should(Receive(MatchError(ContainSubstring("root zone"))))
		})

		It("should reject invalid records", func() {
			errChan := serve(map[string]string{"record": "www.other.test. 600 IN A 192.0.2.1"})

			Eventually(errChan).Should(Receive(MatchError(ContainSubstring("can't start test bed"))))
		})
	})
})
