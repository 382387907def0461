package querylog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileWriter", func() {
	var (
		tmpDir string
		writer *FileWriter
		err    error
	)

	newEntry := func(client string, start time.Time) *LogEntry {
		res, err := util.NewMsgWithAnswer("www.example.test. 123 IN A 192.0.2.1")
		Expect(err).Should(Succeed())

		return &LogEntry{
			Request: &model.Request{
				ClientIP: netip.MustParseAddr(client),
				Req:      util.NewMsgWithQuestion("www.example.test.", dns.Type(dns.TypeA)),
			},
			Response: &model.Response{
				Res:    res,
				Reason: "RESOLVED (127.53.0.3)",
				RType:  model.ResponseTypeRESOLVED,
			},
			Start:      start,
			DurationMs: 20,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	countFiles := func() int {
		files, err := os.ReadDir(tmpDir)
		Expect(err).Should(Succeed())

		return len(files)
	}

	Describe("CSV writer", func() {
		When("target dir does not exist", func() {
			It("should return error", func() {
				_, err = NewCSVWriter(filepath.Join(tmpDir, "wrongdir"), false, 0)
				Expect(err).Should(HaveOccurred())
			})
		})
		When("New log entry was created", func() {
			It("should be logged in one file", func() {
				writer, err = NewCSVWriter(tmpDir, false, 0)
				Expect(err).Should(Succeed())

				writer.Write(newEntry("127.53.0.9", time.Now()))
				writer.Write(newEntry("127.53.0.10", time.Now()))

				rows := readCsv(filepath.Join(tmpDir, fmt.Sprintf("%s_ALL.log", time.Now().Format("2006-01-02"))))
				Expect(rows).Should(HaveLen(2))
				Expect(rows[0]).Should(ContainElements("127.53.0.9", "20", "RESOLVED", "A (www.example.test.)",
					"A (192.0.2.1)", "NOERROR"))
			})

			It("should be logged in separate files per client", func() {
				writer, err = NewCSVWriter(tmpDir, true, 0)
				Expect(err).Should(Succeed())

				writer.Write(newEntry("127.53.0.9", time.Now()))
				writer.Write(newEntry("127.53.0.10", time.Now()))

				today := time.Now().Format("2006-01-02")

				Expect(readCsv(filepath.Join(tmpDir, fmt.Sprintf("%s_127_53_0_9.log", today)))).Should(HaveLen(1))
				Expect(readCsv(filepath.Join(tmpDir, fmt.Sprintf("%s_127_53_0_10.log", today)))).Should(HaveLen(1))
			})
		})
		When("Cleanup is called", func() {
			It("should delete old files", func() {
				writer, err = NewCSVWriter(tmpDir, false, 1)
				Expect(err).Should(Succeed())

				writer.Write(newEntry("127.53.0.9", time.Now()))
				writer.Write(newEntry("127.53.0.9", time.Now().AddDate(0, 0, -3)))

				Expect(countFiles()).Should(Equal(2))

				writer.CleanUp()

				Expect(countFiles()).Should(Equal(1))
			})
		})
	})

	Describe("NewWriter", func() {
		It("should create the configured writer", func() {
			w, err := NewWriter(config.QueryLog{Type: config.QueryLogTypeConsole})
			Expect(err).Should(Succeed())
			Expect(w).Should(BeAssignableToTypeOf(&LoggerWriter{}))

			w, err = NewWriter(config.QueryLog{Type: config.QueryLogTypeNone})
			Expect(err).Should(Succeed())
			Expect(w).Should(BeAssignableToTypeOf(&NoneWriter{}))

			w, err = NewWriter(config.QueryLog{Type: config.QueryLogTypeCsvClient, Target: tmpDir})
			Expect(err).Should(Succeed())
			Expect(w.(*FileWriter).perClient).Should(BeTrue())
		})

		It("should fail on a missing directory", func() {
			_, err := NewWriter(config.QueryLog{Type: config.QueryLogTypeCsv, Target: filepath.Join(tmpDir, "x")})
			Expect(err).Should(HaveOccurred())
		})
	})
})

func readCsv(file string) [][]string {
	var result [][]string

	csvFile, err := os.Open(file)
	Expect(err).Should(Succeed())

	defer csvFile.Close()

	reader := csv.NewReader(bufio.NewReader(csvFile))
	reader.Comma = '\t'

	for {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		Expect(err).Should(Succeed())

		result = append(result, line)
	}

	return result
}
