package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/0xERR0R/dnstestbed/api"
	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
)

// NewQueryCommand creates new command instance
func NewQueryCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "query <domain>",
		Args:  cobra.ExactArgs(1),
		Short: "performs one DNS query",
		RunE:  query,
	}

	c.Flags().StringP("type", "t", "A", "query type (A, AAAA, DS, ...)")
	c.Flags().StringP("server", "s", "127.0.0.1:53", "address and port of the server to query")
	c.Flags().String("api", "", "host:port of a running test bed, the query is sent through its resolver")
	c.Flags().Bool("recurse", true, "set the RD flag")
	c.Flags().Bool("dnssec", false, "set the DO bit")
	c.Flags().Bool("cd", false, "set the CD flag")
	c.Flags().Bool("tcp", false, "query over TCP")
	c.Flags().Duration("timeout", 5*time.Second, "time to wait for the response")

	return c
}

func query(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	qType := dns.Type(dns.StringToType[strings.ToUpper(typeFlag)])

	if qType == dns.Type(dns.TypeNone) {
		return fmt.Errorf("unknown query type '%s'", typeFlag)
	}

	name, err := model.NewFQDN(args[0])
	if err != nil {
		return err
	}

	if apiAddr, _ := cmd.Flags().GetString("api"); apiAddr != "" {
		return queryAPI(cmd, apiAddr, name, qType)
	}

	return queryServer(cmd, name, qType)
}

func queryServer(cmd *cobra.Command, name model.FQDN, qType dns.Type) error {
	serverFlag, _ := cmd.Flags().GetString("server")

	server, err := netip.ParseAddrPort(serverFlag)
	if err != nil {
		return fmt.Errorf("invalid server '%s': %w", serverFlag, err)
	}

	q := client.Query{
		Server:   server,
		Type:     qType,
		Name:     name,
		Settings: querySettings(cmd),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.Exchange(ctx, &netDialer{}, q)
	if err != nil {
		return err
	}

	printQueryResult(cmd.OutOrStdout(), q.String(), api.NewQueryResult(resp))

	return nil
}

func querySettings(cmd *cobra.Command) client.Settings {
	recurse, _ := cmd.Flags().GetBool("recurse")
	dnssec, _ := cmd.Flags().GetBool("dnssec")
	cd, _ := cmd.Flags().GetBool("cd")
	tcp, _ := cmd.Flags().GetBool("tcp")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	settings := client.Settings{
		Transport: config.TransportUdp,
		Timeout:   timeout,
		UDPSize:   dns.DefaultMsgSize,
	}

	if recurse {
		settings = settings.WithRecurse()
	}

	if dnssec {
		settings = settings.WithDNSSEC()
	}

	if cd {
		settings = settings.WithCheckingDisabled()
	}

	if tcp {
		settings = settings.WithTransport(config.TransportTcp)
	}

	return settings
}

func queryAPI(cmd *cobra.Command, apiAddr string, name model.FQDN, qType dns.Type) error {
	dnssec, _ := cmd.Flags().GetBool("dnssec")
	cd, _ := cmd.Flags().GetBool("cd")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	apiRequest := api.QueryRequest{
		Query:            name.String(),
		Type:             qType.String(),
		DNSSEC:           dnssec,
		CheckingDisabled: cd,
	}

	jsonValue, err := json.Marshal(apiRequest)
	if err != nil {
		return fmt.Errorf("can't marshal request: %w", err)
	}

	httpClient := http.Client{Timeout: timeout}

	resp, err := httpClient.Post(fmt.Sprintf("http://%s%s", apiAddr, api.PathQuery), "application/json",
		bytes.NewBuffer(jsonValue))
	if err != nil {
		return fmt.Errorf("can't execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("response NOK, %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result api.QueryResult

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("can't read response: %w", err)
	}

	printQueryResult(cmd.OutOrStdout(), fmt.Sprintf("%s %s @%s", qType, name, apiAddr), result)

	return nil
}

func printQueryResult(w io.Writer, title string, result api.QueryResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"return code", result.ReturnCode})
	t.AppendRow(table.Row{"flags", result.Flags})

	if result.ExtendedError != "" {
		t.AppendRow(table.Row{"extended error", result.ExtendedError})
	}

	t.AppendSeparator()

	for _, answer := range result.Answer {
		t.AppendRow(table.Row{"answer", answer})
	}

	t.Render()
}

// netDialer sends queries to servers outside of a test bed network
type netDialer struct {
	net.Dialer
}

func (d *netDialer) Dial(ctx context.Context, transport config.Transport, dst netip.AddrPort) (net.Conn, error) {
	return d.DialContext(ctx, transport.String(), dst.String())
}
