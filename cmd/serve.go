package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xERR0R/dnstestbed/api"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/conformance"
	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/graph"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/metrics"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/server"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals
var signals = make(chan os.Signal, 1)

func newServeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "build a delegation chain and serve it with a resolver (default command)",
		RunE:  startServer,
	}

	c.Flags().String("zone", model.TestDomain.String(), "leaf zone of the delegation chain")
	c.Flags().StringArrayP("record", "r", nil, "record of the leaf zone in presentation format")
	c.Flags().Bool("signed", false, "sign every zone, the resolver validates with the root trust anchor")
	c.Flags().Bool("unbound", false, "run unbound in a container as resolver (network port must be 53)")
	c.Flags().String("http", "", "listen address of the HTTP API, disabled if empty")

	return c
}

func startServer(cmd *cobra.Command, _ []string) error {
	printBanner()

	if cfg == nil {
		if err := initConfig(); err != nil {
			return err
		}
	}

	opts, err := serveOptions(cmd)
	if err != nil {
		return err
	}

	httpAddr, _ := cmd.Flags().GetString("http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.IsEnabled() {
		metrics.StartCollection()
	}

	bed, err := conformance.New(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("can't start test bed: %w", err)
	}

	tb := &testbed{bed}

	tb.printTopology(cmd.OutOrStdout())

	errChan := make(chan error, 1)

	if httpAddr != "" {
		l, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return multierror.Append(fmt.Errorf("can't listen on %s: %w", httpAddr, err), tb.Close())
		}

		srv := server.NewHTTPServer("api", createRouter(cfg.Metrics, tb))

		log.Log().Infof("serving %s on %s", srv, l.Addr())

		go func() {
			errChan <- srv.Serve(ctx, l)
		}()
	}

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	evt.Bus().Publish(evt.ApplicationStarted, version, buildTime)

	var result *multierror.Error

	select {
	case <-signals:
		log.Log().Infof("Terminating...")
	case err := <-errChan:
		result = multierror.Append(result, fmt.Errorf("http server failed: %w", err))
	}

	cancel()

	return multierror.Append(result, tb.Close()).ErrorOrNil()
}

func serveOptions(cmd *cobra.Command) (conformance.Options, error) {
	zoneFlag, _ := cmd.Flags().GetString("zone")
	records, _ := cmd.Flags().GetStringArray("record")
	signed, _ := cmd.Flags().GetBool("signed")
	unbound, _ := cmd.Flags().GetBool("unbound")

	zone, err := model.NewFQDN(zoneFlag)
	if err != nil {
		return conformance.Options{}, err
	}

	if zone.IsRoot() {
		return conformance.Options{}, fmt.Errorf("the zone under test can't be the root zone")
	}

	opts := conformance.Options{
		Zone:    zone,
		Records: records,
		Sign:    graph.Unsigned(),
	}

	if signed {
		opts.Sign = graph.Signed(cfg.Signing)
	}

	if unbound {
		opts.Resolver = conformance.ResolverUnbound
	}

	return opts, nil
}

func createRouter(metricsCfg config.Metrics, tb *testbed) *chi.Mux {
	router := chi.NewRouter()

	configureCorsHandler(router)

	router.Mount("/debug", middleware.Profiler())

	api.RegisterEndpoint(router, tb)

	if metricsCfg.IsEnabled() {
		router.Handle(metricsCfg.Path, metrics.Handler())
	}

	return router
}

func configureCorsHandler(router *chi.Mux) {
	crs := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	router.Use(crs.Handler)
}

func printBanner() {
	log.Log().Info("_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/")
	log.Log().Info("_/                                                              _/")
	log.Log().Info("_/    d n s t e s t b e d                                       _/")
	log.Log().Info("_/                                                              _/")
	log.Log().Infof("_/  Version: %-18s Build time: %-18s  _/", version, buildTime)
	log.Log().Info("_/                                                              _/")
	log.Log().Info("_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/")
}
