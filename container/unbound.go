package container

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/0xERR0R/dnstestbed/client"
	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/model"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/0xERR0R/dnstestbed/signer"
	"github.com/0xERR0R/dnstestbed/util"
	"github.com/avast/retry-go/v4"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
)

const (
	unboundLoggerPrefix = "unbound"
	unboundConfigPath   = "/opt/unbound/etc/unbound/unbound.conf"
	unboundRootHints    = "/opt/unbound/etc/unbound/root.hints"

	// unbound sends every query to port 53, referrals carry no port
	unboundPort = 53

	readinessDelay = 500 * time.Millisecond
	modeReadable   = 0o644
)

// ErrPortUnsupported is returned for networks not serving DNS on port 53
var ErrPortUnsupported = fmt.Errorf("unbound requires the network port %d", unboundPort)

//go:embed unbound.conf.tmpl
var unboundConfigTemplate string

var unboundConfig = template.Must(template.New("unbound.conf").Parse(unboundConfigTemplate))

type unboundSettings struct {
	Addr          netip.Addr
	Port          uint16
	Verbosity     uint
	RootHintsPath string
	TrustAnchors  []string
}

// Option customizes the unbound resolver
type Option func(*Unbound)

// WithTrustAnchor enables DNSSEC validation with the anchor
func WithTrustAnchor(anchor *signer.TrustAnchor) Option {
	return func(u *Unbound) {
		u.trustAnchor = anchor
	}
}

// Unbound is an unbound resolver running in a container on the host network. It binds to an
// external address of the network, so its traffic is observed from the taps of its peers.
type Unbound struct {
	ep          *network.Endpoint
	cfg         config.Container
	root        model.RootHint
	trustAnchor *signer.TrustAnchor
	logger      *logrus.Entry
	container   testcontainers.Container

	mu      sync.Mutex
	stopped bool
}

// NewUnbound starts an unbound container resolving from root and waits until it answers queries
func NewUnbound(ctx context.Context, nw *network.Network, root model.RootHint, cfg config.Container,
	opts ...Option,
) (*Unbound, error) {
	if nw.Port() != unboundPort {
		return nil, fmt.Errorf("%w, got %d", ErrPortUnsupported, nw.Port())
	}

	ep, err := nw.AllocateExternal()
	if err != nil {
		return nil, err
	}

	u := &Unbound{
		ep:     ep,
		cfg:    cfg,
		root:   root,
		logger: log.NodeLog(unboundLoggerPrefix, ep.Addr()),
	}

	for _, opt := range opts {
		opt(u)
	}

	if err := u.start(ctx); err != nil {
		u.attachLogs()

		if stopErr := u.Stop(); stopErr != nil {
			u.logger.WithError(stopErr).Warn("can't stop failed container")
		}

		return nil, err
	}

	node.PublishStarted(u)

	return u, nil
}

func (u *Unbound) start(ctx context.Context) error {
	conf, err := u.renderConfig()
	if err != nil {
		return err
	}

	req := testcontainers.ContainerRequest{
		Image: u.cfg.UnboundImage,
		Files: []testcontainers.ContainerFile{
			{
				Reader:            strings.NewReader(conf),
				ContainerFilePath: unboundConfigPath,
				FileMode:          modeReadable,
			},
			{
				Reader:            strings.NewReader(rootHints(u.root)),
				ContainerFilePath: unboundRootHints,
				FileMode:          modeReadable,
			},
		},
		HostConfigModifier: func(hc *dockercontainer.HostConfig) {
			hc.NetworkMode = "host"
		},
	}

	u.logger.Debugf("starting %s (validating: %t)", u.cfg.UnboundImage, u.Validates())

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})

	u.container = c

	if err != nil {
		return fmt.Errorf("can't start unbound container: %w", err)
	}

	return u.waitReady(ctx)
}

func (u *Unbound) renderConfig() (string, error) {
	settings := unboundSettings{
		Addr:          u.ep.Addr(),
		Port:          unboundPort,
		Verbosity:     u.cfg.Verbosity,
		RootHintsPath: unboundRootHints,
	}

	if u.trustAnchor != nil {
		for _, ds := range u.trustAnchor.DSStrings() {
			settings.TrustAnchors = append(settings.TrustAnchors, strings.Join(strings.Fields(ds), " "))
		}
	}

	var buf bytes.Buffer

	if err := unboundConfig.Execute(&buf, settings); err != nil {
		return "", fmt.Errorf("can't render unbound configuration: %w", err)
	}

	return buf.String(), nil
}

func rootHints(root model.RootHint) string {
	return fmt.Sprintf(". 3600000 IN NS %s\n%s 3600000 IN A %s\n", root.Name, root.Name, root.Addr)
}

// waitReady queries the resolver from an in-process address until it answers
func (u *Unbound) waitReady(ctx context.Context) error {
	ep, err := u.ep.Network().Allocate()
	if err != nil {
		return err
	}

	defer ep.Release()

	timeout := u.cfg.StartupTimeout.ToDuration()
	settings := client.Settings{Timeout: readinessDelay, Transport: config.TransportUdp}

	err = retry.Do(
		func() error {
			req := util.NewMsgWithQuestion(model.Root.String(), dns.Type(dns.TypeNS))

			_, err := client.ExchangeMsg(ctx, ep, settings, u.AddrPort(), req)

			return err
		},
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			u.logger.Debugf("waiting for unbound #%d: %s", n, err)
		}),
		retry.Attempts(uint(timeout/readinessDelay)+1),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(readinessDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("unbound not ready after %s: %w", timeout, err)
	}

	return nil
}

// attachLogs copies the container output to the log
func (u *Unbound) attachLogs() {
	lines, err := u.Logs(context.Background())
	if err != nil {
		return
	}

	for _, line := range lines {
		u.logger.Debug(line)
	}
}

// Logs returns the non-empty output lines of the container
func (u *Unbound) Logs(ctx context.Context) ([]string, error) {
	if u.container == nil {
		return nil, errors.New("container was not created")
	}

	r, err := u.container.Logs(ctx)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, scanner.Err()
}

// Role implements node.Node
func (u *Unbound) Role() node.Role {
	return node.RoleResolver
}

// Addr implements node.Node
func (u *Unbound) Addr() netip.Addr {
	return u.ep.Addr()
}

// AddrPort returns the address the resolver answers on
func (u *Unbound) AddrPort() netip.AddrPort {
	return u.ep.AddrPort()
}

// Validates implements node.Validating
func (u *Unbound) Validates() bool {
	return u.trustAnchor != nil
}

// TrustAnchor returns the anchor the resolver was configured with
func (u *Unbound) TrustAnchor() (*signer.TrustAnchor, bool) {
	return u.trustAnchor, u.trustAnchor != nil
}

// Stop terminates the container and releases the address
func (u *Unbound) Stop() error {
	u.mu.Lock()

	if u.stopped {
		u.mu.Unlock()

		return nil
	}

	u.stopped = true
	u.mu.Unlock()

	defer u.ep.Release()

	if u.container == nil {
		return nil
	}

	if err := u.container.Terminate(context.Background()); err != nil {
		return fmt.Errorf("can't terminate unbound container: %w", err)
	}

	node.PublishStopped(u)

	return nil
}

func (u *Unbound) String() string {
	return fmt.Sprintf("unbound %s", u.Addr())
}
