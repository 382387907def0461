package capture

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/0xERR0R/dnstestbed/config"
	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/log"
	"github.com/0xERR0R/dnstestbed/network"
	"github.com/0xERR0R/dnstestbed/node"
	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const observerLoggerPrefix = "capture"

var (
	// ErrTimeout is returned by WaitUntil if the predicate was not satisfied in time
	ErrTimeout = errors.New("timeout waiting for captures")

	// ErrNotAttached is returned when the observed address is not part of the network
	ErrNotAttached = errors.New("address is not part of the network")
)

// Option customizes an observer
type Option func(*Observer)

// WithConfig replaces the default poll interval and wait timeout
func WithConfig(cfg config.Capture) Option {
	return func(o *Observer) {
		o.cfg = cfg
	}
}

// Observer records every DNS message sent or received by one address
type Observer struct {
	id     string
	addr   netip.Addr
	cfg    config.Capture
	logger *logrus.Entry
	sub    *network.Subscription

	mu         sync.RWMutex
	captures   []Capture
	undecoded  int
	terminated bool
}

// Attach starts recording the traffic of addr
func Attach(nw *network.Network, addr netip.Addr, opts ...Option) (*Observer, error) {
	addr = addr.Unmap()

	if !nw.Prefix().Contains(addr) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrNotAttached, addr, nw.Prefix())
	}

	o := &Observer{
		id:     uuid.NewString(),
		addr:   addr,
		logger: log.NodeLog(observerLoggerPrefix, addr),
	}

	if err := defaults.Set(&o.cfg); err != nil {
		return nil, fmt.Errorf("can't apply capture defaults: %w", err)
	}

	for _, opt := range opts {
		opt(o)
	}

	o.sub = nw.Subscribe(addr, o.record)

	o.logger.WithField("session", o.id).Debug("capture started")

	return o, nil
}

// Eavesdrop starts recording the traffic of n
func Eavesdrop(nw *network.Network, n node.Node, opts ...Option) (*Observer, error) {
	return Attach(nw, n.Addr(), opts...)
}

// Scoped attaches an observer to addr for the duration of fn. The observer is terminated
// on every return path of fn.
func Scoped(nw *network.Network, addr netip.Addr, fn func(*Observer) error, opts ...Option) (err error) {
	o, err := Attach(nw, addr, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if terr := o.Terminate(); terr != nil {
			err = multierror.Append(err, terr).ErrorOrNil()
		}
	}()

	return fn(o)
}

// ID returns the session id of the observer
func (o *Observer) ID() string {
	return o.id
}

// Addr returns the observed address
func (o *Observer) Addr() netip.Addr {
	return o.addr
}

func (o *Observer) record(p network.Packet) {
	msg := new(dns.Msg)
	if err := msg.Unpack(p.Payload); err != nil {
		o.mu.Lock()
		o.undecoded++
		o.mu.Unlock()

		o.logger.WithError(err).Tracef("can't decode packet %s", p)

		return
	}

	c := Capture{
		Time:      p.Time,
		Transport: p.Transport,
		Direction: o.directionOf(p),
		Message:   NewMessage(msg),
	}

	o.mu.Lock()

	if o.terminated {
		o.mu.Unlock()

		return
	}

	o.insert(c)
	o.mu.Unlock()

	if o.logger.Logger.IsLevelEnabled(logrus.TraceLevel) {
		o.logger.Trace(c)
	}

	evt.Bus().Publish(evt.CaptureRecorded, o.addr.String(), c.Direction.Kind.String())
}

// insert keeps the captures ordered by time. Packets are stamped by the socket goroutines
// before the lock is taken, so a later stamp may arrive first.
func (o *Observer) insert(c Capture) {
	i := len(o.captures)
	for i > 0 && o.captures[i-1].Time.After(c.Time) {
		i--
	}

	o.captures = slices.Insert(o.captures, i, c)
}

func (o *Observer) directionOf(p network.Packet) Direction {
	if p.Src.Addr().Unmap() == o.addr {
		return Outgoing(p.Dst)
	}

	return Incoming(p.Src)
}

// Captures returns a snapshot of the captures recorded so far ordered by time
func (o *Observer) Captures() []Capture {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]Capture, len(o.captures))
	copy(result, o.captures)

	return result
}

// Undecoded returns the number of packets that were no valid DNS message
func (o *Observer) Undecoded() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.undecoded
}

// WaitUntil evaluates predicate over the snapshot of all captures, immediately and then on
// every poll interval, until it is satisfied or timeout elapsed. A timeout of zero
// uses the configured default.
func (o *Observer) WaitUntil(predicate Predicate, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = o.cfg.DefaultTimeout.ToDuration()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if predicate(o.Captures()) {
		return nil
	}

	ticker := time.NewTicker(o.cfg.PollInterval.ToDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			captures := o.Captures()

			o.logger.Debugf("wait timed out after %s with %d captures", timeout, len(captures))

			return fmt.Errorf("%w after %s (%d captures of %s)", ErrTimeout, timeout, len(captures), o.addr)
		case <-ticker.C:
			if predicate(o.Captures()) {
				return nil
			}
		}
	}
}

// Terminate stops recording. Captures stay readable. Subsequent calls have no effect.
func (o *Observer) Terminate() error {
	o.mu.Lock()

	if o.terminated {
		o.mu.Unlock()

		return nil
	}

	o.terminated = true
	o.mu.Unlock()

	o.sub.Cancel()

	o.logger.WithField("session", o.id).Debugf("capture terminated with %d captures", len(o.Captures()))

	return nil
}

func (o *Observer) String() string {
	return fmt.Sprintf("observer %s of %s", o.id, o.addr)
}
