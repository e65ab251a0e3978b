// Package bridge pairs exactly one debug probe with exactly one debugger
// over TCP and relays bytes between them unmodified. The probe side ("main")
// dials out from behind its NAT and must be connected before the debugger
// side ("client") is admitted; losing either half tears the whole pairing
// down, after which the bridge is immediately ready for the next pair.
package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/probelink/probelink/internal/obs"
	"github.com/probelink/probelink/internal/ratelimit"
)

const (
	DefaultMainAddr   = ":3333"
	DefaultClientAddr = ":2331"
)

// Config carries the listen addresses and accept throttling knobs.
type Config struct {
	MainAddr   string
	ClientAddr string
	// AcceptRate caps accepted connections per second on each port, with
	// AcceptBurst headroom. Zero disables throttling.
	AcceptRate  int
	AcceptBurst int
}

// Bridge owns the two listeners and the single pairing they feed.
type Bridge struct {
	events     Events
	session    *session
	mainLn     net.Listener
	clientLn   net.Listener
	mainGate   *ratelimit.TokenBucket
	clientGate *ratelimit.TokenBucket
	ready      atomic.Bool
}

// New binds both listen ports. Binding happens here rather than in Run so
// callers learn about an occupied port before anything is spawned, and so
// the kernel queues early arrivals until Run starts accepting.
func New(cfg Config, events Events) (*Bridge, error) {
	if events == nil {
		events = NopEvents{}
	}
	if cfg.MainAddr == "" {
		cfg.MainAddr = DefaultMainAddr
	}
	if cfg.ClientAddr == "" {
		cfg.ClientAddr = DefaultClientAddr
	}
	mainLn, err := net.Listen("tcp", cfg.MainAddr)
	if err != nil {
		return nil, fmt.Errorf("listen main %s: %w", cfg.MainAddr, err)
	}
	clientLn, err := net.Listen("tcp", cfg.ClientAddr)
	if err != nil {
		_ = mainLn.Close()
		return nil, fmt.Errorf("listen client %s: %w", cfg.ClientAddr, err)
	}
	b := &Bridge{
		events:   events,
		session:  newSession(events),
		mainLn:   mainLn,
		clientLn: clientLn,
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = cfg.AcceptRate
		}
		b.mainGate = ratelimit.NewTokenBucket(cfg.AcceptRate, burst)
		b.clientGate = ratelimit.NewTokenBucket(cfg.AcceptRate, burst)
	}
	return b, nil
}

// MainAddr reports the bound main listen address.
func (b *Bridge) MainAddr() string { return b.mainLn.Addr().String() }

// ClientAddr reports the bound client listen address.
func (b *Bridge) ClientAddr() string { return b.clientLn.Addr().String() }

// Ready reports whether the bridge is accepting connections.
func (b *Bridge) Ready() bool { return b.ready.Load() }

// Status snapshots the pairing state for the status endpoints.
func (b *Bridge) Status() Status { return b.session.status() }

// Run accepts and relays until ctx is canceled, then closes the listeners,
// tears down any live pairing and waits for its goroutines to drain. It
// serves an unlimited succession of pairings; it never dials anything back.
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		b.acceptMain(ctx)
	}()
	go func() {
		defer wg.Done()
		b.acceptClient(ctx)
	}()
	go func() {
		defer wg.Done()
		b.relayLoop(ctx)
	}()
	b.ready.Store(true)
	<-ctx.Done()
	obs.Info("bridge.shutdown.signal", obs.Fields{})
	b.ready.Store(false)
	_ = b.mainLn.Close()
	_ = b.clientLn.Close()
	b.session.shutdown(SideBridge, ReasonShutdown)
	wg.Wait()
	return nil
}
