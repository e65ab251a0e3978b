package bridge

import (
	"context"
	"errors"
	"net"

	"github.com/probelink/probelink/internal/obs"
)

func (b *Bridge) acceptMain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := b.mainLn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				obs.Error("accept.main.temp", obs.Fields{"err": err.Error()})
				continue
			}
			obs.Error("accept.main", obs.Fields{"err": err.Error()})
			return
		}
		b.handleMain(c)
	}
}

func (b *Bridge) acceptClient(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := b.clientLn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				obs.Error("accept.client.temp", obs.Fields{"err": err.Error()})
				continue
			}
			obs.Error("accept.client", obs.Fields{"err": err.Error()})
			return
		}
		b.handleClient(c)
	}
}

// handleMain admits or rejects a connection on the main port. Admission is a
// few lock-guarded field writes, so it runs inline on the accept goroutine.
// It serializes with the shutdown sweep on the session mutex: a connection
// the accept call returned just before the listener closed is refused here
// rather than adopted into a swept session.
func (b *Bridge) handleMain(c net.Conn) {
	if b.mainGate != nil && !b.mainGate.Allow() {
		_ = c.Close()
		b.events.MainRejected(ReasonRateLimited)
		return
	}
	tuneConn(c)
	if err := b.session.adoptMain(newEndpoint(c)); err != nil {
		_ = c.Close()
		reason := ReasonOccupied
		if errors.Is(err, ErrBridgeClosed) {
			reason = ReasonShutdown
		}
		b.events.MainRejected(reason)
	}
}

// handleClient admits or rejects a connection on the client port. Clients
// are only admitted while a main occupant exists.
func (b *Bridge) handleClient(c net.Conn) {
	if b.clientGate != nil && !b.clientGate.Allow() {
		_ = c.Close()
		b.events.ClientRejected(ReasonRateLimited)
		return
	}
	tuneConn(c)
	if err := b.session.adoptClient(newEndpoint(c)); err != nil {
		_ = c.Close()
		reason := ReasonOccupied
		switch {
		case errors.Is(err, ErrMainAbsent):
			reason = ReasonMainAbsent
		case errors.Is(err, ErrBridgeClosed):
			reason = ReasonShutdown
		}
		b.events.ClientRejected(reason)
	}
}

// tuneConn disables Nagle batching; debugger traffic is dominated by tiny
// request/response packets where coalescing only adds latency.
func tuneConn(c net.Conn) {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
}
