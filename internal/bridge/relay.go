package bridge

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// relayChunkSize is the per-direction copy buffer. Debug transports move
// small commands and the occasional flash image; 32 KiB keeps large loads
// fast without hoarding memory across the idle stretches in between.
const relayChunkSize = 32 << 10

// relayLoop owns every blocking read on adopted connections. It sleeps until
// an occupancy change is signaled, then services the pairing until the state
// settles back to idle.
func (b *Bridge) relayLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.session.wake:
			b.drive()
		}
	}
}

func (b *Bridge) drive() {
	for {
		main, client := b.session.pair()
		switch {
		case main == nil:
			return
		case client == nil:
			b.guardMain(main)
		default:
			b.bridgePair(main, client, nil)
		}
	}
}

// guardMain blocks reading the main connection while no client is paired.
// The read catches both a main that disconnects during the wait and a main
// that talks before any client exists; a client adoption interrupts it by
// kicking the connection with an already-expired read deadline.
func (b *Bridge) guardMain(main *endpoint) {
	buf := make([]byte, 1)
	for {
		n, err := main.conn.Read(buf)
		client, cur := b.session.clientOrRearm()
		if cur != main {
			// torn down while the read was blocked
			return
		}
		if client != nil {
			// a client was adopted; anything the read produced belongs to
			// the session now
			var initial []byte
			if n > 0 {
				initial = append([]byte(nil), buf[:n]...)
			}
			if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
				b.session.endFor(main, SideMain, classifyRead(err))
				return
			}
			b.bridgePair(main, client, initial)
			return
		}
		if n > 0 {
			// data from main with no client connected violates the pairing
			// protocol
			b.session.endFor(main, SideMain, ReasonPrematureData)
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// stale kick; clientOrRearm cleared the deadline so the next
			// read blocks again
			continue
		}
		b.session.endFor(main, SideMain, classifyRead(err))
		return
	}
}

// bridgePair runs the duplex relay until either half fails, then waits for
// both pumps to unwind. Teardown itself happens inside the pumps so the
// roles clear the moment a failure is seen, not when the last pump exits.
func (b *Bridge) bridgePair(main, client *endpoint, initial []byte) {
	// the adoption kick may still be armed
	_ = main.conn.SetReadDeadline(time.Time{})

	if !b.session.markBridged() {
		return
	}

	if len(initial) > 0 {
		b.session.toClient.Add(int64(len(initial)))
		if _, err := client.conn.Write(initial); err != nil {
			b.session.endFor(client, SideClient, ReasonWriteError)
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.pump(main, client, SideMain, SideClient, &b.session.toClient)
	}()
	go func() {
		defer wg.Done()
		b.pump(client, main, SideClient, SideMain, &b.session.toMain)
	}()
	wg.Wait()
}

// pump copies src to dst chunk by chunk. The first failing half triggers the
// cascade, attributed to the side whose read or write actually failed; the
// teardown closes both connections, which unblocks the sibling pump.
//
// A chunk is counted before its write so a teardown racing the write can
// never emit a summary missing a delivered chunk; a failed final write may
// overstate its direction by at most that chunk, flagged by write_error.
func (b *Bridge) pump(src, dst *endpoint, srcSide, dstSide Side, count *atomic.Int64) {
	buf := make([]byte, relayChunkSize)
	for {
		n, err := src.conn.Read(buf)
		if n > 0 {
			count.Add(int64(n))
			if _, werr := dst.conn.Write(buf[:n]); werr != nil {
				b.session.endFor(dst, dstSide, ReasonWriteError)
				return
			}
		}
		if err != nil {
			b.session.endFor(src, srcSide, classifyRead(err))
			return
		}
	}
}

func classifyRead(err error) string {
	if errors.Is(err, io.EOF) {
		return ReasonPeerClosed
	}
	return ReasonReadError
}
