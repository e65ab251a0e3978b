// probeagent runs next to a debug probe and exports it through a probelink
// bridge: it dials the bridge's main port and relays between the bridge and
// the local debug server, redialing after every session so the probe is
// reachable again as soon as the debugger detaches.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"time"
)

func main() {
	var bridgeAddr string
	var target string
	var retry time.Duration
	var once bool
	flag.StringVar(&bridgeAddr, "bridge", "127.0.0.1:3333", "bridge main address to dial")
	flag.StringVar(&target, "target", "127.0.0.1:2331", "local debug server address")
	flag.DurationVar(&retry, "retry", 2*time.Second, "delay before redialing the bridge")
	flag.BoolVar(&once, "once", false, "serve a single session and exit")
	flag.Parse()

	log.Printf("probeagent starting bridge=%s target=%s", bridgeAddr, target)
	for {
		if err := runOnce(bridgeAddr, target); err != nil {
			log.Printf("session ended: %v", err)
		} else {
			log.Printf("session closed")
		}
		if once {
			return
		}
		time.Sleep(retry)
		log.Printf("reconnecting...")
	}
}

// runOnce holds the bridge's main slot through one debug session. The local
// target is dialed lazily on the first bytes from the bridge: the agent must
// not send anything upstream before a debugger is attached, and those first
// bytes are the only reliable sign that one is.
func runOnce(bridgeAddr, target string) error {
	bc, err := net.Dial("tcp", bridgeAddr)
	if err != nil {
		return err
	}
	defer bc.Close()
	log.Printf("connected to bridge, waiting for a debugger")

	buf := make([]byte, 32*1024)
	n, err := bc.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("bridge closed while waiting")
		}
		return err
	}

	local, err := net.Dial("tcp", target)
	if err != nil {
		return fmt.Errorf("dial target: %w", err)
	}
	defer local.Close()
	log.Printf("debugger attached, relaying to %s", target)

	if _, err := local.Write(buf[:n]); err != nil {
		return fmt.Errorf("write target: %w", err)
	}

	done := make(chan error, 2)
	go pipe(local, bc, done)
	go pipe(bc, local, done)
	return <-done
}

// pipe copies src into dst until either side fails, then closes both so the
// sibling pipe unwinds too.
func pipe(dst, src net.Conn, done chan<- error) {
	_, err := io.Copy(dst, src)
	_ = dst.Close()
	_ = src.Close()
	done <- err
}
