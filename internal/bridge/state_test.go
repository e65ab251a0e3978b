package bridge

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

func TestSessionAdoptOrder(t *testing.T) {
	s := newSession(NopEvents{})

	_, cConn := net.Pipe()
	defer cConn.Close()
	if err := s.adoptClient(newEndpoint(cConn)); !errors.Is(err, ErrMainAbsent) {
		t.Fatalf("Expected ErrMainAbsent for client without main, got %v", err)
	}

	_, mConn := net.Pipe()
	defer mConn.Close()
	if err := s.adoptMain(newEndpoint(mConn)); err != nil {
		t.Fatalf("adoptMain failed: %v", err)
	}

	_, mConn2 := net.Pipe()
	defer mConn2.Close()
	if err := s.adoptMain(newEndpoint(mConn2)); !errors.Is(err, ErrRoleOccupied) {
		t.Fatalf("Expected ErrRoleOccupied for second main, got %v", err)
	}

	if err := s.adoptClient(newEndpoint(cConn)); err != nil {
		t.Fatalf("adoptClient failed: %v", err)
	}

	_, cConn2 := net.Pipe()
	defer cConn2.Close()
	if err := s.adoptClient(newEndpoint(cConn2)); !errors.Is(err, ErrRoleOccupied) {
		t.Fatalf("Expected ErrRoleOccupied for second client, got %v", err)
	}
}

func TestSessionEndClearsBothRoles(t *testing.T) {
	s := newSession(NopEvents{})

	mPeer, mConn := net.Pipe()
	cPeer, cConn := net.Pipe()
	defer mPeer.Close()
	defer cPeer.Close()
	if err := s.adoptMain(newEndpoint(mConn)); err != nil {
		t.Fatalf("adoptMain failed: %v", err)
	}
	if err := s.adoptClient(newEndpoint(cConn)); err != nil {
		t.Fatalf("adoptClient failed: %v", err)
	}

	if !s.end(SideClient, ReasonPeerClosed) {
		t.Fatal("Expected end to tear down an occupied session")
	}
	main, client := s.pair()
	if main != nil || client != nil {
		t.Error("Expected both roles cleared after end")
	}
	if s.end(SideClient, ReasonPeerClosed) {
		t.Error("Expected second end to be a no-op")
	}

	buf := make([]byte, 1)
	_ = mPeer.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := mPeer.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Expected main connection closed, got %v", err)
	}
	_ = cPeer.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := cPeer.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Expected client connection closed, got %v", err)
	}
}

func TestSessionEndForIgnoresStaleEndpoint(t *testing.T) {
	s := newSession(NopEvents{})

	_, mConn := net.Pipe()
	old := newEndpoint(mConn)
	if err := s.adoptMain(old); err != nil {
		t.Fatalf("adoptMain failed: %v", err)
	}
	s.end(SideMain, ReasonPeerClosed)

	_, mConn2 := net.Pipe()
	defer mConn2.Close()
	if err := s.adoptMain(newEndpoint(mConn2)); err != nil {
		t.Fatalf("adoptMain failed: %v", err)
	}

	if s.endFor(old, SideMain, ReasonReadError) {
		t.Error("Expected stale endFor to be ignored")
	}
	main, _ := s.pair()
	if main == nil {
		t.Error("Expected successor main to survive a stale teardown")
	}
}

func TestSessionPhases(t *testing.T) {
	s := newSession(NopEvents{})

	if st := s.status(); st.Phase != PhaseIdle {
		t.Fatalf("Expected idle phase, got %s", st.Phase)
	}

	_, mConn := net.Pipe()
	defer mConn.Close()
	_ = s.adoptMain(newEndpoint(mConn))
	st := s.status()
	if st.Phase != PhaseWaitingClient {
		t.Fatalf("Expected waiting_client phase, got %s", st.Phase)
	}
	if st.MainConnectedAt == nil {
		t.Error("Expected main connection time to be recorded")
	}

	_, cConn := net.Pipe()
	defer cConn.Close()
	_ = s.adoptClient(newEndpoint(cConn))
	if st := s.status(); st.Phase != PhaseBridged {
		t.Fatalf("Expected bridged phase, got %s", st.Phase)
	}

	s.end(SideBridge, ReasonShutdown)
	if st := s.status(); st.Phase != PhaseIdle {
		t.Fatalf("Expected idle phase after end, got %s", st.Phase)
	}
}

func TestSessionWakeOnAdopt(t *testing.T) {
	s := newSession(NopEvents{})

	_, mConn := net.Pipe()
	defer mConn.Close()
	_ = s.adoptMain(newEndpoint(mConn))

	select {
	case <-s.wake:
	default:
		t.Error("Expected a wake signal after adoptMain")
	}
}

func TestSessionShutdownRefusesAdoption(t *testing.T) {
	s := newSession(NopEvents{})

	_, mConn := net.Pipe()
	_ = s.adoptMain(newEndpoint(mConn))
	if !s.shutdown(SideBridge, ReasonShutdown) {
		t.Fatal("Expected shutdown to tear down the occupant")
	}

	_, mConn2 := net.Pipe()
	defer mConn2.Close()
	if err := s.adoptMain(newEndpoint(mConn2)); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Expected ErrBridgeClosed for a main after shutdown, got %v", err)
	}
	_, cConn := net.Pipe()
	defer cConn.Close()
	if err := s.adoptClient(newEndpoint(cConn)); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Expected ErrBridgeClosed for a client after shutdown, got %v", err)
	}
	if st := s.status(); st.Phase != PhaseIdle {
		t.Errorf("Expected idle phase after shutdown, got %s", st.Phase)
	}
}

// seqEvents records the order occupancy events were emitted in.
type seqEvents struct {
	mu  sync.Mutex
	seq []string
}

func (e *seqEvents) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq = append(e.seq, name)
}

func (e *seqEvents) events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seq...)
}

func (e *seqEvents) MainConnected(string)          { e.add("main-connected") }
func (e *seqEvents) MainRejected(string)           { e.add("main-rejected") }
func (e *seqEvents) ClientConnected(string)        { e.add("client-connected") }
func (e *seqEvents) ClientRejected(string)         { e.add("client-rejected") }
func (e *seqEvents) SessionBridged(string, string) { e.add("bridged") }
func (e *seqEvents) SessionEnded(SessionEnd)       { e.add("ended") }

// Connect and end events must interleave exactly as the occupancy changes
// did, even when adoption and teardown race from different goroutines; an
// event sink keeping a connected gauge relies on that order.
func TestSessionEventOrderMatchesTransitions(t *testing.T) {
	rec := &seqEvents{}
	s := newSession(rec)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.end(SideMain, ReasonPeerClosed)
			}
		}
	}()

	for adopted := 0; adopted < 100; {
		_, c := net.Pipe()
		if err := s.adoptMain(newEndpoint(c)); err != nil {
			_ = c.Close()
			continue
		}
		adopted++
	}
	close(done)
	wg.Wait()
	s.end(SideMain, ReasonPeerClosed)

	occupied := false
	for i, ev := range rec.events() {
		switch ev {
		case "main-connected":
			if occupied {
				t.Fatalf("Expected idle before connect event %d", i)
			}
			occupied = true
		case "ended":
			if !occupied {
				t.Fatalf("Expected an occupant before end event %d", i)
			}
			occupied = false
		}
	}
}

func TestSessionCountersResetOnNewMain(t *testing.T) {
	s := newSession(NopEvents{})

	_, mConn := net.Pipe()
	_ = s.adoptMain(newEndpoint(mConn))
	s.toClient.Add(10)
	s.toMain.Add(20)
	s.end(SideMain, ReasonPeerClosed)

	_, mConn2 := net.Pipe()
	defer mConn2.Close()
	_ = s.adoptMain(newEndpoint(mConn2))
	if n := s.toClient.Load(); n != 0 {
		t.Errorf("Expected to-client counter reset for a new main, got %d", n)
	}
	if n := s.toMain.Load(); n != 0 {
		t.Errorf("Expected to-main counter reset for a new main, got %d", n)
	}
}
