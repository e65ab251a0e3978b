package bridge

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrRoleOccupied rejects a second connection for a role that already
	// has an occupant.
	ErrRoleOccupied = errors.New("role already connected")
	// ErrMainAbsent rejects a client arriving before any main connection.
	ErrMainAbsent = errors.New("main not connected")
	// ErrBridgeClosed rejects adoptions once the shutdown sweep has run.
	ErrBridgeClosed = errors.New("bridge shutting down")
)

// endpoint is an accepted connection plus its resolved peer address. The
// accepting listener owns it until it is either rejected (closed on the
// spot) or handed to the session record.
type endpoint struct {
	conn net.Conn
	addr string
}

func newEndpoint(c net.Conn) *endpoint {
	return &endpoint{conn: c, addr: c.RemoteAddr().String()}
}

// Phase is the observable pairing state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseWaitingClient Phase = "waiting_client"
	PhaseBridged       Phase = "bridged"
)

// Status is a point-in-time snapshot of the pairing state.
type Status struct {
	Phase           Phase      `json:"phase"`
	MainAddr        string     `json:"main_addr,omitempty"`
	ClientAddr      string     `json:"client_addr,omitempty"`
	MainConnectedAt *time.Time `json:"main_connected_at,omitempty"`
	BridgedAt       *time.Time `json:"bridged_at,omitempty"`
	BytesToClient   int64      `json:"bytes_to_client"`
	BytesToMain     int64      `json:"bytes_to_main"`
}

// session is the single shared record of role occupancy. Both handles are
// read and written only under mu, and the cascade clear is one critical
// section, so no observer can ever see a client without a main or a
// half-cleared pairing. Occupancy events are emitted while mu is held, so
// the event stream always matches the order the transitions happened in.
type session struct {
	events Events

	mu        sync.Mutex
	main      *endpoint
	client    *endpoint
	mainAt    time.Time
	bridgedAt time.Time // zero until the relay takes over
	closing   bool      // set by the shutdown sweep; no adoption may follow

	toClient atomic.Int64
	toMain   atomic.Int64

	// wake is signaled on every occupancy change; the relay loop drains it
	// and re-reads the pair, so a buffered single slot cannot lose a wakeup.
	wake chan struct{}
}

func newSession(events Events) *session {
	return &session{events: events, wake: make(chan struct{}, 1)}
}

func (s *session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// adoptMain installs ep as the main occupant. On error the caller keeps
// ownership and must close the connection.
func (s *session) adoptMain(ep *endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrBridgeClosed
	}
	if s.main != nil {
		return ErrRoleOccupied
	}
	s.main = ep
	s.mainAt = time.Now()
	s.bridgedAt = time.Time{}
	s.toClient.Store(0)
	s.toMain.Store(0)
	s.notify()
	s.events.MainConnected(ep.addr)
	return nil
}

// adoptClient installs ep as the client occupant. A client is only admitted
// while a main occupant exists, so the client role can never precede or
// outlive the main role. On success the guarded main read is kicked with an
// expired deadline so the relay observes the pairing without consuming bytes.
func (s *session) adoptClient(ep *endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrBridgeClosed
	}
	if s.main == nil {
		return ErrMainAbsent
	}
	if s.client != nil {
		return ErrRoleOccupied
	}
	s.client = ep
	_ = s.main.conn.SetReadDeadline(time.Now())
	s.notify()
	s.events.ClientConnected(ep.addr)
	return nil
}

// pair snapshots the current occupants.
func (s *session) pair() (main, client *endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main, s.client
}

// clientOrRearm reports the client occupant if one has been adopted.
// Otherwise it clears any pending read-deadline kick on main, under the same
// lock adoptClient takes, so a fresh kick can never be erased and the guard
// read can block again. main is nil when the pairing was torn down.
func (s *session) clientOrRearm() (client, main *endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, s.main
	}
	if s.main != nil {
		_ = s.main.conn.SetReadDeadline(time.Time{})
	}
	return nil, s.main
}

// markBridged records the relay taking custody of the pair. It fails when a
// teardown won the race, in which case the relay must not touch the handles.
func (s *session) markBridged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.main == nil || s.client == nil {
		return false
	}
	s.bridgedAt = time.Now()
	s.events.SessionBridged(s.main.addr, s.client.addr)
	return true
}

// end is the cascade teardown: it closes whichever handles are present and
// clears both roles together. The first caller for a given occupancy wins.
func (s *session) end(trigger Side, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(trigger, reason)
}

// endFor tears down only while ep is still one of the current occupants, so
// a goroutine servicing an already-ended pairing cannot clear a successor.
func (s *session) endFor(ep *endpoint, trigger Side, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep == nil || (s.main != ep && s.client != ep) {
		return false
	}
	return s.clearLocked(trigger, reason)
}

// shutdown refuses any further adoption, then tears down whatever occupancy
// remains. An accepted connection whose admission lands after the sweep is
// rejected at adoption instead of being smuggled into a swept session.
func (s *session) shutdown(trigger Side, reason string) bool {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	return s.end(trigger, reason)
}

// clearLocked closes whatever handles are present, clears both roles and
// emits the session summary, all inside the caller's critical section.
func (s *session) clearLocked(trigger Side, reason string) bool {
	if s.main == nil && s.client == nil {
		return false
	}
	end := SessionEnd{
		Trigger:  trigger,
		Reason:   reason,
		ToClient: s.toClient.Load(),
		ToMain:   s.toMain.Load(),
	}
	if s.main != nil {
		end.MainAddr = s.main.addr
		_ = s.main.conn.Close()
	}
	if s.client != nil {
		end.ClientAddr = s.client.addr
		_ = s.client.conn.Close()
	}
	if !s.bridgedAt.IsZero() {
		end.Bridged = true
		end.Duration = time.Since(s.bridgedAt)
	}
	s.main, s.client = nil, nil
	s.bridgedAt = time.Time{}
	s.notify()
	s.events.SessionEnded(end)
	return true
}

func (s *session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Phase:         PhaseIdle,
		BytesToClient: s.toClient.Load(),
		BytesToMain:   s.toMain.Load(),
	}
	if s.main != nil {
		st.Phase = PhaseWaitingClient
		st.MainAddr = s.main.addr
		at := s.mainAt
		st.MainConnectedAt = &at
	}
	if s.client != nil {
		st.Phase = PhaseBridged
		st.ClientAddr = s.client.addr
	}
	if !s.bridgedAt.IsZero() {
		at := s.bridgedAt
		st.BridgedAt = &at
	}
	return st
}
