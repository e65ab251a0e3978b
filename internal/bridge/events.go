package bridge

import "time"

// Side identifies which half of a pairing triggered a state change.
type Side string

const (
	SideMain   Side = "main"
	SideClient Side = "client"
	// SideBridge marks teardowns initiated by the bridge itself (shutdown).
	SideBridge Side = "bridge"
)

// Stable reason tokens, shared by log events and metric labels.
const (
	ReasonOccupied      = "already_connected"
	ReasonMainAbsent    = "main_not_connected"
	ReasonRateLimited   = "rate_limited"
	ReasonPeerClosed    = "peer_closed"
	ReasonReadError     = "read_error"
	ReasonWriteError    = "write_error"
	ReasonPrematureData = "premature_data"
	ReasonShutdown      = "shutdown"
)

// SessionEnd summarizes one cascade teardown: both connections closed, both
// roles cleared, regardless of which side failed or why.
type SessionEnd struct {
	Trigger    Side
	Reason     string
	MainAddr   string
	ClientAddr string // empty when no client was ever paired
	Bridged    bool   // whether the relay ever ran
	Duration   time.Duration
	ToClient   int64 // bytes relayed main -> client
	ToMain     int64 // bytes relayed client -> main
}

// Events receives the discrete named events the bridge emits. Occupancy
// events (connected, bridged, ended) are emitted with the pairing lock held,
// in exactly the order the transitions happened; implementations must be
// safe for concurrent use, return promptly, and never call back into the
// Bridge.
type Events interface {
	MainConnected(addr string)
	MainRejected(reason string)
	ClientConnected(addr string)
	ClientRejected(reason string)
	SessionBridged(mainAddr, clientAddr string)
	SessionEnded(end SessionEnd)
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) MainConnected(string)          {}
func (NopEvents) MainRejected(string)           {}
func (NopEvents) ClientConnected(string)        {}
func (NopEvents) ClientRejected(string)         {}
func (NopEvents) SessionBridged(string, string) {}
func (NopEvents) SessionEnded(SessionEnd)       {}
