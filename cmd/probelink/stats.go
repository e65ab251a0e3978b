package main

import (
	"time"

	"github.com/probelink/probelink/internal/bridge"
	"github.com/probelink/probelink/internal/journal"
)

// Stats represents the current bridge state for dashboards & API.
type Stats struct {
	Phase           string     `json:"phase"`
	MainAddr        string     `json:"main_addr,omitempty"`
	ClientAddr      string     `json:"client_addr,omitempty"`
	MainConnectedAt *time.Time `json:"main_connected_at,omitempty"`
	BridgedAt       *time.Time `json:"bridged_at,omitempty"`
	BytesToClient   int64      `json:"bytes_to_client"`
	BytesToMain     int64      `json:"bytes_to_main"`
	MainListen      string     `json:"main_listen"`
	ClientListen    string     `json:"client_listen"`
	Now             string     `json:"now"`
}

func collectStats(b *bridge.Bridge) Stats {
	st := b.Status()
	return Stats{
		Phase:           string(st.Phase),
		MainAddr:        st.MainAddr,
		ClientAddr:      st.ClientAddr,
		MainConnectedAt: st.MainConnectedAt,
		BridgedAt:       st.BridgedAt,
		BytesToClient:   st.BytesToClient,
		BytesToMain:     st.BytesToMain,
		MainListen:      b.MainAddr(),
		ClientListen:    b.ClientAddr(),
		Now:             time.Now().UTC().Format(time.RFC3339),
	}
}

// ToTemplateMap returns a map suited for html/template rendering with
// capitalized keys.
func (s Stats) ToTemplateMap(recent []journal.Record) map[string]any {
	return map[string]any{
		"Phase":        s.Phase,
		"Main":         s.MainAddr,
		"Client":       s.ClientAddr,
		"MainListen":   s.MainListen,
		"ClientListen": s.ClientListen,
		"ToClient":     s.BytesToClient,
		"ToMain":       s.BytesToMain,
		"Sessions":     recent,
	}
}
