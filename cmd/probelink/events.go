package main

import (
	"time"

	"github.com/probelink/probelink/internal/bridge"
	"github.com/probelink/probelink/internal/journal"
	"github.com/probelink/probelink/internal/obs"
)

// eventSink fans bridge events out to structured logs, Prometheus metrics
// and the session journal.
type eventSink struct {
	journal journal.Store
}

var _ bridge.Events = (*eventSink)(nil)

func (e *eventSink) MainConnected(addr string) {
	obs.Info("main.connected", obs.Fields{"addr": addr})
	obs.RoleConnected.WithLabelValues("main").Set(1)
}

func (e *eventSink) MainRejected(reason string) {
	logReject("main.rejected", reason)
	obs.RejectsTotal.WithLabelValues("main", reason).Inc()
}

func (e *eventSink) ClientConnected(addr string) {
	obs.Info("client.connected", obs.Fields{"addr": addr})
	obs.RoleConnected.WithLabelValues("client").Set(1)
}

func (e *eventSink) ClientRejected(reason string) {
	logReject("client.rejected", reason)
	obs.RejectsTotal.WithLabelValues("client", reason).Inc()
}

// logReject demotes rate-limit rejects to debug; a reconnect storm would
// otherwise flood the log with one line per shed connection.
func logReject(event, reason string) {
	if reason == bridge.ReasonRateLimited {
		obs.Debug(event, obs.Fields{"reason": reason})
		return
	}
	obs.Info(event, obs.Fields{"reason": reason})
}

func (e *eventSink) SessionBridged(mainAddr, clientAddr string) {
	obs.Info("session.bridged", obs.Fields{"main": mainAddr, "client": clientAddr})
	obs.SessionsTotal.Inc()
}

func (e *eventSink) SessionEnded(end bridge.SessionEnd) {
	obs.Info("session.ended", obs.Fields{
		"trigger":   string(end.Trigger),
		"reason":    end.Reason,
		"main":      end.MainAddr,
		"client":    end.ClientAddr,
		"bridged":   end.Bridged,
		"duration":  end.Duration.Seconds(),
		"to_client": end.ToClient,
		"to_main":   end.ToMain,
	})
	obs.RoleConnected.WithLabelValues("main").Set(0)
	obs.RoleConnected.WithLabelValues("client").Set(0)
	obs.TeardownsTotal.WithLabelValues(string(end.Trigger)).Inc()
	obs.RelayBytesTotal.WithLabelValues("to_client").Add(float64(end.ToClient))
	obs.RelayBytesTotal.WithLabelValues("to_main").Add(float64(end.ToMain))
	if end.Bridged {
		obs.SessionDurationSeconds.Observe(end.Duration.Seconds())
	}
	if e.journal == nil {
		return
	}
	rec := journal.Record{
		EndedAt:         time.Now().UTC(),
		MainAddr:        end.MainAddr,
		ClientAddr:      end.ClientAddr,
		Trigger:         string(end.Trigger),
		Reason:          end.Reason,
		Bridged:         end.Bridged,
		DurationSeconds: end.Duration.Seconds(),
		BytesToClient:   end.ToClient,
		BytesToMain:     end.ToMain,
	}
	if end.Bridged {
		started := rec.EndedAt.Add(-end.Duration)
		rec.StartedAt = &started
	}
	// the journal may sit on Redis; appending off the event path keeps a
	// slow backend from delaying the next pairing
	go func() {
		if err := e.journal.Append(rec); err != nil {
			obs.Error("journal.append", obs.Fields{"err": err.Error()})
		}
	}()
}
