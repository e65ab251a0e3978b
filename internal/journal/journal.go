// Package journal keeps a rolling history of finished bridge sessions for
// the status endpoints. The default backend is an in-memory ring; pointing
// it at Redis makes the history survive bridge restarts.
package journal

import (
	"sync"
	"time"

	"github.com/probelink/probelink/internal/obs"
)

// DefaultKeep is how many finished sessions are retained.
const DefaultKeep = 100

// Record is one finished session, as exposed on /api/sessions.
type Record struct {
	StartedAt       *time.Time `json:"started_at,omitempty"` // nil when the pair never bridged
	EndedAt         time.Time  `json:"ended_at"`
	MainAddr        string     `json:"main_addr,omitempty"`
	ClientAddr      string     `json:"client_addr,omitempty"`
	Trigger         string     `json:"trigger"`
	Reason          string     `json:"reason"`
	Bridged         bool       `json:"bridged"`
	DurationSeconds float64    `json:"duration_seconds"`
	BytesToClient   int64      `json:"bytes_to_client"`
	BytesToMain     int64      `json:"bytes_to_main"`
}

// Store persists recent session records, newest first.
type Store interface {
	Append(rec Record) error
	Recent(n int) ([]Record, error)
	Close() error
}

// Options selects and configures the journal backend.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Keep          int
}

// Open creates either an in-memory or Redis-backed journal based on
// configuration.
func Open(opts Options) (Store, error) {
	if opts.Keep < 1 {
		opts.Keep = DefaultKeep
	}
	if opts.RedisAddr == "" {
		obs.Info("journal.backend", obs.Fields{"type": "in-memory", "keep": opts.Keep})
		return NewMemory(opts.Keep), nil
	}
	obs.Info("journal.backend", obs.Fields{"type": "redis", "addr": opts.RedisAddr, "keep": opts.Keep})
	return newRedisStore(opts)
}

type memoryStore struct {
	mu   sync.Mutex
	keep int
	recs []Record
}

var _ Store = (*memoryStore)(nil)

// NewMemory creates a ring store retaining the keep most recent records.
func NewMemory(keep int) Store {
	if keep < 1 {
		keep = 1
	}
	return &memoryStore{keep: keep}
}

func (m *memoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	if len(m.recs) > m.keep {
		m.recs = m.recs[len(m.recs)-m.keep:]
	}
	return nil
}

func (m *memoryStore) Recent(n int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.recs) {
		n = len(m.recs)
	}
	out := make([]Record, 0, n)
	for i := len(m.recs) - 1; i >= len(m.recs)-n; i-- {
		out = append(out, m.recs[i])
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }
