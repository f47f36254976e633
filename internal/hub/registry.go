package hub

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"wordloop/internal/metrics"
)

//go:generate mockgen -destination=mock_conn_test.go -package=hub . Conn

// Conn is one live bidirectional channel.
type Conn interface {
	ID() string
	Send(data []byte) error
	IsOpen() bool
	// Done is closed once the channel has closed or errored.
	Done() <-chan struct{}
	// Err reports why Done was closed.
	Err() error
	Close(code int, reason string) error
}

// Registry is the set of currently open connections.
type Registry struct {
	metrics *metrics.Metrics

	mu    sync.RWMutex
	conns map[Conn]chan struct{}
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		metrics: m,
		conns:   make(map[Conn]chan struct{}),
	}
}

// Register adds conn and watches it for close. It reports whether conn was
// newly added.
func (r *Registry) Register(conn Conn) bool {
	r.mu.Lock()
	if _, exists := r.conns[conn]; exists {
		r.mu.Unlock()
		return false
	}
	gone := make(chan struct{})
	r.conns[conn] = gone
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnectedClients.Set(float64(total))
	slog.Debug("Client registered", "client_id", conn.ID(), "total_clients", total)

	done := conn.Done()
	go func() {
		select {
		case <-done:
			if r.Unregister(conn) {
				slog.Info("WebSocket client disconnected", "client_id", conn.ID(), "reason", conn.Err())
			}
		case <-gone:
		}
	}()
	return true
}

// Unregister removes conn. It reports whether conn was present.
func (r *Registry) Unregister(conn Conn) bool {
	r.mu.Lock()
	gone, exists := r.conns[conn]
	if !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, conn)
	close(gone)
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnectedClients.Set(float64(total))
	slog.Debug("Client unregistered", "client_id", conn.ID(), "remaining_clients", total)
	return true
}

// Contains reports whether conn is registered.
func (r *Registry) Contains(conn Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[conn]
	return ok
}

// Snapshot returns the current members. Later changes to the registry do not
// affect the returned slice.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

// ForEach calls fn for every member of a snapshot taken at call time.
func (r *Registry) ForEach(fn func(Conn)) {
	for _, conn := range r.Snapshot() {
		fn(conn)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes and removes every connection, returning how many there were.
func (r *Registry) CloseAll(code int, reason string) int {
	conns := r.Snapshot()
	if len(conns) == 0 {
		return 0
	}
	slog.Info("Closing WebSocket connections", "count", len(conns))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Unregister(conn)
			if err := conn.Close(code, reason); err != nil {
				slog.Debug("Error closing client", "client_id", conn.ID(), "error", err)
			}
		}()
	}
	wg.Wait()
	return len(conns)
}
