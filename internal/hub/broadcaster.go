package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"wordloop/internal/metrics"
	"wordloop/internal/types"
)

// CloseDeliveryFailed is sent to a peer dropped after a failed delivery.
const CloseDeliveryFailed = 1011

// CatchUpTimeout bounds the catch-up write in Admit, which holds up every
// other broadcast while it runs.
const CatchUpTimeout = time.Second

// TimedSender is implemented by connections that accept a per-write timeout.
type TimedSender interface {
	SendTimeout(data []byte, timeout time.Duration) error
}

// Result summarizes one broadcast.
type Result struct {
	Delivered int
	Failed    int
}

// Broadcaster delivers messages to every connection in a Registry.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics.Metrics

	// mu allows one fanout (or admission) at a time.
	mu sync.Mutex
}

func NewBroadcaster(registry *Registry, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		metrics:  m,
	}
}

// Broadcast sends msg to every open connection and returns once every
// delivery has settled. Failed connections are unregistered and closed.
func (b *Broadcaster) Broadcast(ctx context.Context, msg types.Message) Result {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal broadcast message", "type", msg.Type, "error", err)
		return Result{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res := b.fanout(ctx, data)

	b.metrics.BroadcastsTotal.WithLabelValues(msg.Type).Inc()
	b.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	slog.DebugContext(ctx, "Broadcast settled", "type", msg.Type, "delivered", res.Delivered, "failed", res.Failed)
	return res
}

func (b *Broadcaster) fanout(ctx context.Context, data []byte) Result {
	targets := lo.Filter(b.registry.Snapshot(), func(c Conn, _ int) bool {
		return c.IsOpen()
	})

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, conn := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = conn.Send(data)
		}()
	}
	wg.Wait()

	var res Result
	for i, err := range errs {
		if err == nil {
			res.Delivered++
			continue
		}
		res.Failed++
		b.drop(ctx, targets[i], err)
	}
	return res
}

// Admit registers conn. When catchUp reports a message, it is delivered to
// conn before any later broadcast reaches it.
func (b *Broadcaster) Admit(ctx context.Context, conn Conn, catchUp func() (types.Message, bool)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registry.Register(conn)
	slog.InfoContext(ctx, "New WebSocket client connected", "client_id", conn.ID(), "total_clients", b.registry.Count())

	if catchUp == nil {
		return nil
	}
	msg, ok := catchUp()
	if !ok {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal catch-up message: %w", err)
	}
	if err := sendCatchUp(conn, data); err != nil {
		b.drop(ctx, conn, err)
		return fmt.Errorf("send catch-up message: %w", err)
	}
	return nil
}

func sendCatchUp(conn Conn, data []byte) error {
	if ts, ok := conn.(TimedSender); ok {
		return ts.SendTimeout(data, CatchUpTimeout)
	}
	return conn.Send(data)
}

func (b *Broadcaster) drop(ctx context.Context, conn Conn, err error) {
	slog.WarnContext(ctx, "Error sending message to client", "client_id", conn.ID(), "error", err)
	b.metrics.DeliveryFailures.Inc()
	if b.registry.Unregister(conn) {
		_ = conn.Close(CloseDeliveryFailed, "delivery failed")
	}
}
