// Package bridge lets stateless HTTP handlers ask the scoreboard a question
// over the relay's WebSockets and wait for its answer.
//
// A call to Correlate broadcasts a request tagged with a fresh request ID and
// parks a pending entry keyed by that ID. The entry is completed exactly once:
// either by Resolve when the matching response frame arrives, or by the
// deadline. Whichever side removes the entry from the table owns completion;
// the other side finds it gone and does nothing.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/volley-relay/relay/protocol"
)

// DefaultTimeout bounds how long a correlated request waits for an answer
const DefaultTimeout = 5 * time.Second

var (
	ErrTimeout        = errors.New("no response from scoreboard")
	ErrNoBroadcaster  = errors.New("bridge has no broadcaster")
	ErrUnknownRequest = errors.New("unknown or expired request")
)

// Broadcaster delivers a frame to every live connection and reports how
// many received it
type Broadcaster interface {
	BroadcastAll(data []byte) int
}

// Outcome is the scoreboard's answer to a correlated request
type Outcome struct {
	Success bool
	MatchID string
	Data    json.RawMessage
	Error   string
}

type pending struct {
	kind    protocol.RequestKind
	created time.Time
	done    chan Outcome
}

// Bridge is the table of pending correlated requests
type Bridge struct {
	broadcaster Broadcaster
	timeout     time.Duration
	pending     map[string]*pending
	mu          sync.Mutex
}

// New creates a bridge that broadcasts through b. A zero timeout selects
// DefaultTimeout.
func New(b Broadcaster, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		broadcaster: b,
		timeout:     timeout,
		pending:     make(map[string]*pending),
	}
}

// SetBroadcaster attaches the broadcaster once the transport is built
func (b *Bridge) SetBroadcaster(bc Broadcaster) {
	b.mu.Lock()
	b.broadcaster = bc
	b.mu.Unlock()
}

// Timeout returns the default deadline of a correlated request
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// Correlate broadcasts req to every connection and blocks until a response
// with the same request ID arrives, the timeout elapses, or ctx is done.
// req.RequestID, req.Kind and req.Type are filled in by the bridge.
func (b *Bridge) Correlate(ctx context.Context, kind protocol.RequestKind, req protocol.Request, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		timeout = b.timeout
	}

	b.mu.Lock()
	bc := b.broadcaster
	b.mu.Unlock()
	if bc == nil {
		return Outcome{}, ErrNoBroadcaster
	}

	id := NewRequestID(kind)
	p := &pending{
		kind:    kind,
		created: time.Now(),
		done:    make(chan Outcome, 1),
	}

	b.mu.Lock()
	b.pending[id] = p
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req.Type = protocol.RequestType(kind)
	req.RequestID = id
	req.Kind = kind
	req.Timestamp = p.created.UnixMilli()

	data, err := json.Marshal(req)
	if err != nil {
		b.remove(id)
		return Outcome{}, fmt.Errorf("failed to encode %s request: %w", kind, err)
	}

	delivered := bc.BroadcastAll(data)
	slog.Debug("correlated request sent", "requestId", id, "kind", kind, "delivered", delivered)

	select {
	case out := <-p.done:
		return out, nil
	case <-ctx.Done():
		if b.remove(id) {
			slog.Info("correlated request timed out", "requestId", id, "kind", kind, "after", time.Since(p.created))
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Outcome{}, ErrTimeout
			}
			return Outcome{}, ctx.Err()
		}
		// Resolve won the race and has already queued the outcome
		return <-p.done, nil
	}
}

// Resolve completes the pending request id with out. It returns
// ErrUnknownRequest when id is unknown or already completed.
func (b *Bridge) Resolve(id string, out Outcome) error {
	b.mu.Lock()
	p, exists := b.pending[id]
	if exists {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !exists {
		slog.Debug("ignoring response for unknown request", "requestId", id)
		return ErrUnknownRequest
	}

	p.done <- out
	slog.Debug("correlated request resolved", "requestId", id, "kind", p.kind, "success", out.Success, "after", time.Since(p.created))
	return nil
}

// Pending returns the number of requests awaiting an answer
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// remove deletes id and reports whether this call removed it
func (b *Bridge) remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pending[id]; !exists {
		return false
	}
	delete(b.pending, id)
	return true
}

// NewRequestID builds an identifier that is unique across restarts: kind tag,
// millisecond timestamp and a random suffix
func NewRequestID(kind protocol.RequestKind) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%d_%s", kind, time.Now().UnixMilli(), suffix)
}
